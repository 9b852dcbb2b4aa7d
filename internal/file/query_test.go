package file

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestEngine(gw *fakeGateway) *Engine {
	return NewEngine(gw, NewCache(16, time.Minute), zap.NewNop())
}

func TestQueryFilesEmptyTypeSetMatchesAllTypes(t *testing.T) {
	gw := newFakeGateway()
	owner := seedOwner(t, gw,
		seedInput{"report", "pdf", 100},
		seedInput{"photo", "jpg", 200},
		seedInput{"song", "mp3", 300},
	)

	engine := newTestEngine(gw)

	all, err := engine.QueryFiles(context.Background(), Filters{Owner: owner})
	if err != nil {
		t.Fatalf("QueryFiles returned error: %v", err)
	}
	filtered, err := engine.QueryFiles(context.Background(), Filters{Owner: owner, Types: []FileType{}})
	if err != nil {
		t.Fatalf("QueryFiles returned error: %v", err)
	}

	if all.Total != 3 || filtered.Total != 3 {
		t.Fatalf("expected 3 matches both ways, got %d and %d", all.Total, filtered.Total)
	}
	for i := range all.Documents {
		if all.Documents[i].ID != filtered.Documents[i].ID {
			t.Fatalf("empty type set must equal the unfiltered query")
		}
	}
}

func TestQueryFilesTypeFilterIsStrictSubset(t *testing.T) {
	gw := newFakeGateway()
	owner := seedOwner(t, gw,
		seedInput{"report", "pdf", 100},
		seedInput{"photo", "jpg", 200},
	)

	engine := newTestEngine(gw)

	list, err := engine.QueryFiles(context.Background(), Filters{
		Owner: owner,
		Types: []FileType{TypeImage},
	})
	if err != nil {
		t.Fatalf("QueryFiles returned error: %v", err)
	}
	if list.Total != 1 || list.Documents[0].Name != "photo" {
		t.Fatalf("expected only the image, got %+v", list.Documents)
	}
}

func TestQueryFilesSearchTextIsCaseInsensitiveSubstring(t *testing.T) {
	gw := newFakeGateway()
	owner := seedOwner(t, gw,
		seedInput{"Quarterly Report", "pdf", 100},
		seedInput{"holiday", "jpg", 200},
	)

	engine := newTestEngine(gw)

	list, err := engine.QueryFiles(context.Background(), Filters{Owner: owner, SearchText: "rePORT"})
	if err != nil {
		t.Fatalf("QueryFiles returned error: %v", err)
	}
	if list.Total != 1 || list.Documents[0].Name != "Quarterly Report" {
		t.Fatalf("unexpected match set: %+v", list.Documents)
	}
}

func TestQueryFilesAggregatesGatewayPages(t *testing.T) {
	gw := newFakeGateway()
	gw.pageSize = 2

	var inputs []seedInput
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		inputs = append(inputs, seedInput{name, "txt", 1})
	}
	owner := seedOwner(t, gw, inputs...)

	engine := newTestEngine(gw)

	list, err := engine.QueryFiles(context.Background(), Filters{Owner: owner, Sort: SortNameAsc})
	if err != nil {
		t.Fatalf("QueryFiles returned error: %v", err)
	}

	if list.Total != 5 || len(list.Documents) != 5 {
		t.Fatalf("expected all 5 records aggregated, got total=%d returned=%d", list.Total, len(list.Documents))
	}
	if gw.queryCalls < 3 {
		t.Fatalf("expected multiple page requests, got %d", gw.queryCalls)
	}
	for i, want := range []string{"a", "b", "c", "d", "e"} {
		if list.Documents[i].Name != want {
			t.Fatalf("order broken at %d: got %s", i, list.Documents[i].Name)
		}
	}
}

func TestQueryFilesHonorsCallerLimit(t *testing.T) {
	gw := newFakeGateway()
	var inputs []seedInput
	for _, name := range []string{"a", "b", "c", "d"} {
		inputs = append(inputs, seedInput{name, "txt", 1})
	}
	owner := seedOwner(t, gw, inputs...)

	engine := newTestEngine(gw)

	list, err := engine.QueryFiles(context.Background(), Filters{Owner: owner, Sort: SortNameAsc, Limit: 2})
	if err != nil {
		t.Fatalf("QueryFiles returned error: %v", err)
	}
	if len(list.Documents) != 2 {
		t.Fatalf("expected limit respected, got %d", len(list.Documents))
	}
	if list.Total != 4 {
		t.Fatalf("total must count all matches, got %d", list.Total)
	}
}

func TestQueryFilesOwnerScopeIncludesSharedRecords(t *testing.T) {
	gw := newFakeGateway()
	rec := gw.seed(t, "teamdoc", "pdf", 100, "owner@x.com")
	gw.setShared(rec.ID, []string{"guest@x.com"})
	gw.seed(t, "private", "pdf", 100, "owner@x.com")

	engine := newTestEngine(gw)

	list, err := engine.QueryFiles(context.Background(), Filters{
		Owner: OwnerScope{Email: "guest@x.com"},
	})
	if err != nil {
		t.Fatalf("QueryFiles returned error: %v", err)
	}
	if list.Total != 1 || list.Documents[0].Name != "teamdoc" {
		t.Fatalf("guest must see only shared records, got %+v", list.Documents)
	}
}

func TestQueryFilesGatewayFailureIsGatewayError(t *testing.T) {
	gw := newFakeGateway()
	gw.queryErr = context.DeadlineExceeded

	engine := newTestEngine(gw)

	_, err := engine.QueryFiles(context.Background(), Filters{})
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if !gwErr.Retryable {
		t.Fatalf("deadline errors must be retryable")
	}
}

func TestGetByIDUsesCacheUntilInvalidated(t *testing.T) {
	gw := newFakeGateway()
	rec := gw.seed(t, "cached", "txt", 10, "owner@x.com")

	cache := NewCache(16, time.Minute)
	engine := NewEngine(gw, cache, zap.NewNop())

	if _, err := engine.GetByID(context.Background(), rec.ID); err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}

	// second read must come from the cache even if the gateway breaks
	gw.getErr = errors.New("unreachable")
	got, err := engine.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("cached read returned error: %v", err)
	}
	if got.Name != "cached" {
		t.Fatalf("unexpected record: %+v", got)
	}

	cache.Invalidate(rec.ID)
	if _, err := engine.GetByID(context.Background(), rec.ID); err == nil {
		t.Fatalf("invalidated read must hit the gateway")
	}
}

func TestTotalSizeSumsDocuments(t *testing.T) {
	list := List{Documents: []Record{{SizeBytes: 100}, {SizeBytes: 250}}}
	if got := TotalSize(list); got != 350 {
		t.Fatalf("expected 350, got %d", got)
	}
}

// --- helpers ---

type seedInput struct {
	name string
	ext  string
	size int64
}

// seedOwner inserts records under one owner and returns that owner's scope.
func seedOwner(t *testing.T, gw *fakeGateway, inputs ...seedInput) OwnerScope {
	t.Helper()
	var owner OwnerScope
	for i, in := range inputs {
		rec := gw.seed(t, in.name, in.ext, in.size, "owner@x.com")
		if i == 0 {
			owner = OwnerScope{UserID: rec.OwnerID, Email: rec.OwnerEmail}
		} else {
			gw.mu.Lock()
			stored := gw.records[rec.ID]
			stored.OwnerID = owner.UserID
			gw.records[rec.ID] = stored
			gw.mu.Unlock()
		}
	}
	return owner
}
