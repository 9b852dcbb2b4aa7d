package search

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aruzhan/gostash/internal/file"
)

const testQuiet = 20 * time.Millisecond

type fakeQuerier struct {
	mu      sync.Mutex
	calls   []string
	ctxs    map[string]context.Context
	records []file.Record
	started chan string
	gates   map[string]chan struct{}
}

func newFakeQuerier(records ...file.Record) *fakeQuerier {
	return &fakeQuerier{
		ctxs:    make(map[string]context.Context),
		records: records,
		started: make(chan string, 16),
		gates:   make(map[string]chan struct{}),
	}
}

// queryCtx returns the context the query for the given text ran under.
func (f *fakeQuerier) queryCtx(query string) context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctxs[query]
}

// gate makes queries for the given text block until the channel closes.
func (f *fakeQuerier) gate(query string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[query] = ch
	return ch
}

func (f *fakeQuerier) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeQuerier) QueryFiles(ctx context.Context, filters file.Filters) (file.List, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filters.SearchText)
	f.ctxs[filters.SearchText] = ctx
	gate := f.gates[filters.SearchText]
	f.mu.Unlock()

	f.started <- filters.SearchText
	if gate != nil {
		<-gate
	}

	var matches []file.Record
	for _, rec := range f.records {
		if strings.Contains(strings.ToLower(rec.Name), strings.ToLower(filters.SearchText)) {
			matches = append(matches, rec)
		}
	}
	return file.List{Documents: matches, Total: len(matches)}, nil
}

func record(name, ext string) file.Record {
	return file.Record{
		ID:        uuid.New(),
		Name:      name,
		Extension: ext,
		Type:      file.DeriveType(ext),
	}
}

func newTestSession(t *testing.T, q Querier) *Session {
	t.Helper()
	s := NewSession(q, file.OwnerScope{UserID: uuid.New(), Email: "owner@x.com"}, testQuiet, zap.NewNop(), nil)
	t.Cleanup(s.Close)
	return s
}

func waitForResults(t *testing.T, s *Session, want int) Snapshot {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap := s.Snapshot()
		if snap.IsOpen && len(snap.Results) == want {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d results, snapshot %+v", want, s.Snapshot())
	return Snapshot{}
}

func TestRawQueryUpdatesImmediately(t *testing.T) {
	s := newTestSession(t, newFakeQuerier())

	s.OnInputChange("re")
	if got := s.Snapshot().RawQuery; got != "re" {
		t.Fatalf("raw query must track keystrokes, got %q", got)
	}
}

func TestRapidKeystrokesIssueOneQuery(t *testing.T) {
	q := newFakeQuerier(record("report", "pdf"))
	s := newTestSession(t, q)

	s.OnInputChange("r")
	s.OnInputChange("re")
	s.OnInputChange("rep")

	waitForResults(t, s, 1)

	if got := q.queries(); len(got) != 1 || got[0] != "rep" {
		t.Fatalf("expected a single query for the final text, got %v", got)
	}
}

func TestEachQuietPeriodIssuesOneQuery(t *testing.T) {
	q := newFakeQuerier(record("report", "pdf"), record("repeat", "mp3"))
	s := newTestSession(t, q)

	s.OnInputChange("rep")
	waitForResults(t, s, 2)
	s.OnInputChange("repo")
	waitForResults(t, s, 1)

	if got := q.queries(); len(got) != 2 {
		t.Fatalf("expected one query per quiet period, got %v", got)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	q := newFakeQuerier(record("old-notes", "txt"), record("new-plan", "pdf"))
	s := newTestSession(t, q)

	gate := q.gate("old")

	s.OnInputChange("old")
	<-q.started // first query in flight

	s.OnInputChange("new")
	<-q.started
	snap := waitForResults(t, s, 1)
	if snap.Results[0].Name != "new-plan" {
		t.Fatalf("expected newest results, got %q", snap.Results[0].Name)
	}

	close(gate) // slow first response arrives late
	time.Sleep(5 * testQuiet)

	snap = s.Snapshot()
	if len(snap.Results) != 1 || snap.Results[0].Name != "new-plan" {
		t.Fatalf("stale response must not overwrite newer results, got %+v", snap.Results)
	}
}

func TestSupersededQueryContextCancelled(t *testing.T) {
	q := newFakeQuerier(record("old-notes", "txt"), record("new-plan", "pdf"))
	s := newTestSession(t, q)

	gate := q.gate("old")
	s.OnInputChange("old")
	<-q.started // first query in flight, gated

	s.OnInputChange("new")
	waitForResults(t, s, 1)

	if err := q.queryCtx("old").Err(); err != context.Canceled {
		t.Fatalf("superseded query must have its context cancelled, got %v", err)
	}
	close(gate)
}

func TestEmptyQueryClearsWithoutQuerying(t *testing.T) {
	q := newFakeQuerier(record("report", "pdf"))
	s := newTestSession(t, q)

	s.OnInputChange("rep")
	waitForResults(t, s, 1)

	s.OnInputChange("")
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap := s.Snapshot()
		if !snap.IsOpen && len(snap.Results) == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	snap := s.Snapshot()
	if snap.IsOpen || len(snap.Results) != 0 {
		t.Fatalf("empty query must clear and close, snapshot %+v", snap)
	}
	if got := q.queries(); len(got) != 1 {
		t.Fatalf("empty query must not hit the engine, got %v", got)
	}
}

func TestSelectResultNavigationTargets(t *testing.T) {
	cases := []struct {
		ext  string
		want string
	}{
		{"pdf", "/documents?query=rep"},
		{"jpg", "/images?query=rep"},
		{"mp4", "/media?query=rep"},
		{"mp3", "/media?query=rep"},
		{"zip", "/others?query=rep"},
	}
	for _, tc := range cases {
		q := newFakeQuerier(record("report", tc.ext))
		s := newTestSession(t, q)

		s.OnInputChange("rep")
		snap := waitForResults(t, s, 1)

		target := s.SelectResult(snap.Results[0])
		if target != tc.want {
			t.Errorf("ext %s: navigation target %q, want %q", tc.ext, target, tc.want)
		}

		after := s.Snapshot()
		if after.RawQuery != "" || after.IsOpen || len(after.Results) != 0 {
			t.Errorf("ext %s: selection must reset the session, snapshot %+v", tc.ext, after)
		}
	}
}

func TestSelectResultOrphansInflightQuery(t *testing.T) {
	q := newFakeQuerier(record("report", "pdf"), record("repair", "txt"))
	s := newTestSession(t, q)

	s.OnInputChange("rep")
	snap := waitForResults(t, s, 2)

	gate := q.gate("repo")
	s.OnInputChange("repo")
	<-q.started
	<-q.started // second query started, still gated

	s.SelectResult(snap.Results[0])
	close(gate)
	time.Sleep(5 * testQuiet)

	after := s.Snapshot()
	if after.IsOpen || len(after.Results) != 0 {
		t.Fatalf("in-flight response must not revive a selected session, got %+v", after)
	}
}

func TestCloseSuppressesPendingQuery(t *testing.T) {
	q := newFakeQuerier(record("report", "pdf"))
	s := NewSession(q, file.OwnerScope{UserID: uuid.New()}, testQuiet, zap.NewNop(), nil)

	s.OnInputChange("rep")
	s.Close()
	time.Sleep(5 * testQuiet)

	if got := q.queries(); len(got) != 0 {
		t.Fatalf("closed session must not query, got %v", got)
	}
	if snap := s.Snapshot(); snap.IsOpen {
		t.Fatalf("closed session must stay closed")
	}
}
