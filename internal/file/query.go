package file

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const defaultPageSize = 100

var (
	queryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gostash_file_queries_total",
		Help: "File queries executed.",
	})
	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gostash_file_query_duration_seconds",
		Help:    "File query latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// Engine executes filtered, sorted queries against the metadata gateway,
// aggregating gateway pages into a single ordered result.
type Engine struct {
	gw       MetadataGateway
	cache    *Cache
	logger   *zap.Logger
	pageSize int
}

// NewEngine constructs a query engine.
func NewEngine(gw MetadataGateway, cache *Cache, logger *zap.Logger) *Engine {
	return &Engine{
		gw:       gw,
		cache:    cache,
		logger:   logger.Named("query_engine"),
		pageSize: defaultPageSize,
	}
}

// QueryFiles runs one owner-scoped query. An empty Types set matches all
// types and an empty SearchText matches all names. If the gateway pages
// its results, pages are requested until the declared total is satisfied
// or the caller's Limit is hit. Within equal sort keys, gateway return
// order is preserved.
func (e *Engine) QueryFiles(ctx context.Context, filters Filters) (List, error) {
	start := time.Now()
	queryTotal.Inc()

	if filters.Sort == "" {
		filters.Sort = SortCreatedDesc
	}

	pageSize := e.pageSize
	if filters.Limit > 0 && filters.Limit < pageSize {
		pageSize = filters.Limit
	}

	var list List
	for {
		page, err := e.gw.Query(ctx, filters, len(list.Documents), pageSize)
		if err != nil {
			return List{}, asGatewayError("query", err)
		}

		list.Documents = append(list.Documents, page.Documents...)
		list.Total = page.Total

		if len(page.Documents) == 0 || len(list.Documents) >= page.Total {
			break
		}
		if filters.Limit > 0 && len(list.Documents) >= filters.Limit {
			list.Documents = list.Documents[:filters.Limit]
			break
		}
	}

	e.logger.Debug("query executed",
		zap.Int("total", list.Total),
		zap.Int("returned", len(list.Documents)),
		zap.Duration("duration", time.Since(start)),
	)
	queryDuration.Observe(time.Since(start).Seconds())

	return list, nil
}

// GetByID fetches a single record through the metadata cache.
func (e *Engine) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	if rec, ok := e.cache.Get(id); ok {
		return rec, nil
	}

	rec, err := e.gw.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return Record{}, ErrFileNotFound
		}
		return Record{}, asGatewayError("get", err)
	}

	e.cache.Set(rec)
	return rec, nil
}

// TotalSize sums the byte sizes of every document in the list.
func TotalSize(list List) int64 {
	var sum int64
	for _, rec := range list.Documents {
		sum += rec.SizeBytes
	}
	return sum
}

// asGatewayError normalizes failures crossing the persistence boundary.
// Not-found errors pass through untouched so callers can match them.
func asGatewayError(op string, err error) error {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	if errors.Is(err, ErrFileNotFound) {
		return err
	}
	return &GatewayError{Op: op, Retryable: isRetryable(err), Err: err}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	return false
}
