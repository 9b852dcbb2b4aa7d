package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aruzhan/gostash/internal/file"
	"go.uber.org/zap"
)

// DefaultQuietPeriod is the interval of no input required before a
// debounced query fires.
const DefaultQuietPeriod = 300 * time.Millisecond

// Querier runs owner-scoped file queries.
type Querier interface {
	QueryFiles(ctx context.Context, filters file.Filters) (file.List, error)
}

// Snapshot is the observable state handed to listeners.
type Snapshot struct {
	RawQuery string        `json:"raw_query"`
	Results  []file.Record `json:"results"`
	IsOpen   bool          `json:"is_open"`
}

// Session drives the query engine from a live input stream. Every
// keystroke updates the raw query immediately and restarts the quiet
// timer; only a full quiet period issues a query. Responses apply in
// issue order: a response older than the newest issued query is dropped.
type Session struct {
	querier  Querier
	owner    file.OwnerScope
	quiet    time.Duration
	logger   *zap.Logger
	onUpdate func(Snapshot)

	mu             sync.Mutex
	rawQuery       string
	debouncedQuery string
	results        []file.Record
	open           bool
	timer          *time.Timer
	timerGen       uint64
	seq            uint64
	cancelInflight context.CancelFunc
	closed         bool
}

// NewSession builds a search session for one caller. onUpdate observes
// every state change; pass nil to poll with Snapshot instead.
func NewSession(querier Querier, owner file.OwnerScope, quiet time.Duration, logger *zap.Logger, onUpdate func(Snapshot)) *Session {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Session{
		querier:  querier,
		owner:    owner,
		quiet:    quiet,
		logger:   logger.Named("search_session"),
		onUpdate: onUpdate,
	}
}

// OnInputChange records a keystroke. The raw query is always updated
// synchronously; the debounced query only advances after the quiet period
// passes without further input.
func (s *Session) OnInputChange(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.rawQuery = text

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerGen++
	gen := s.timerGen
	s.timer = time.AfterFunc(s.quiet, func() { s.quietElapsed(gen) })

	s.notifyLocked()
}

// quietElapsed promotes the raw query to the debounced query and issues
// at most one query. A stale generation means another keystroke arrived
// after this timer was scheduled.
func (s *Session) quietElapsed(gen uint64) {
	s.mu.Lock()

	if s.closed || gen != s.timerGen {
		s.mu.Unlock()
		return
	}

	s.debouncedQuery = s.rawQuery

	if s.debouncedQuery == "" {
		if s.cancelInflight != nil {
			s.cancelInflight()
			s.cancelInflight = nil
		}
		s.results = nil
		s.open = false
		s.notifyLocked()
		s.mu.Unlock()
		return
	}

	s.seq++
	seq := s.seq
	query := s.debouncedQuery

	// release the superseded query's gateway call before replacing it
	if s.cancelInflight != nil {
		s.cancelInflight()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelInflight = cancel
	s.mu.Unlock()

	go s.runQuery(ctx, seq, query)
}

func (s *Session) runQuery(ctx context.Context, seq uint64, query string) {
	list, err := s.querier.QueryFiles(ctx, file.Filters{
		SearchText: query,
		Owner:      s.owner,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	// last-request-wins: only the newest issued query may apply
	if s.closed || seq != s.seq {
		return
	}

	if err != nil {
		s.logger.Warn("search query failed", zap.String("query", query), zap.Error(err))
		return
	}

	s.results = list.Documents
	s.open = true
	s.notifyLocked()
}

// SelectResult clears the session and returns the navigation target for
// the chosen file, derived from its grouping key.
func (s *Session) SelectResult(rec file.Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := s.rawQuery
	s.rawQuery = ""
	s.debouncedQuery = ""
	s.results = nil
	s.open = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerGen++
	s.seq++ // orphan any in-flight response
	if s.cancelInflight != nil {
		s.cancelInflight()
		s.cancelInflight = nil
	}

	s.notifyLocked()
	return fmt.Sprintf("/%s?query=%s", rec.Type.BrowseGroup(), query)
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close stops the timer and suppresses any in-flight result.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancelInflight != nil {
		s.cancelInflight()
		s.cancelInflight = nil
	}
}

func (s *Session) snapshotLocked() Snapshot {
	results := make([]file.Record, len(s.results))
	copy(results, s.results)
	return Snapshot{RawQuery: s.rawQuery, Results: results, IsOpen: s.open}
}

func (s *Session) notifyLocked() {
	if s.onUpdate != nil {
		s.onUpdate(s.snapshotLocked())
	}
}
