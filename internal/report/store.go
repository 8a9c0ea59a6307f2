package report

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"findecoder/pkg/contracts/domain"
)

// ErrReportNotFound is returned for unknown or expired report IDs.
var ErrReportNotFound = errors.New("report not found")

type entry struct {
	report    domain.Report
	expiresAt time.Time
}

// Store keeps assembled reports in memory for the session TTL so the text
// and chart download endpoints can serve them. Eviction is the end of the
// report's life; nothing is persisted.
type Store struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	logger  *slog.Logger
	clock   func() time.Time
}

// NewStore creates a report store with the given TTL.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		ttl:     ttl,
		entries: make(map[string]entry),
		logger:  logger.With(slog.String("component", "report_store")),
		clock:   time.Now,
	}
}

// Put stores a report under its ID, restarting its TTL.
func (s *Store) Put(report domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[report.ID] = entry{
		report:    report,
		expiresAt: s.clock().Add(s.ttl),
	}
}

// Get returns the report for id, or ErrReportNotFound when the ID is
// unknown or its TTL has elapsed.
func (s *Store) Get(id string) (domain.Report, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok || s.clock().After(e.expiresAt) {
		return domain.Report{}, ErrReportNotFound
	}
	return e.report, nil
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes expired entries and returns how many were evicted.
func (s *Store) Sweep() int {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info("expired reports evicted", slog.Int("count", evicted))
	}
	return evicted
}

// StartJanitor sweeps periodically until ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}
