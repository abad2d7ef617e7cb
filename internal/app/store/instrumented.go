package store

import (
	"context"
	"time"

	"chatrelay/internal/metrics"
)

// Instrumented decorates a Store with latency and failure metrics and an
// optional per-call timeout.
type Instrumented struct {
	next    Store
	timeout time.Duration
}

// NewInstrumented wraps next. A zero timeout leaves calls bounded only by the caller's context.
func NewInstrumented(next Store, timeout time.Duration) *Instrumented {
	return &Instrumented{next: next, timeout: timeout}
}

func (s *Instrumented) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func observe(op string, start time.Time, err error) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreFailures.WithLabelValues(op).Inc()
	}
}

// UpsertUser implements Store.
func (s *Instrumented) UpsertUser(ctx context.Context, userID, username string) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	start := time.Now()
	err := s.next.UpsertUser(ctx, userID, username)
	observe("upsert_user", start, err)
	return err
}

// InsertMessage implements Store.
func (s *Instrumented) InsertMessage(ctx context.Context, userID, content string) (int64, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	start := time.Now()
	id, err := s.next.InsertMessage(ctx, userID, content)
	observe("insert_message", start, err)
	return id, err
}

// Ping implements Store.
func (s *Instrumented) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close implements Store.
func (s *Instrumented) Close() {
	s.next.Close()
}
