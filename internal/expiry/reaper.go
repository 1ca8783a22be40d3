// Package expiry sweeps pending handoff records past their deadline into the
// expired state. The sweep is idempotent: transitions are guarded on
// status = pending, so a record expired lazily by a read path or by a
// concurrent sweep is simply skipped. Expiring a record frees its slot under
// the one-pending invariants.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"regbook/internal/platform/metrics"
)

// Sweepable is the slice of a handoff store the reaper needs.
type Sweepable interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// NamedStore labels a sweepable store for logging and metrics.
type NamedStore struct {
	Kind  string
	Store Sweepable
}

// Locker elects a sweep leader so only one instance runs each cycle.
type Locker interface {
	// TryAcquire returns false when another instance holds the lock.
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Reaper periodically expires due handoff records across all stores.
type Reaper struct {
	stores   []NamedStore
	locker   Locker
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Reaper)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reaper) { r.metrics = m }
}

// WithLocker sets the leader lock. Without one every instance sweeps, which
// is safe but redundant.
func WithLocker(l Locker) Option {
	return func(r *Reaper) { r.locker = l }
}

func New(interval time.Duration, stores []NamedStore, opts ...Option) *Reaper {
	r := &Reaper{
		stores:   stores,
		locker:   NoopLocker{},
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps on a fixed interval until the context is cancelled. One sweep
// runs immediately on startup to clear anything that came due while the
// service was down.
func (r *Reaper) Run(ctx context.Context) error {
	r.sweepIfLeader(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweepIfLeader(ctx)
		}
	}
}

func (r *Reaper) sweepIfLeader(ctx context.Context) {
	ok, err := r.locker.TryAcquire(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "sweep lock unavailable", "error", err)
		return
	}
	if !ok {
		return
	}
	defer func() {
		if err := r.locker.Release(ctx); err != nil {
			r.logger.WarnContext(ctx, "sweep lock release failed", "error", err)
		}
	}()

	r.Sweep(ctx, time.Now().UTC())
}

// Sweep expires due records in every store once. Exposed separately from Run
// so callers can trigger a cycle on demand.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) {
	start := time.Now()
	for _, ns := range r.stores {
		n, err := ns.Store.ExpireDue(ctx, now)
		if err != nil {
			r.logger.ErrorContext(ctx, "sweep failed", "kind", ns.Kind, "error", err)
			continue
		}
		if n > 0 {
			r.logger.InfoContext(ctx, "expired due records", "kind", ns.Kind, "count", n)
		}
		if r.metrics != nil {
			r.metrics.RecordsExpired.WithLabelValues(ns.Kind).Add(float64(n))
		}
	}
	if r.metrics != nil {
		r.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
}

// NoopLocker always wins the election. Single-instance deployments.
type NoopLocker struct{}

func (NoopLocker) TryAcquire(context.Context) (bool, error) { return true, nil }
func (NoopLocker) Release(context.Context) error            { return nil }
