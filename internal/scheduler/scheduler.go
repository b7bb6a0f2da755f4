// Package scheduler provides admission control for query execution: a
// bounded worker pool with fail-fast rejection instead of unbounded
// queueing.
package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/lanternsearch/lantern/pkg/config"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
	"github.com/lanternsearch/lantern/pkg/metrics"
)

// Scheduler admits at most Capacity queries at once: Workers of them
// executing, the rest waiting for a worker. A submission past capacity is
// rejected immediately with a retry signal rather than queued.
type Scheduler struct {
	pool    *ants.Pool
	log     *slog.Logger
	metrics *metrics.Metrics
}

func New(cfg config.SchedulerConfig, log *slog.Logger, m *metrics.Metrics) (*Scheduler, error) {
	waiting := cfg.Capacity - cfg.Workers
	opts := []ants.Option{}
	if waiting > 0 {
		opts = append(opts, ants.WithMaxBlockingTasks(waiting))
	} else {
		opts = append(opts, ants.WithNonblocking(true))
	}
	pool, err := ants.NewPool(cfg.Workers, opts...)
	if err != nil {
		return nil, err
	}
	return &Scheduler{pool: pool, log: log, metrics: m}, nil
}

// Run executes fn on the pool and waits for it to finish. It returns
// ErrSchedulerFull without running fn when the pool is at capacity.
func (s *Scheduler) Run(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	err := s.pool.Submit(func() {
		defer close(done)
		s.metrics.SchedulerInFlight.Inc()
		defer s.metrics.SchedulerInFlight.Dec()
		fn()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			s.metrics.SchedulerRejections.Inc()
			s.log.Warn("query rejected, scheduler at capacity")
			return apperrors.New(apperrors.ErrSchedulerFull, 429,
				"too many concurrent queries, retry after briefly backing off")
		}
		return err
	}
	// the cutoff timer inside query execution bounds this wait
	<-done
	return nil
}

// InFlight reports how many tasks are currently executing.
func (s *Scheduler) InFlight() int { return s.pool.Running() }

func (s *Scheduler) Close() {
	s.pool.Release()
}
