package runner

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ecociel/deferral/executor"
	"github.com/ecociel/deferral/metrics"
)

var ErrStarted = errors.New("runner already started")

type sweeper interface {
	ExecuteDueTasks(ctx context.Context, now time.Time) (executor.Result, error)
}

// Runner triggers a sweep every interval. Sweeps never overlap: a tick or a
// manual trigger arriving while a sweep runs is skipped.
type Runner struct {
	interval time.Duration
	sweeper  sweeper
	metrics  metrics.SweepMetrics

	sweepMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, sweeper sweeper, m metrics.SweepMetrics) *Runner {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Runner{
		interval: interval,
		sweeper:  sweeper,
		metrics:  m,
	}
}

// Start runs the loop in its own goroutine until Stop is called or ctx ends.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return ErrStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	log.Printf("sweep runner started, interval=%s", r.interval)
	return nil
}

// Stop ends the loop and waits for a running sweep to return. The runner can
// be started again afterwards.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Println("sweep runner stopped")
}

func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	_, ran, err := r.TriggerNow(ctx)
	if !ran {
		log.Println("previous sweep still running, skipping tick")
		return
	}
	if err != nil {
		log.Printf("sweep error: %v", err)
	}
}

// TriggerNow sweeps immediately unless a sweep is already running, in which
// case ran is false.
func (r *Runner) TriggerNow(ctx context.Context) (res executor.Result, ran bool, err error) {
	if !r.sweepMu.TryLock() {
		r.metrics.SweepSkipped()
		return executor.Result{}, false, nil
	}
	defer r.sweepMu.Unlock()

	res, err = r.sweeper.ExecuteDueTasks(ctx, time.Now())
	return res, true, err
}
