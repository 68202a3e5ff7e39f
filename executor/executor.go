package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/ecociel/deferral/domain"
	"github.com/ecociel/deferral/gateway/target"
	"github.com/ecociel/deferral/metrics"
	"golang.org/x/sync/errgroup"
)

type store interface {
	FindDueBefore(ctx context.Context, threshold time.Time) ([]domain.Task, error)
	Delete(ctx context.Context, id string) error
}

type caller interface {
	Call(ctx context.Context, task domain.Task) error
}

// Notifier is told about every task that was executed and deleted.
type Notifier interface {
	NotifyExecuted(ctx context.Context, task domain.Task) error
}

// Result summarises one sweep.
type Result struct {
	Due          int
	Executed     int
	Failed       int
	DeleteFailed int
}

// Executor runs due tasks and reconciles the store: a task is deleted after
// its call succeeded and left untouched otherwise, so it is retried on every
// following sweep.
type Executor struct {
	store       store
	caller      caller
	notifier    Notifier
	metrics     metrics.SweepMetrics
	concurrency int
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency bounds the number of calls in flight within one sweep.
// 1 executes tasks one after another.
func WithConcurrency(n int) Option {
	return func(e *Executor) { e.concurrency = n }
}

// WithNotifier reports every executed task to n. Notification errors are
// logged and do not affect the task.
func WithNotifier(n Notifier) Option {
	return func(e *Executor) { e.notifier = n }
}

// WithMetrics records sweep and call metrics in m. Defaults to metrics.Nop.
func WithMetrics(m metrics.SweepMetrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// New returns an Executor that runs tasks of store one at a time unless
// WithConcurrency says otherwise.
func New(store store, caller caller, opts ...Option) *Executor {
	e := &Executor{
		store:       store,
		caller:      caller,
		metrics:     metrics.Nop{},
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	return e
}

// ExecuteDueTasks executes every task scheduled strictly before now. An error
// is returned only when the due tasks could not be fetched or the sweep was
// cancelled; failures of single tasks are logged and counted.
func (e *Executor) ExecuteDueTasks(ctx context.Context, now time.Time) (Result, error) {
	start := time.Now()

	tasks, err := e.store.FindDueBefore(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("fetching due tasks: %w", err)
	}
	if len(tasks) == 0 {
		return Result{}, nil
	}
	e.metrics.TasksDue(len(tasks))
	log.Printf("found %d due tasks", len(tasks))

	var executed, failed, deleteFailed atomic.Int32
	tally := func(task domain.Task) {
		switch e.execute(ctx, task) {
		case outcomeExecuted:
			executed.Add(1)
		case outcomeFailed:
			failed.Add(1)
		case outcomeDeleteFailed:
			deleteFailed.Add(1)
		}
	}

	if e.concurrency == 1 {
		for _, task := range tasks {
			if ctx.Err() != nil {
				break
			}
			tally(task)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.concurrency)
		for _, task := range tasks {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				tally(task)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := Result{
		Due:          len(tasks),
		Executed:     int(executed.Load()),
		Failed:       int(failed.Load()),
		DeleteFailed: int(deleteFailed.Load()),
	}
	e.metrics.SweepDuration(time.Since(start))
	log.Printf("sweep done: due=%d executed=%d failed=%d delete_failed=%d", res.Due, res.Executed, res.Failed, res.DeleteFailed)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("sweep interrupted: %w", err)
	}
	return res, nil
}

type outcome int

const (
	outcomeExecuted outcome = iota
	outcomeFailed
	outcomeDeleteFailed
)

func (e *Executor) execute(ctx context.Context, task domain.Task) outcome {
	start := time.Now()
	err := e.caller.Call(ctx, task)
	e.metrics.CallLatency(time.Since(start))
	if err != nil {
		buildErr := errors.Is(err, target.ErrBuild)
		e.metrics.TaskFailed(buildErr)
		if buildErr {
			// Retried verbatim on every sweep until the record is changed or removed.
			log.Printf("execute task %s: unbuildable call, retained: %v", task.ID, err)
		} else {
			log.Printf("execute task %s: %v", task.ID, err)
		}
		return outcomeFailed
	}

	// The call already happened; a shutdown must not keep the record alive.
	if err := e.store.Delete(context.WithoutCancel(ctx), task.ID); err != nil {
		e.metrics.TaskDeleteFailed()
		log.Printf("delete executed task %s: %v", task.ID, err)
		return outcomeDeleteFailed
	}
	e.metrics.TaskExecuted()

	if e.notifier != nil {
		if err := e.notifier.NotifyExecuted(context.WithoutCancel(ctx), task); err != nil {
			log.Printf("notify executed task %s: %v", task.ID, err)
		}
	}
	return outcomeExecuted
}
