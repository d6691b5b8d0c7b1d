package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	tperrors "github.com/vnykmshr/taskpool/pkg/common/errors"
	"github.com/vnykmshr/taskpool/pkg/metrics"
	"github.com/vnykmshr/taskpool/pkg/scheduling/threadpool"
)

// Summary reports the outcome of one load run.
type Summary struct {
	Pushed   int64
	Joined   int64
	Detached int64
	Retries  int64
	Workers  int
	Elapsed  time.Duration
}

type job struct {
	n    int
	task *threadpool.Task
}

// detached reports whether task i is detached so that exactly
// floor(total*ratio) of the first total tasks are.
func detached(i int, ratio float64) bool {
	return int(float64(i+1)*ratio) > int(float64(i)*ratio)
}

func squareFunc(work time.Duration) threadpool.Func {
	return func(arg interface{}) interface{} {
		if work > 0 {
			time.Sleep(work)
		}
		x := arg.(int)
		return x * x
	}
}

// runLoad pushes cfg.Tasks squaring tasks from cfg.Pushers goroutines, joins
// the ones it keeps and checks every joined result.
func runLoad(ctx context.Context, cfg *RunConfig, logger *zap.Logger, reg *metrics.Registry) (*Summary, error) {
	pool, err := threadpool.NewWithConfig(threadpool.Config{
		MaxWorkers: cfg.Workers,
		MaxTasks:   cfg.MaxTasks,
		Name:       "taskpool",
		Logger:     logger,
		Metrics:    reg,
	})
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		burst := int(cfg.Rate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	var (
		summary Summary
		next    atomic.Int64
	)
	fn := squareFunc(cfg.Work)
	joins := make(chan job, cfg.Workers)
	start := time.Now()

	pushers, pctx := errgroup.WithContext(ctx)
	for p := 0; p < cfg.Pushers; p++ {
		pushers.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= cfg.Tasks {
					return nil
				}
				if limiter != nil {
					if err := limiter.Wait(pctx); err != nil {
						return err
					}
				}

				task := threadpool.NewTask(fn, i)
				if err := pushWithRetry(pctx, pool, task, cfg.PushRetry, &summary.Retries); err != nil {
					return fmt.Errorf("push %d: %w", i, err)
				}
				atomic.AddInt64(&summary.Pushed, 1)

				if detached(i, cfg.DetachRatio) {
					if err := task.Detach(); err != nil {
						return fmt.Errorf("detach %d: %w", i, err)
					}
					atomic.AddInt64(&summary.Detached, 1)
					continue
				}
				select {
				case joins <- job{n: i, task: task}:
				case <-pctx.Done():
					if err := task.Detach(); err != nil {
						logger.Warn("detach failed", zap.Int("task", i), zap.Error(err))
					}
					return pctx.Err()
				}
			}
		})
	}

	// Joiners drain every job even after a failure so pushers never block.
	var joiners errgroup.Group
	for j := 0; j < cfg.Pushers; j++ {
		joiners.Go(func() error {
			var first error
			for jb := range joins {
				if err := collect(ctx, jb, logger); err != nil && first == nil {
					first = err
				}
				if first == nil {
					atomic.AddInt64(&summary.Joined, 1)
				}
			}
			return first
		})
	}

	pushErr := pushers.Wait()
	close(joins)
	joinErr := joiners.Wait()

	// Every pushed task is joined or detached by now, so the drain ends
	// even when ctx was canceled.
	if err := pool.WaitIdle(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("waiting for pool: %w", err)
	}
	summary.Workers = pool.WorkerCount()
	summary.Elapsed = time.Since(start)
	if err := pool.Delete(); err != nil {
		return nil, err
	}

	if err := errors.Join(pushErr, joinErr); err != nil {
		return &summary, err
	}
	logger.Info("load finished",
		zap.Int64("pushed", summary.Pushed),
		zap.Int64("joined", summary.Joined),
		zap.Int64("detached", summary.Detached),
		zap.Int("workers", summary.Workers),
		zap.Duration("elapsed", summary.Elapsed))
	return &summary, nil
}

// collect joins jb and checks its result. A task that cannot be joined is
// detached so the pool still drains.
func collect(ctx context.Context, jb job, logger *zap.Logger) error {
	v, err := jb.task.JoinContext(ctx)
	if err != nil {
		if derr := jb.task.Detach(); derr != nil {
			logger.Warn("detach failed", zap.Int("task", jb.n), zap.Error(derr))
		}
		return fmt.Errorf("join %d: %w", jb.n, err)
	}
	if err := jb.task.Delete(); err != nil {
		logger.Warn("delete failed", zap.Int("task", jb.n), zap.Error(err))
	}
	if got := v.(int); got != jb.n*jb.n {
		return fmt.Errorf("task %d: got %d, want %d", jb.n, got, jb.n*jb.n)
	}
	return nil
}

// pushWithRetry retries Push while the pool is full, for at most patience.
func pushWithRetry(ctx context.Context, pool *threadpool.Pool, task *threadpool.Task, patience time.Duration, retries *int64) error {
	deadline := time.Now().Add(patience)
	backoff := 100 * time.Microsecond
	for {
		err := pool.Push(task)
		if !tperrors.IsTemporary(err) || time.Now().After(deadline) {
			return err
		}
		atomic.AddInt64(retries, 1)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		if backoff < 10*time.Millisecond {
			backoff *= 2
		}
	}
}
