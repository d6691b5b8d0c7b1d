/*
Package threadpool provides a bounded, lazily grown worker pool with
joinable and detachable tasks.

A Pool owns a FIFO queue of tasks and up to MaxWorkers worker goroutines.
Workers are created on demand, when a task is pushed while every existing
worker is busy, and they live until the pool is deleted.

Basic usage:

	pool, err := threadpool.New(4)
	if err != nil {
		return err
	}

	task := threadpool.NewTask(func(arg interface{}) interface{} {
		x := arg.(int)
		return x * x
	}, 7)

	if err := pool.Push(task); err != nil {
		return err
	}

	result, err := task.Join() // blocks, result == 49
	if err != nil {
		return err
	}

	_ = task.Delete()
	return pool.Delete()

Task Lifecycle:

	StateInit ──Push──► StateWaiting ──worker──► StateRunning ──► StateFinished
	    ▲                                                             │
	    └──────────────────────────── Join ───────────────────────────┘

Push is only legal from StateInit. Join blocks until StateFinished, hands
back the result and resets the task to StateInit, so the same task can be
pushed again. Delete is only legal from StateInit.

Detach:

Detach releases the caller from joining. The task still runs to completion.
If it has already finished, Detach releases it immediately; otherwise the
worker releases it when the callable returns. Exactly one side releases a
detached task, and Config.OnTaskRelease observes that single release:

	task := threadpool.NewTask(sendEmail, msg)
	if err := pool.Push(task); err != nil {
		return err
	}
	_ = task.Detach() // fire and forget

Once released, every operation on the task returns ErrTaskReleased.

Capacity:

A pool holds at most Config.MaxTasks pending tasks, where pending means
waiting or running. A finished task waiting for Join no longer counts; it
shows up in Stats.Unjoined instead. Beyond that Push returns
ErrTooManyTasks, which wraps the shared ErrCapacityExceeded. Both
MaxWorkers and MaxTasks are range checked against MaxThreads and
MaxQueuedTasks; out-of-range values are rejected, not clamped.

Blocking Joins:

	result, err := task.JoinTimeout(time.Second)
	if errors.Is(err, tperrors.ErrTimeout) {
		// still running, join again later or detach
	}

	result, err = task.JoinContext(ctx) // returns ctx.Err() when ctx is done

Panics:

A panicking callable does not take its worker down. Join returns a nil
result and a *PanicError carrying the recovered value and stack.

Deleting the Pool:

Delete fails with ErrHasTasks while a task is waiting or running. Otherwise
it sets the shutdown flag, wakes every idle worker and waits for all of them
to exit. Finished tasks may still be joined after Delete. WaitIdle blocks
until the pending count reaches zero, which pairs with detached workloads:

	if err := pool.WaitIdle(ctx); err != nil {
		return err
	}
	return pool.Delete()

Configuration:

	pool, err := threadpool.NewWithConfig(threadpool.Config{
		MaxWorkers: 8,
		MaxTasks:   1000,
		Name:       "thumbnails",
		Logger:     logger,
		Metrics:    metrics.DefaultRegistry,
		OnTaskComplete: func(workerID int, r threadpool.Result) {
			logger.Debug("task done", zap.Int("worker", workerID), zap.Duration("took", r.Duration))
		},
	})

Ordering Guarantees:

Tasks are dequeued in push order. With a single worker they also complete
in push order. A task is picked up by at most one worker, and the result
written by the worker happens before Join observes StateFinished.

Thread Safety:

All Pool and Task methods are safe for concurrent use. A callable that
blocks forever occupies its worker forever; there is no cancellation of a
running task.
*/
package threadpool
