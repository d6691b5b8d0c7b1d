/*
Package scheduling groups the task execution primitives of taskpool.

  - threadpool: Bounded pool of lazily created workers running pushed tasks
  - scheduler: Time-based entries fired as detached tasks into a pool

Thread Pool:

The pool grows up to a fixed number of workers and queues at most a fixed
number of pending tasks:

	pool, err := threadpool.NewWithConfig(threadpool.Config{
		MaxWorkers: 4,
		MaxTasks:   100,
	})
	if err != nil {
		return err
	}
	defer pool.Delete()

	task := threadpool.NewTask(func(arg interface{}) interface{} {
		return arg.(int) * 2
	}, 21)
	if err := pool.Push(task); err != nil {
		return err // ErrTooManyTasks when the pool is full
	}
	result, err := task.Join() // 42

A task that is not worth waiting for is detached instead of joined:

	_ = task.Detach()

Task Scheduler:

The scheduler pushes each due entry into a pool as a fresh detached task:

	s, err := scheduler.NewWithConfig(scheduler.Config{Pool: pool})
	if err != nil {
		return err
	}

	// Schedule one-time task
	_ = s.ScheduleAfter("warmup", warm, nil, time.Minute)

	// Schedule recurring task
	_ = s.ScheduleRepeating("flush", flush, nil, time.Hour)

	// Cron-style scheduling
	_ = s.ScheduleCron("digest", "0 0 9 * * MON-FRI", digest, nil) // Weekdays at 9 AM

	_ = s.Start()
	defer s.Stop(ctx)

Both components are safe for concurrent use. Blocking waits accept a
context or a timeout.
*/
package scheduling
