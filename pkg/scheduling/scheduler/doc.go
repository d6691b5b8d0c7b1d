/*
Package scheduler pushes work into a threadpool.Pool at chosen times.

A scheduler holds named entries. On every tick it collects the entries that
are due, builds a fresh threadpool.Task for each, pushes it and detaches it.
One-time entries are then forgotten; repeating and cron entries compute their
next run time.

Basic Usage:

	s, err := scheduler.NewWithConfig(scheduler.Config{Pool: pool, Logger: logger})
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop(context.Background())

	report := func(arg interface{}) interface{} {
		sendReport(arg.(string))
		return nil
	}

	// Once, at a specific time
	s.Schedule("quarterly", report, "q1", time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))

	// Once, after a delay
	s.ScheduleAfter("warmup", report, "cache", 5*time.Second)

	// Now, then every 30 seconds
	s.ScheduleRepeating("heartbeat", report, "ping", 30*time.Second)

Cron Expressions:

Expressions have six fields with seconds first, and descriptors are accepted:

	s.ScheduleCron("nightly", report, "nightly", "0 0 2 * * *")
	s.ScheduleCron("hourly", report, "hourly", "@hourly")
	s.ScheduleCronWithOptions("twice", report, "x", "@every 1m", scheduler.CronOptions{MaxRuns: 2})

	desc, err := scheduler.DescribeCron("0 30 14 * * 1-5", time.Now(), 3)

Backpressure:

When the pool refuses a due entry (for example ErrTooManyTasks), the firing
is dropped, logged at Warn, counted in the scheduler_dropped_total metric and
reported to Config.OnDrop. The entry itself stays scheduled if it recurs.

Stopping:

Stop ends the tick loop. A pool the scheduler created for itself is drained
with WaitIdle and deleted; a pool passed in Config.Pool is left to its owner.
A stopped scheduler rejects further scheduling with ErrStopped.
*/
package scheduler
