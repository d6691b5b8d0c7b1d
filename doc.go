/*
Package taskpool provides a bounded thread pool with joinable and detachable
tasks, and a scheduler that feeds it.

Task Execution (pkg/scheduling):
  - threadpool: Lazily grown worker pool with a capacity-bounded FIFO queue
  - scheduler: One-shot, interval and cron entries pushed into a pool

Supporting packages:
  - metrics: Prometheus instruments for pools and schedulers
  - common/errors: Shared sentinels and typed errors
  - common/validation: Configuration checks

Example usage:

	import (
		"github.com/vnykmshr/taskpool/pkg/scheduling/scheduler"
		"github.com/vnykmshr/taskpool/pkg/scheduling/threadpool"
	)

	pool, _ := threadpool.New(4) // at most 4 workers

	task := threadpool.NewTask(square, 7)
	if err := pool.Push(task); err == nil {
		result, _ := task.Join() // 49
		_ = result
	}

	s, _ := scheduler.NewWithConfig(scheduler.Config{Pool: pool})
	_ = s.ScheduleCron("report", "0 0 9 * * MON-FRI", report, nil)
	_ = s.Start()

The taskpool command (cmd/taskpool) drives both from the command line.
*/
package taskpool
