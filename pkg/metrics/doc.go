// Package metrics provides Prometheus instrumentation for taskpool components.
//
// # Overview
//
// The metrics package provides instrumentation for:
//   - Thread pools (pushed, rejected, completed, panicked and released tasks,
//     queue wait and run time, worker and pending gauges)
//   - Schedulers (entries fired into a pool, entries dropped, live entries)
//
// # Quick Start
//
// Pass a Registry to the components you want to observe:
//
//	pool, err := threadpool.NewWithConfig(threadpool.Config{
//		MaxWorkers: 4,
//		Name:       "resize",
//		Metrics:    metrics.DefaultRegistry,
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation, which is what the tests do:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistryWithConfig(metrics.Config{
//		Enabled:  true,
//		Registry: reg,
//	})
//
// A disabled Config yields a nil *Registry. Components accept nil and skip
// instrumentation entirely.
//
// # Available Metrics
//
// ## Thread Pool Metrics (label pool_name)
//
//   - taskpool_threadpool_tasks_pushed_total
//   - taskpool_threadpool_tasks_rejected_total (extra label reason)
//   - taskpool_threadpool_tasks_completed_total
//   - taskpool_threadpool_tasks_panicked_total
//   - taskpool_threadpool_tasks_released_total (extra label side: caller|worker)
//   - taskpool_threadpool_task_queue_wait_seconds
//   - taskpool_threadpool_task_run_seconds
//   - taskpool_threadpool_workers
//   - taskpool_threadpool_busy_workers
//   - taskpool_threadpool_pending_tasks
//   - taskpool_threadpool_unjoined_tasks
//
// ## Scheduler Metrics (label scheduler_name)
//
//   - taskpool_scheduler_fired_total
//   - taskpool_scheduler_dropped_total
//   - taskpool_scheduler_entries
package metrics
