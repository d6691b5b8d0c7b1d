// Package metrics provides Prometheus instrumentation for taskpool components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name unless Config.Namespace overrides it.
const DefaultNamespace = "taskpool"

// Registry holds all metric instances for taskpool components.
type Registry struct {
	// Thread Pool Metrics
	TasksPushed     *prometheus.CounterVec
	TasksRejected   *prometheus.CounterVec
	TasksCompleted  *prometheus.CounterVec
	TasksPanicked   *prometheus.CounterVec
	TasksReleased   *prometheus.CounterVec
	TaskQueueWait   *prometheus.HistogramVec
	TaskRunDuration *prometheus.HistogramVec
	WorkersCreated  *prometheus.GaugeVec
	WorkersBusy     *prometheus.GaugeVec
	TasksPending    *prometheus.GaugeVec
	TasksUnjoined   *prometheus.GaugeVec

	// Scheduler Metrics
	SchedulerFired   *prometheus.CounterVec
	SchedulerDropped *prometheus.CounterVec
	SchedulerEntries *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by taskpool components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, DefaultNamespace)
}

// NewRegistryWithConfig creates a registry from cfg. It returns nil when
// metrics are disabled, which every instrumented component treats as "off".
func NewRegistryWithConfig(cfg Config) *Registry {
	if !cfg.Enabled {
		return nil
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	// The default registerer already carries DefaultRegistry's collectors;
	// registering them again would panic.
	if reg == prometheus.DefaultRegisterer && ns == DefaultNamespace {
		return DefaultRegistry
	}
	return newRegistry(reg, ns)
}

func newRegistry(reg prometheus.Registerer, ns string) *Registry {
	factory := promauto.With(reg)
	pool := []string{"pool_name"}

	return &Registry{
		// Thread Pool Metrics
		TasksPushed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "tasks_pushed_total",
				Help:      "Total number of tasks accepted by Push",
			},
			pool,
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "tasks_rejected_total",
				Help:      "Total number of Push calls refused, by reason",
			},
			[]string{"pool_name", "reason"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks whose callable returned",
			},
			pool,
		),

		TasksPanicked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "tasks_panicked_total",
				Help:      "Total number of tasks whose callable panicked",
			},
			pool,
		),

		TasksReleased: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "tasks_released_total",
				Help:      "Total number of detached tasks released, by releasing side",
			},
			[]string{"pool_name", "side"},
		),

		TaskQueueWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "task_queue_wait_seconds",
				Help:      "Time tasks spent queued before a worker picked them up",
				Buckets:   prometheus.DefBuckets,
			},
			pool,
		),

		TaskRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "task_run_seconds",
				Help:      "Time spent executing task callables",
				Buckets:   prometheus.DefBuckets,
			},
			pool,
		),

		WorkersCreated: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "workers",
				Help:      "Number of workers created so far",
			},
			pool,
		),

		WorkersBusy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "busy_workers",
				Help:      "Number of workers currently executing a task",
			},
			pool,
		),

		TasksPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "pending_tasks",
				Help:      "Tasks waiting for or held by a worker",
			},
			pool,
		),

		TasksUnjoined: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "threadpool",
				Name:      "unjoined_tasks",
				Help:      "Finished tasks not yet joined or detached",
			},
			pool,
		),

		// Scheduler Metrics
		SchedulerFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "scheduler",
				Name:      "fired_total",
				Help:      "Total number of scheduled entries pushed into a pool",
			},
			[]string{"scheduler_name"},
		),

		SchedulerDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "scheduler",
				Name:      "dropped_total",
				Help:      "Total number of due entries the pool refused",
			},
			[]string{"scheduler_name"},
		),

		SchedulerEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "scheduler",
				Name:      "entries",
				Help:      "Number of entries currently scheduled",
			},
			[]string{"scheduler_name"},
		),
	}
}
