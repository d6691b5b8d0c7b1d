package threadpool

import (
	"time"

	"github.com/vnykmshr/taskpool/pkg/metrics"
)

const (
	sideCaller = "caller"
	sideWorker = "worker"
)

// instruments records pool activity into a metrics.Registry. A nil
// *instruments is valid and records nothing.
type instruments struct {
	registry *metrics.Registry
	name     string
}

func newInstruments(registry *metrics.Registry, name string) *instruments {
	if registry == nil {
		return nil
	}
	return &instruments{registry: registry, name: name}
}

func (m *instruments) pushed() {
	if m == nil {
		return
	}
	m.registry.TasksPushed.WithLabelValues(m.name).Inc()
}

func (m *instruments) rejected(reason string) {
	if m == nil {
		return
	}
	m.registry.TasksRejected.WithLabelValues(m.name, reason).Inc()
}

func (m *instruments) queueWait(d time.Duration) {
	if m == nil {
		return
	}
	m.registry.TaskQueueWait.WithLabelValues(m.name).Observe(d.Seconds())
}

func (m *instruments) ran(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.registry.TaskRunDuration.WithLabelValues(m.name).Observe(d.Seconds())
	if err != nil {
		m.registry.TasksPanicked.WithLabelValues(m.name).Inc()
		return
	}
	m.registry.TasksCompleted.WithLabelValues(m.name).Inc()
}

func (m *instruments) released(side string) {
	if m == nil {
		return
	}
	m.registry.TasksReleased.WithLabelValues(m.name, side).Inc()
}

// publish mirrors a Stats snapshot into the gauges. Callers hold the pool mutex.
func (m *instruments) publish(s Stats) {
	if m == nil {
		return
	}
	m.registry.WorkersCreated.WithLabelValues(m.name).Set(float64(s.Workers))
	m.registry.WorkersBusy.WithLabelValues(m.name).Set(float64(s.Busy))
	m.registry.TasksPending.WithLabelValues(m.name).Set(float64(s.Pending))
	m.registry.TasksUnjoined.WithLabelValues(m.name).Set(float64(s.Unjoined))
}
