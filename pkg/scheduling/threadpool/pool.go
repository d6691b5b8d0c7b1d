package threadpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/taskpool/pkg/common/validation"
	"github.com/vnykmshr/taskpool/pkg/metrics"
)

const (
	// MaxThreads is the upper bound for Config.MaxWorkers.
	MaxThreads = 20

	// MaxQueuedTasks is the upper bound for Config.MaxTasks.
	MaxQueuedTasks = 100000

	// DefaultIdleWait bounds how long an idle worker sleeps before it
	// re-checks the queue and the shutdown flag on its own.
	DefaultIdleWait = 100 * time.Millisecond
)

// Result describes one completed run of a task. It is handed to
// Config.OnTaskComplete.
type Result struct {
	// Task is the task that ran. It may already be joined or released.
	Task *Task

	// Value is what the callable returned, nil if it panicked.
	Value interface{}

	// Err is a *PanicError if the callable panicked.
	Err error

	// Duration is how long the callable ran.
	Duration time.Duration

	// WorkerID identifies which worker executed the task.
	WorkerID int
}

// Config holds configuration options for creating a pool.
type Config struct {
	// MaxWorkers is the most workers the pool will ever create.
	// Must lie in [1, MaxThreads].
	MaxWorkers int

	// MaxTasks caps the number of pending tasks, those waiting or running.
	// Zero means MaxQueuedTasks. Must lie in [1, MaxQueuedTasks].
	MaxTasks int

	// IdleWait is the longest an idle worker waits for a wake-up before
	// polling again. Zero means DefaultIdleWait.
	IdleWait time.Duration

	// Name labels the pool in logs and metrics. Defaults to "default".
	Name string

	// Logger receives lifecycle logs. Nil disables logging.
	Logger *zap.Logger

	// Metrics receives pool instrumentation. Nil disables metrics.
	Metrics *metrics.Registry

	// OnWorkerStart is called when a worker starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops.
	OnWorkerStop func(workerID int)

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int, task *Task)

	// OnTaskComplete is called after a task completes, panics included.
	OnTaskComplete func(workerID int, result Result)

	// OnTaskRelease is called once for every detached task when it is released.
	OnTaskRelease func(task *Task)
}

// Stats is a point-in-time snapshot of the pool's counters.
type Stats struct {
	// Pending counts tasks waiting or running.
	Pending int
	// Unjoined counts finished tasks nobody has joined or detached yet.
	Unjoined int
	// Queued counts tasks waiting for a worker.
	Queued int
	// Workers counts created workers.
	Workers int
	// Busy counts workers executing a task.
	Busy int
}

// Pool owns a FIFO queue of tasks and a lazily grown set of workers.
type Pool struct {
	config Config
	log    *zap.Logger
	stats  *instruments

	mu       sync.Mutex
	queue    taskQueue
	pending  int
	unjoined int
	created  int
	busy     int
	closed   bool
	// idle is closed whenever pending drops to zero.
	idle chan struct{}

	wake       chan struct{}
	shutdownCh chan struct{}
	workerWg   sync.WaitGroup
}

// New creates a pool that grows up to maxWorkers workers.
func New(maxWorkers int) (*Pool, error) {
	return NewWithConfig(Config{MaxWorkers: maxWorkers})
}

// NewWithConfig creates a pool with the specified configuration.
// Out-of-range values are rejected with an error wrapping ErrInvalidArgument.
func NewWithConfig(config Config) (*Pool, error) {
	if err := validation.ValidateRange("threadpool", "MaxWorkers", config.MaxWorkers, 1, MaxThreads); err != nil {
		return nil, err
	}
	if config.MaxTasks == 0 {
		config.MaxTasks = MaxQueuedTasks
	}
	if err := validation.ValidateRange("threadpool", "MaxTasks", config.MaxTasks, 1, MaxQueuedTasks); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("threadpool", "IdleWait", float64(config.IdleWait)); err != nil {
		return nil, err
	}
	if config.IdleWait == 0 {
		config.IdleWait = DefaultIdleWait
	}
	if config.Name == "" {
		config.Name = "default"
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	idle := make(chan struct{})
	close(idle)

	p := &Pool{
		config:     config,
		log:        logger.Named("threadpool").With(zap.String("pool", config.Name)),
		stats:      newInstruments(config.Metrics, config.Name),
		idle:       idle,
		wake:       make(chan struct{}, config.MaxWorkers),
		shutdownCh: make(chan struct{}),
	}
	p.stats.publish(Stats{})
	return p, nil
}

// Push appends task to the queue. The task must be in StateInit.
func (p *Pool) Push(task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil: %w", ErrInvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.stats.rejected("closed")
		return ErrClosed
	}

	task.mu.Lock()
	switch {
	case task.released.Load():
		task.mu.Unlock()
		p.stats.rejected("released")
		return ErrTaskReleased
	case task.state != StateInit:
		task.mu.Unlock()
		p.stats.rejected("already_queued")
		return ErrTaskAlreadyQueued
	case p.pending >= p.config.MaxTasks:
		task.mu.Unlock()
		p.stats.rejected("capacity")
		return ErrTooManyTasks
	}
	task.state = StateWaiting
	task.pool = p
	task.detached = false
	task.result, task.err = nil, nil
	task.done = make(chan struct{})
	task.pushedAt = time.Now()
	task.mu.Unlock()

	p.queue.push(task)
	if p.pending == 0 {
		p.idle = make(chan struct{})
	}
	p.pending++

	if p.busy == p.created && p.created < p.config.MaxWorkers {
		p.spawnLocked()
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}

	p.stats.pushed()
	p.stats.publish(p.statsLocked())
	return nil
}

// spawnLocked starts one more worker. Callers hold p.mu.
func (p *Pool) spawnLocked() {
	w := &worker{id: p.created, pool: p}
	p.created++
	p.workerWg.Add(1)
	go w.run()
	p.log.Debug("worker created", zap.Int("worker", w.id), zap.Int("workers", p.created))
}

// WorkerCount returns the number of workers created so far.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

func (p *Pool) statsLocked() Stats {
	return Stats{
		Pending:  p.pending,
		Unjoined: p.unjoined,
		Queued:   p.queue.len(),
		Workers:  p.created,
		Busy:     p.busy,
	}
}

// WaitIdle blocks until no task is waiting or running, or ctx is done.
// Finished tasks that still await Join do not hold it up.
func (p *Pool) WaitIdle(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.pending == 0 {
			p.mu.Unlock()
			return nil
		}
		idle := p.idle
		p.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Delete stops every worker and waits for them to exit. It fails with
// ErrHasTasks while any task is waiting or running. Finished tasks can
// still be joined or detached after Delete.
func (p *Pool) Delete() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.pending > 0 {
		pending := p.pending
		p.mu.Unlock()
		return fmt.Errorf("%w: %d pending", ErrHasTasks, pending)
	}
	p.closed = true
	close(p.shutdownCh)
	workers := p.created
	p.mu.Unlock()

	p.workerWg.Wait()
	p.log.Info("pool deleted", zap.Int("workers", workers))
	return nil
}

// next blocks until a task is available or the pool is deleted. The
// returned task has already moved to StateRunning.
func (p *Pool) next(timer *time.Timer) (*Task, bool) {
	for {
		p.mu.Lock()
		if t := p.queue.pop(); t != nil {
			t.mu.Lock()
			t.state = StateRunning
			t.mu.Unlock()
			p.busy++
			p.stats.publish(p.statsLocked())
			p.mu.Unlock()
			return t, true
		}
		if p.closed {
			p.mu.Unlock()
			return nil, false
		}
		p.mu.Unlock()

		timer.Reset(p.config.IdleWait)
		select {
		case <-p.wake:
		case <-p.shutdownCh:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// finish records the outcome of a run and frees the worker. It reports
// whether the worker won the release of a detached task; such a task stays
// pending until release has run.
func (p *Pool) finish(t *Task, value interface{}, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.busy--
	if t.finish(value, err) {
		p.stats.publish(p.statsLocked())
		return true
	}
	p.unjoined++
	p.decPendingLocked()
	return false
}

// collect accounts for a task consumed by Join.
func (p *Pool) collect() {
	p.mu.Lock()
	p.unjoined--
	p.stats.publish(p.statsLocked())
	p.mu.Unlock()
}

// release notifies OnTaskRelease and accounts for a detached task. On the
// worker side the hook runs before the pending count drops, so WaitIdle
// observes it.
func (p *Pool) release(t *Task, side string) {
	p.stats.released(side)
	if p.config.OnTaskRelease != nil {
		p.config.OnTaskRelease(t)
	}

	p.mu.Lock()
	if side == sideWorker {
		p.decPendingLocked()
	} else {
		p.unjoined--
		p.stats.publish(p.statsLocked())
	}
	p.mu.Unlock()
}

func (p *Pool) decPendingLocked() {
	p.pending--
	if p.pending == 0 {
		close(p.idle)
	}
	p.stats.publish(p.statsLocked())
}
