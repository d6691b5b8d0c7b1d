package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	tperrors "github.com/vnykmshr/taskpool/pkg/common/errors"
	"github.com/vnykmshr/taskpool/pkg/common/validation"
	"github.com/vnykmshr/taskpool/pkg/metrics"
	"github.com/vnykmshr/taskpool/pkg/scheduling/threadpool"
)

const (
	// DefaultTickInterval is how often due entries are checked.
	DefaultTickInterval = 50 * time.Millisecond

	// DefaultMaxEntries bounds the number of scheduled entries.
	DefaultMaxEntries = 10000

	// DefaultPoolWorkers sizes the pool a scheduler creates for itself.
	DefaultPoolWorkers = 4

	maxIDLength = 255
)

// Entry describes a scheduled entry.
type Entry struct {
	ID       string
	RunAt    time.Time
	Interval time.Duration // Zero for one-time and cron entries
	CronExpr string        // Empty unless scheduled with ScheduleCron
	Created  time.Time
	Runs     int
}

// Scheduler pushes tasks into a threadpool.Pool at chosen times. Every fired
// entry becomes a fresh, detached threadpool.Task.
type Scheduler interface {
	// Basic scheduling
	Schedule(id string, fn threadpool.Func, arg interface{}, runAt time.Time) error
	ScheduleAfter(id string, fn threadpool.Func, arg interface{}, delay time.Duration) error
	ScheduleRepeating(id string, fn threadpool.Func, arg interface{}, interval time.Duration) error

	// Cron scheduling
	ScheduleCron(id string, cronExpr string, fn threadpool.Func, arg interface{}) error
	ScheduleCronWithOptions(id string, cronExpr string, fn threadpool.Func, arg interface{}, options CronOptions) error
	UpdateCron(id string, cronExpr string) error

	// Entry management
	Cancel(id string) bool
	CancelAll()
	List() []Entry
	Next(id string) (time.Time, bool)

	// Lifecycle
	Start() error
	Stop(ctx context.Context) error
}

// Clock supplies the current time. Tests substitute a controllable clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds scheduler configuration.
type Config struct {
	// Pool receives fired tasks. Nil creates a private pool with
	// DefaultPoolWorkers workers, drained and deleted by Stop.
	Pool *threadpool.Pool

	// Location evaluates cron expressions. Defaults to time.Local.
	Location *time.Location

	// TickInterval is how often due entries are checked (default: 50ms).
	TickInterval time.Duration

	// MaxEntries caps the number of scheduled entries (default: 10000).
	MaxEntries int

	// Name labels the scheduler in logs and metrics. Defaults to "default".
	Name string

	Logger  *zap.Logger
	Metrics *metrics.Registry
	Clock   Clock

	// OnFire is called after a due entry was pushed and detached.
	OnFire func(id string, task *threadpool.Task)

	// OnDrop is called when the pool refused a due entry.
	OnDrop func(id string, err error)
}

type scheduledEntry struct {
	id       string
	fn       threadpool.Func
	arg      interface{}
	runAt    time.Time
	interval time.Duration
	cronExpr string
	schedule cron.Schedule
	location *time.Location
	maxRuns  int
	runs     int
	created  time.Time
}

type scheduler struct {
	pool         *threadpool.Pool
	ownPool      bool
	location     *time.Location
	tickInterval time.Duration
	maxEntries   int
	name         string
	clock        Clock
	log          *zap.Logger
	metrics      *metrics.Registry
	onFire       func(string, *threadpool.Task)
	onDrop       func(string, error)

	mu      sync.RWMutex
	entries map[string]*scheduledEntry
	done    chan struct{}
	running bool
	stopped bool
	loopWg  sync.WaitGroup
}

// New creates a scheduler with default configuration and its own pool.
func New() (Scheduler, error) {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) (Scheduler, error) {
	if err := validation.ValidateNonNegative("scheduler", "TickInterval", float64(cfg.TickInterval)); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("scheduler", "MaxEntries", float64(cfg.MaxEntries)); err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := cfg.Pool
	ownPool := false
	if pool == nil {
		var err error
		pool, err = threadpool.NewWithConfig(threadpool.Config{
			MaxWorkers: DefaultPoolWorkers,
			Name:       name,
			Logger:     logger,
			Metrics:    cfg.Metrics,
		})
		if err != nil {
			return nil, err
		}
		ownPool = true
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval == 0 {
		tickInterval = DefaultTickInterval
	}

	maxEntries := cfg.MaxEntries
	if maxEntries == 0 {
		maxEntries = DefaultMaxEntries
	}

	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}

	s := &scheduler{
		pool:         pool,
		ownPool:      ownPool,
		location:     location,
		tickInterval: tickInterval,
		maxEntries:   maxEntries,
		name:         name,
		clock:        clock,
		log:          logger.Named("scheduler").With(zap.String("scheduler", name)),
		metrics:      cfg.Metrics,
		onFire:       cfg.OnFire,
		onDrop:       cfg.OnDrop,
		entries:      make(map[string]*scheduledEntry),
	}
	s.publishLocked()
	return s, nil
}

func validateEntry(id string, fn threadpool.Func) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", id); err != nil {
		return err
	}
	if len(id) > maxIDLength {
		return tperrors.NewValidationError("scheduler", "id", id, "too long").
			WithHint(fmt.Sprintf("use at most %d characters", maxIDLength))
	}
	if fn == nil {
		return validation.ValidateNotNil("scheduler", "fn", nil)
	}
	return nil
}

// addLocked stores e unless its id is taken or the scheduler is full.
func (s *scheduler) addLocked(e *scheduledEntry) error {
	if s.stopped {
		return ErrStopped
	}
	if _, exists := s.entries[e.id]; exists {
		return fmt.Errorf("%w: %q", ErrEntryExists, e.id)
	}
	if len(s.entries) >= s.maxEntries {
		return fmt.Errorf("%w (%d)", ErrTooManyEntries, s.maxEntries)
	}
	s.entries[e.id] = e
	s.publishLocked()
	return nil
}

func (s *scheduler) Schedule(id string, fn threadpool.Func, arg interface{}, runAt time.Time) error {
	if err := validateEntry(id, fn); err != nil {
		return err
	}
	if runAt.IsZero() {
		return tperrors.NewValidationError("scheduler", "runAt", runAt, "cannot be zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addLocked(&scheduledEntry{
		id:      id,
		fn:      fn,
		arg:     arg,
		runAt:   runAt,
		created: s.clock.Now(),
	})
}

func (s *scheduler) ScheduleAfter(id string, fn threadpool.Func, arg interface{}, delay time.Duration) error {
	if err := validation.ValidateNonNegative("scheduler", "delay", float64(delay)); err != nil {
		return err
	}
	return s.Schedule(id, fn, arg, s.clock.Now().Add(delay))
}

// ScheduleRepeating fires immediately on the next tick, then every interval.
func (s *scheduler) ScheduleRepeating(id string, fn threadpool.Func, arg interface{}, interval time.Duration) error {
	if err := validateEntry(id, fn); err != nil {
		return err
	}
	if err := validation.ValidatePositiveFloat("scheduler", "interval", interval.Seconds()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	return s.addLocked(&scheduledEntry{
		id:       id,
		fn:       fn,
		arg:      arg,
		runAt:    now,
		interval: interval,
		created:  now,
	})
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; !exists {
		return false
	}
	delete(s.entries, id)
	s.publishLocked()
	return true
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*scheduledEntry)
	s.publishLocked()
}

// List returns every entry ordered by next run time.
func (s *scheduler) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, Entry{
			ID:       e.id,
			RunAt:    e.runAt,
			Interval: e.interval,
			CronExpr: e.cronExpr,
			Created:  e.created,
			Runs:     e.runs,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RunAt.Equal(entries[j].RunAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].RunAt.Before(entries[j].RunAt)
	})

	return entries
}

// Next returns when the entry fires next.
func (s *scheduler) Next(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.runAt, true
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.running {
		return ErrAlreadyRunning
	}

	s.running = true
	s.done = make(chan struct{})
	s.loopWg.Add(1)
	go s.run(s.done)

	s.log.Info("scheduler started", zap.Duration("tick", s.tickInterval))
	return nil
}

// Stop halts the tick loop. A pool created by the scheduler is drained and
// deleted; Stop gives up on the drain when ctx is done. Stop is final.
func (s *scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	if s.running {
		s.running = false
		close(s.done)
	}
	s.mu.Unlock()

	s.loopWg.Wait()

	if s.ownPool {
		if err := s.pool.WaitIdle(ctx); err != nil {
			return tperrors.NewOperationError("scheduler", "stop", err).WithContext("draining pool")
		}
		if err := s.pool.Delete(); err != nil {
			return tperrors.NewOperationError("scheduler", "stop", err)
		}
	}

	s.log.Info("scheduler stopped")
	return nil
}

func (s *scheduler) run(done <-chan struct{}) {
	defer s.loopWg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick fires every due entry in run-time order and reschedules the
// recurring ones. It returns the number of entries pushed.
func (s *scheduler) tick() int {
	now := s.clock.Now()

	s.mu.Lock()
	if len(s.entries) == 0 {
		s.mu.Unlock()
		return 0
	}

	ready := make([]*scheduledEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if !now.Before(e.runAt) {
			ready = append(ready, e)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].runAt.Equal(ready[j].runAt) {
			return ready[i].id < ready[j].id
		}
		return ready[i].runAt.Before(ready[j].runAt)
	})

	for _, e := range ready {
		e.runs++
		switch {
		case e.interval > 0:
			e.runAt = now.Add(e.interval)
		case e.schedule != nil && (e.maxRuns == 0 || e.runs < e.maxRuns):
			e.runAt = e.schedule.Next(now.In(e.location))
		default:
			delete(s.entries, e.id)
		}
	}
	s.publishLocked()
	s.mu.Unlock()

	fired := 0
	for _, e := range ready {
		if s.fire(e) {
			fired++
		}
	}
	return fired
}

// fire pushes a fresh task for e and detaches it.
func (s *scheduler) fire(e *scheduledEntry) bool {
	task := threadpool.NewTask(e.fn, e.arg)
	if err := s.pool.Push(task); err != nil {
		s.log.Warn("scheduled task dropped", zap.String("id", e.id), zap.Error(err))
		if s.metrics != nil {
			s.metrics.SchedulerDropped.WithLabelValues(s.name).Inc()
		}
		if s.onDrop != nil {
			s.onDrop(e.id, err)
		}
		return false
	}
	if err := task.Detach(); err != nil {
		s.log.Error("detach failed", zap.String("id", e.id), zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.SchedulerFired.WithLabelValues(s.name).Inc()
	}
	if s.onFire != nil {
		s.onFire(e.id, task)
	}
	return true
}

func (s *scheduler) publishLocked() {
	if s.metrics == nil {
		return
	}
	s.metrics.SchedulerEntries.WithLabelValues(s.name).Set(float64(len(s.entries)))
}
