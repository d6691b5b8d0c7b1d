package threadpool

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/taskpool/internal/testutil"
	tperrors "github.com/vnykmshr/taskpool/pkg/common/errors"
)

func square(arg interface{}) interface{} {
	x := arg.(int)
	return x * x
}

// gated returns a callable that blocks until gate is closed, then returns v.
func gated(gate <-chan struct{}, v interface{}) Func {
	return func(interface{}) interface{} {
		<-gate
		return v
	}
}

func newPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	p, err := NewWithConfig(cfg)
	testutil.AssertNoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"single worker", Config{MaxWorkers: 1}, false},
		{"max workers", Config{MaxWorkers: MaxThreads}, false},
		{"explicit capacity", Config{MaxWorkers: 2, MaxTasks: 10}, false},
		{"max capacity", Config{MaxWorkers: 2, MaxTasks: MaxQueuedTasks}, false},
		{"zero workers", Config{MaxWorkers: 0}, true},
		{"negative workers", Config{MaxWorkers: -1}, true},
		{"too many workers", Config{MaxWorkers: MaxThreads + 1}, true},
		{"negative capacity", Config{MaxWorkers: 1, MaxTasks: -5}, true},
		{"capacity above bound", Config{MaxWorkers: 1, MaxTasks: MaxQueuedTasks + 1}, true},
		{"negative idle wait", Config{MaxWorkers: 1, IdleWait: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewWithConfig(tt.config)
			if tt.wantErr {
				testutil.AssertErrorIs(t, err, ErrInvalidArgument)
				if !tperrors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, p.WorkerCount(), 0)
			testutil.AssertNoError(t, p.Delete())
		})
	}
}

func TestNewDefaults(t *testing.T) {
	p, err := New(3)
	testutil.AssertNoError(t, err)
	defer p.Delete()

	testutil.AssertEqual(t, p.config.MaxTasks, MaxQueuedTasks)
	testutil.AssertEqual(t, p.config.IdleWait, DefaultIdleWait)
	testutil.AssertEqual(t, p.config.Name, "default")
}

func TestSquares(t *testing.T) {
	p := newPool(t, Config{MaxWorkers: 2})

	tasks := make([]*Task, 5)
	for i := range tasks {
		tasks[i] = NewTask(square, i+1)
		testutil.AssertNoError(t, p.Push(tasks[i]))
		if n := p.WorkerCount(); n > 2 {
			t.Fatalf("worker count %d exceeds max", n)
		}
	}

	results := make([]int, 0, len(tasks))
	for _, task := range tasks {
		v, err := task.Join()
		testutil.AssertNoError(t, err)
		results = append(results, v.(int))
		testutil.AssertNoError(t, task.Delete())
	}
	sort.Ints(results)

	want := []int{1, 4, 9, 16, 25}
	for i := range want {
		testutil.AssertEqual(t, results[i], want[i])
	}
	if n := p.WorkerCount(); n < 1 || n > 2 {
		t.Fatalf("worker count = %d, want 1..2", n)
	}
	testutil.AssertNoError(t, p.Delete())
}

func TestFIFOWithSingleWorker(t *testing.T) {
	p := newPool(t, Config{MaxWorkers: 1})

	var mu sync.Mutex
	var order []int

	const n = 50
	tasks := make([]*Task, n)
	for i := 0; i < n; i++ {
		tasks[i] = NewTask(func(arg interface{}) interface{} {
			mu.Lock()
			order = append(order, arg.(int))
			mu.Unlock()
			return nil
		}, i)
		testutil.AssertNoError(t, p.Push(tasks[i]))
	}
	for _, task := range tasks {
		_, err := task.Join()
		testutil.AssertNoError(t, err)
	}

	testutil.AssertEqual(t, len(order), n)
	for i, v := range order {
		testutil.AssertEqual(t, v, i)
	}
	testutil.AssertEqual(t, p.WorkerCount(), 1)
	testutil.AssertNoError(t, p.Delete())
}

func TestCapacity(t *testing.T) {
	p := newPool(t, Config{MaxWorkers: 1, MaxTasks: 3})
	gate := make(chan struct{})

	tasks := make([]*Task, 3)
	for i := range tasks {
		tasks[i] = NewTask(gated(gate, i), nil)
		testutil.AssertNoError(t, p.Push(tasks[i]))
	}

	extra := NewTask(square, 4)
	err := p.Push(extra)
	testutil.AssertErrorIs(t, err, ErrTooManyTasks)
	testutil.AssertErrorIs(t, err, tperrors.ErrCapacityExceeded)
	testutil.AssertEqual(t, extra.State(), StateInit)
	testutil.AssertEqual(t, p.Stats().Pending, 3)

	close(gate)
	for i, task := range tasks {
		v, err := task.Join()
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, v.(int), i)
	}

	// Capacity frees up once tasks are joined, and the queue is still intact.
	testutil.AssertNoError(t, p.Push(extra))
	v, err := extra.Join()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.(int), 16)
	testutil.AssertNoError(t, p.Delete())
}

func TestFinishedTasksFreeCapacity(t *testing.T) {
	p := newPool(t, Config{MaxWorkers: 1, MaxTasks: 1})

	first := NewTask(square, 3)
	testutil.AssertNoError(t, p.Push(first))
	testutil.Eventually(t, first.IsFinished, time.Second, time.Millisecond)
	testutil.Eventually(t, func() bool { return p.Stats().Pending == 0 }, time.Second, time.Millisecond)
	testutil.AssertEqual(t, p.Stats().Unjoined, 1)

	// The finished, unjoined task leaves room for another push.
	second := NewTask(square, 4)
	testutil.AssertNoError(t, p.Push(second))
	v, err := second.Join()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.(int), 16)

	v, err = first.Join()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.(int), 9)
	testutil.AssertEqual(t, p.Stats(), Stats{Workers: 1})
	testutil.AssertNoError(t, p.Delete())
}

func TestDeleteWithFinishedUnjoinedTask(t *testing.T) {
	var released testutil.CallbackTracker
	p := newPool(t, Config{
		MaxWorkers:    1,
		OnTaskRelease: func(task *Task) { released.Mark(task) },
	})

	joined := NewTask(square, 5)
	detached := NewTask(square, 6)
	testutil.AssertNoError(t, p.Push(joined))
	testutil.AssertNoError(t, p.Push(detached))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, p.WaitIdle(ctx))
	testutil.AssertEqual(t, p.Stats().Unjoined, 2)

	testutil.AssertNoError(t, p.Delete())

	// Results survive the pool.
	v, err := joined.Join()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.(int), 25)
	testutil.AssertNoError(t, detached.Detach())
	released.AssertCallCount(t, 1)
	testutil.AssertEqual(t, p.Stats().Unjoined, 0)
	testutil.AssertErrorIs(t, p.Push(joined), ErrClosed)
}

func TestDelete(t *testing.T) {
	var stopped testutil.CallbackTracker
	p := newPool(t, Config{
		MaxWorkers:   2,
		OnWorkerStop: func(id int) { stopped.Mark(id) },
	})
	gate := make(chan struct{})

	task := NewTask(gated(gate, "done"), nil)
	testutil.AssertNoError(t, p.Push(task))

	err := p.Delete()
	testutil.AssertErrorIs(t, err, ErrHasTasks)

	close(gate)
	v, err := task.Join()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.(string), "done")

	testutil.AssertNoError(t, p.Delete())
	stopped.AssertCallCount(t, p.WorkerCount())

	testutil.AssertErrorIs(t, p.Delete(), ErrClosed)
	testutil.AssertErrorIs(t, p.Push(task), ErrClosed)
	testutil.AssertErrorIs(t, p.Push(task), tperrors.ErrClosed)
}

func TestPushNil(t *testing.T) {
	p := newPool(t, Config{MaxWorkers: 1})
	defer p.Delete()

	testutil.AssertErrorIs(t, p.Push(nil), ErrInvalidArgument)
}

func TestWorkerCountNeverExceedsMax(t *testing.T) {
	const maxWorkers = 4
	var started testutil.CallbackTracker
	p := newPool(t, Config{
		MaxWorkers:    maxWorkers,
		OnWorkerStart: func(id int) { started.Mark(id) },
	})

	const pushers = 8
	const perPusher = 50

	var mu sync.Mutex
	var tasks []*Task
	var g errgroup.Group
	for i := 0; i < pushers; i++ {
		g.Go(func() error {
			for j := 0; j < perPusher; j++ {
				task := NewTask(func(arg interface{}) interface{} {
					time.Sleep(100 * time.Microsecond)
					return arg
				}, j)
				if err := p.Push(task); err != nil {
					return err
				}
				if s := p.Stats(); s.Workers > maxWorkers || s.Busy > s.Workers {
					return errors.New("worker counters out of bounds")
				}
				mu.Lock()
				tasks = append(tasks, task)
				mu.Unlock()
			}
			return nil
		})
	}
	testutil.AssertNoError(t, g.Wait())

	for _, task := range tasks {
		_, err := task.Join()
		testutil.AssertNoError(t, err)
	}

	if n := p.WorkerCount(); n > maxWorkers {
		t.Fatalf("worker count = %d, want <= %d", n, maxWorkers)
	}
	testutil.AssertNoError(t, p.Delete())
	started.AssertCallCount(t, p.WorkerCount())
}

func TestStatsMidRun(t *testing.T) {
	p := newPool(t, Config{MaxWorkers: 1})
	gate := make(chan struct{})

	tasks := []*Task{
		NewTask(gated(gate, 1), nil),
		NewTask(gated(gate, 2), nil),
		NewTask(gated(gate, 3), nil),
	}
	for _, task := range tasks {
		testutil.AssertNoError(t, p.Push(task))
	}

	testutil.Eventually(t, func() bool { return p.Stats().Busy == 1 }, time.Second, time.Millisecond)
	s := p.Stats()
	testutil.AssertEqual(t, s, Stats{Pending: 3, Queued: 2, Workers: 1, Busy: 1})
	testutil.AssertEqual(t, tasks[0].State(), StateRunning)
	testutil.AssertEqual(t, tasks[1].State(), StateWaiting)

	close(gate)
	for _, task := range tasks {
		_, err := task.Join()
		testutil.AssertNoError(t, err)
	}
	testutil.Eventually(t, func() bool { return p.Stats() == Stats{Workers: 1} }, time.Second, time.Millisecond)
	testutil.AssertNoError(t, p.Delete())
}

func TestWaitIdle(t *testing.T) {
	p := newPool(t, Config{MaxWorkers: 2})
	gate := make(chan struct{})

	testutil.AssertNoError(t, p.WaitIdle(context.Background()))

	task := NewTask(gated(gate, nil), nil)
	testutil.AssertNoError(t, p.Push(task))
	testutil.AssertNoError(t, task.Detach())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	testutil.AssertErrorIs(t, p.WaitIdle(ctx), context.DeadlineExceeded)

	close(gate)
	wctx, wcancel := testutil.WithTimeout(t)
	defer wcancel()
	testutil.AssertNoError(t, p.WaitIdle(wctx))
	testutil.AssertNoError(t, p.Delete())
}

func TestIdleWorkerPicksUpLaterPush(t *testing.T) {
	// A long IdleWait proves the explicit wake-up, not the poll, delivers the task.
	p := newPool(t, Config{MaxWorkers: 1, IdleWait: time.Hour})

	first := NewTask(square, 2)
	testutil.AssertNoError(t, p.Push(first))
	_, err := first.Join()
	testutil.AssertNoError(t, err)

	second := NewTask(square, 5)
	testutil.AssertNoError(t, p.Push(second))
	v, err := second.JoinTimeout(time.Second)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.(int), 25)
	testutil.AssertEqual(t, p.WorkerCount(), 1)

	testutil.AssertNoError(t, p.Delete())
}

func TestLifecycleHooks(t *testing.T) {
	var taskStarts, completions testutil.CallbackTracker
	p := newPool(t, Config{
		MaxWorkers:  2,
		OnTaskStart: func(id int, task *Task) { taskStarts.Mark(task) },
		OnTaskComplete: func(id int, r Result) {
			if r.WorkerID != id {
				t.Errorf("result worker %d, hook worker %d", r.WorkerID, id)
			}
			completions.Mark(r.Value)
		},
	})

	task := NewTask(square, 6)
	testutil.AssertNoError(t, p.Push(task))
	_, err := task.Join()
	testutil.AssertNoError(t, err)

	testutil.Eventually(t, func() bool { return completions.CallCount() == 1 }, time.Second, time.Millisecond)
	taskStarts.AssertCallCount(t, 1)
	testutil.AssertEqual(t, completions.Value().(int), 36)
	testutil.AssertNoError(t, p.Delete())
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := newPool(t, Config{MaxWorkers: 1, Name: "logged", Logger: zap.New(core)})

	task := NewTask(func(interface{}) interface{} { panic("boom") }, nil)
	testutil.AssertNoError(t, p.Push(task))
	_, err := task.Join()
	testutil.AssertError(t, err)
	testutil.AssertNoError(t, p.Delete())

	testutil.AssertEqual(t, logs.FilterMessage("worker created").Len(), 1)
	testutil.AssertEqual(t, logs.FilterMessage("worker stopped").Len(), 1)
	testutil.AssertEqual(t, logs.FilterMessage("pool deleted").Len(), 1)

	panics := logs.FilterMessage("task panicked").All()
	testutil.AssertEqual(t, len(panics), 1)
	testutil.AssertEqual(t, panics[0].Level, zapcore.WarnLevel)
	testutil.AssertEqual(t, panics[0].LoggerName, "threadpool")
	testutil.AssertEqual(t, panics[0].ContextMap()["pool"].(string), "logged")
}
