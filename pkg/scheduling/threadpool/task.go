package threadpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	tperrors "github.com/vnykmshr/taskpool/pkg/common/errors"
	tpcontext "github.com/vnykmshr/taskpool/pkg/common/context"
)

// Func is the work a Task performs. It receives the argument given to NewTask
// and its return value becomes the task's result.
type Func func(arg interface{}) interface{}

// State is a point in a task's lifecycle.
type State int32

const (
	// StateInit is the initial, reusable state. Only tasks in StateInit may be pushed or deleted.
	StateInit State = iota
	// StateWaiting means the task is queued and no worker has picked it up yet.
	StateWaiting
	// StateRunning means a worker is executing the task.
	StateRunning
	// StateFinished means the result is available to Join.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Task is a unit of deferred work with a single result slot.
//
// A Task is reusable: after a successful Join it returns to StateInit and may
// be pushed again. A detached task is released exactly once, by whichever of
// the detaching caller or the completing worker observes completion first.
type Task struct {
	fn  Func
	arg interface{}

	// mu guards every field below except released. The detached flag and
	// the state share it so the release decision is a single critical section.
	mu       sync.Mutex
	state    State
	result   interface{}
	err      error
	detached bool
	done     chan struct{}
	pool     *Pool
	pushedAt time.Time

	released atomic.Bool
}

// NewTask creates a task in StateInit.
func NewTask(fn Func, arg interface{}) *Task {
	return &Task{
		fn:  fn,
		arg: arg,
	}
}

// State returns a snapshot of the task's lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsFinished reports whether the result is ready to be joined.
func (t *Task) IsFinished() bool {
	return t.State() == StateFinished
}

// IsRunning reports whether a worker is executing the task.
func (t *Task) IsRunning() bool {
	return t.State() == StateRunning
}

// Join blocks until the task finishes, returns its result and resets the
// task to StateInit. A non-nil error is either a protocol error or a
// *PanicError raised by the callable.
func (t *Task) Join() (interface{}, error) {
	return t.JoinContext(context.Background())
}

// JoinTimeout is Join bounded by timeout. On expiry it returns an error
// wrapping ErrTimeout and the task stays pushed, so it can be joined again.
func (t *Task) JoinTimeout(timeout time.Duration) (interface{}, error) {
	ctx, cancel := tpcontext.WithTimeoutOrCancel(context.Background(), timeout)
	defer cancel()

	value, err := t.JoinContext(ctx)
	if err != nil && tpcontext.IsTimedOut(ctx) && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("join: %w", tperrors.ErrTimeout)
	}
	return value, err
}

// JoinContext is Join that gives up when ctx is done. Giving up does not
// affect the task: it keeps running and can be joined or detached later.
func (t *Task) JoinContext(ctx context.Context) (interface{}, error) {
	t.mu.Lock()
	if err := t.checkPushedLocked(); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	done := t.done
	t.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.mu.Lock()
	if t.released.Load() {
		t.mu.Unlock()
		return nil, ErrTaskReleased
	}
	// Another joiner got here first and the task may already be queued again.
	if t.state != StateFinished || t.done != done {
		t.mu.Unlock()
		return nil, ErrTaskNotPushed
	}
	value, err := t.result, t.err
	pool := t.pool
	t.state = StateInit
	t.result, t.err, t.pool = nil, nil, nil
	t.mu.Unlock()

	pool.collect()
	return value, err
}

// Detach relinquishes the caller's intent to join. A finished task is
// released right away; otherwise the worker releases it on completion.
func (t *Task) Detach() error {
	t.mu.Lock()
	if err := t.checkPushedLocked(); err != nil {
		t.mu.Unlock()
		return err
	}
	t.detached = true
	if t.state != StateFinished || !t.released.CompareAndSwap(false, true) {
		t.mu.Unlock()
		return nil
	}
	pool := t.pool
	t.result, t.err, t.pool = nil, nil, nil
	t.mu.Unlock()

	pool.release(t, sideCaller)
	return nil
}

// Delete discards a task that is not owned by any pool.
func (t *Task) Delete() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released.Load() {
		return ErrTaskReleased
	}
	if t.state != StateInit {
		return ErrTaskInPool
	}
	t.released.Store(true)
	return nil
}

func (t *Task) checkPushedLocked() error {
	switch {
	case t.released.Load():
		return ErrTaskReleased
	case t.state == StateInit:
		return ErrTaskNotPushed
	case t.detached:
		return ErrTaskDetached
	}
	return nil
}

// call runs the callable, converting a panic into a *PanicError.
func (t *Task) call() (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return t.fn(t.arg), nil
}

// finish stores the outcome of a run. It reports whether the calling
// worker won the release of a detached task.
func (t *Task) finish(value interface{}, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = StateFinished
	close(t.done)
	if t.detached && t.released.CompareAndSwap(false, true) {
		t.result, t.err, t.pool = nil, nil, nil
		return true
	}
	t.result, t.err = value, err
	return false
}
