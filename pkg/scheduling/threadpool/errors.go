package threadpool

import (
	"errors"
	"fmt"

	tperrors "github.com/vnykmshr/taskpool/pkg/common/errors"
)

var (
	// ErrInvalidArgument is wrapped by every configuration rejected by New.
	ErrInvalidArgument = tperrors.ErrInvalidConfiguration

	// ErrTooManyTasks is returned by Push when the pending count has reached MaxTasks.
	ErrTooManyTasks = fmt.Errorf("too many tasks: %w", tperrors.ErrCapacityExceeded)

	// ErrHasTasks is returned by Delete while tasks are waiting or running.
	ErrHasTasks = errors.New("pool has pending tasks")

	// ErrClosed is returned by Push and Delete once the pool was deleted.
	ErrClosed = fmt.Errorf("pool is deleted: %w", tperrors.ErrClosed)

	// ErrTaskNotPushed is returned by Join and Detach on a task in StateInit.
	ErrTaskNotPushed = errors.New("task is not pushed")

	// ErrTaskInPool is returned by Delete on a task that is not in StateInit.
	ErrTaskInPool = errors.New("task is still owned by a pool")

	// ErrTaskAlreadyQueued is returned by Push on a task that is not in StateInit.
	ErrTaskAlreadyQueued = errors.New("task is already queued")

	// ErrTaskDetached is returned by Join and Detach on a detached task.
	ErrTaskDetached = errors.New("task is detached")

	// ErrTaskReleased is returned by every operation on a deleted or released task.
	ErrTaskReleased = errors.New("task has been released")
)

// PanicError is returned by Join when the task's callable panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v\nStack trace:\n%s", e.Value, e.Stack)
}
