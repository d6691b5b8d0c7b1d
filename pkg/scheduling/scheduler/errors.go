package scheduler

import (
	"errors"
	"fmt"

	tperrors "github.com/vnykmshr/taskpool/pkg/common/errors"
)

var (
	// ErrEntryExists is returned when an id is already scheduled.
	ErrEntryExists = errors.New("entry already exists, cancel it first")

	// ErrEntryNotFound is returned by UpdateCron for an unknown or non-cron id.
	ErrEntryNotFound = errors.New("cron entry not found")

	// ErrTooManyEntries is returned when MaxEntries entries are scheduled.
	ErrTooManyEntries = fmt.Errorf("maximum number of entries reached: %w", tperrors.ErrCapacityExceeded)

	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")

	// ErrStopped is returned by every scheduling call after Stop.
	ErrStopped = fmt.Errorf("scheduler stopped: %w", tperrors.ErrClosed)
)
