package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/taskpool/pkg/common/validation"
	"github.com/vnykmshr/taskpool/pkg/scheduling/threadpool"
)

// cronParser accepts six fields (seconds first) and descriptors such as @daily.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronOptions provides configuration for cron entries.
type CronOptions struct {
	// MaxRuns limits the number of times the entry fires (0 = unlimited).
	MaxRuns int

	// Location evaluates the expression. Defaults to Config.Location.
	Location *time.Location
}

// CronDescription provides human-readable information about a cron expression.
type CronDescription struct {
	Expression  string
	Description string
	NextRuns    []time.Time
	TimeZone    string
}

// ScheduleCron schedules fn using a cron expression.
// Examples:
//
//	"0 0 */2 * * *"   - every 2 hours
//	"0 30 14 * * 1-5" - 2:30 PM on weekdays
//	"@daily"          - every day at midnight
//	"@every 90s"      - every 90 seconds
func (s *scheduler) ScheduleCron(id string, cronExpr string, fn threadpool.Func, arg interface{}) error {
	return s.ScheduleCronWithOptions(id, cronExpr, fn, arg, CronOptions{})
}

func (s *scheduler) ScheduleCronWithOptions(id string, cronExpr string, fn threadpool.Func, arg interface{}, options CronOptions) error {
	if err := validateEntry(id, fn); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("scheduler", "MaxRuns", float64(options.MaxRuns)); err != nil {
		return err
	}
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	location := options.Location
	if location == nil {
		location = s.location
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	return s.addLocked(&scheduledEntry{
		id:       id,
		fn:       fn,
		arg:      arg,
		runAt:    schedule.Next(now.In(location)),
		cronExpr: cronExpr,
		schedule: schedule,
		location: location,
		maxRuns:  options.MaxRuns,
		created:  now,
	})
}

// UpdateCron replaces the expression of an existing cron entry and
// recomputes its next run. The run count is kept.
func (s *scheduler) UpdateCron(id string, cronExpr string) error {
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.schedule == nil {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, id)
	}
	e.cronExpr = cronExpr
	e.schedule = schedule
	e.runAt = schedule.Next(s.clock.Now().In(e.location))
	return nil
}

// ValidateCronExpression validates a cron expression without scheduling it.
func ValidateCronExpression(cronExpr string) error {
	_, err := parseCron(cronExpr)
	return err
}

// DescribeCron returns the next n activations of cronExpr after from.
func DescribeCron(cronExpr string, from time.Time, n int) (CronDescription, error) {
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return CronDescription{}, err
	}

	nextRuns := make([]time.Time, 0, n)
	current := from
	for i := 0; i < n; i++ {
		current = schedule.Next(current)
		if current.IsZero() {
			break
		}
		nextRuns = append(nextRuns, current)
	}

	return CronDescription{
		Expression:  cronExpr,
		Description: describe(cronExpr),
		NextRuns:    nextRuns,
		TimeZone:    from.Location().String(),
	}, nil
}

func parseCron(cronExpr string) (cron.Schedule, error) {
	if err := validation.ValidateNotEmpty("scheduler", "cronExpr", cronExpr); err != nil {
		return nil, err
	}
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return schedule, nil
}

func describe(cronExpr string) string {
	switch cronExpr {
	case "@yearly", "@annually":
		return "Once a year (January 1st at midnight)"
	case "@monthly":
		return "Once a month (1st day at midnight)"
	case "@weekly":
		return "Once a week (Sunday at midnight)"
	case "@daily", "@midnight":
		return "Once a day (at midnight)"
	case "@hourly":
		return "Once an hour (at minute 0)"
	}
	return fmt.Sprintf("Custom schedule: %s", cronExpr)
}
