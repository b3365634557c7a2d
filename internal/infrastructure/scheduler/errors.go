package scheduler

import "errors"

var (
	// ErrSchedulerRunning is returned when adding a task to a started scheduler
	ErrSchedulerRunning = errors.New("scheduler is already running")

	// ErrInvalidTask is returned for tasks without a name, a positive interval or a run function
	ErrInvalidTask = errors.New("invalid scheduler task")

	// ErrDuplicateTask is returned when two tasks share a name
	ErrDuplicateTask = errors.New("duplicate scheduler task")
)
