package domain

import "time"

// ChangeOperation describes a persisted activity operation for a task.
type ChangeOperation string

// ChangeOperation values used by the local activity ledger.
const (
	ChangeOperationCreate ChangeOperation = "create"
	ChangeOperationUpdate ChangeOperation = "update"
	ChangeOperationMove   ChangeOperation = "move"
	ChangeOperationDelete ChangeOperation = "delete"
	ChangeOperationLoad   ChangeOperation = "load"
)

// ChangeEvent represents a single activity-log entry for the board.
type ChangeEvent struct {
	ID         int64
	TaskID     int64
	Operation  ChangeOperation
	Metadata   map[string]string
	OccurredAt time.Time
}
