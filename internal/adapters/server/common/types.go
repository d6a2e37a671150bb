// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// DefaultActivityLimit bounds activity listings when callers pass no limit.
const DefaultActivityLimit = 50

// MaxActivityLimit caps one activity listing.
const MaxActivityLimit = 500

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrUnavailable reports a missing backing service.
var ErrUnavailable = errors.New("service unavailable")

// BoardRequest selects the page size and per-column pages of one board projection.
type BoardRequest struct {
	PageSize int
	Pages    map[string]int
}

// ListTasksRequest filters one task listing. An empty status lists every task.
type ListTasksRequest struct {
	Status string
}

// AddTaskRequest creates one todo task.
type AddTaskRequest struct {
	Text string `json:"text"`
}

// EditTaskRequest replaces the text of one task.
type EditTaskRequest struct {
	ID   int64  `json:"-"`
	Text string `json:"text"`
}

// MoveTaskRequest moves one task to a status column.
type MoveTaskRequest struct {
	ID     int64  `json:"-"`
	Status string `json:"status"`
}

// Task is the transport shape of one task.
type Task struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Status    string    `json:"status"`
	Completed bool      `json:"completed"`
	RemoteRef string    `json:"remote_ref,omitempty"`
	Revision  uint64    `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Column is one projected status column.
type Column struct {
	Status    string `json:"status"`
	Title     string `json:"title"`
	Total     int    `json:"total"`
	Page      int    `json:"page"`
	PageCount int    `json:"page_count"`
	HasPrev   bool   `json:"has_prev"`
	HasNext   bool   `json:"has_next"`
	Tasks     []Task `json:"tasks"`
}

// Board is one paginated projection of the whole collection.
type Board struct {
	PageSize        int      `json:"page_size"`
	PageSizeOptions []int    `json:"page_size_options"`
	TotalTasks      int      `json:"total_tasks"`
	Columns         []Column `json:"columns"`
}

// ActivityEntry is one activity-ledger row.
type ActivityEntry struct {
	ID         int64             `json:"id"`
	TaskID     int64             `json:"task_id"`
	Operation  string            `json:"operation"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// BoardService exposes the board to transport adapters.
type BoardService interface {
	Board(context.Context, BoardRequest) (Board, error)
	ListTasks(context.Context, ListTasksRequest) ([]Task, error)
	GetTask(context.Context, int64) (Task, error)
	AddTask(context.Context, AddTaskRequest) (Task, error)
	EditTask(context.Context, EditTaskRequest) (Task, error)
	DeleteTask(context.Context, int64) error
	MoveTask(context.Context, MoveTaskRequest) (Task, error)
	ListActivity(context.Context, int) ([]ActivityEntry, error)
}
