package domain

import (
	"strings"
	"time"
)

// Task is one card on the board.
//
// Completed always mirrors Status: it is true exactly when Status is done.
type Task struct {
	ID        int64
	Text      string
	Completed bool
	Status    Status
	RemoteRef string
	Revision  uint64
	UpdatedAt time.Time
}

// TaskInput holds write-time values for NewTask.
type TaskInput struct {
	ID        int64
	Text      string
	Status    Status
	RemoteRef string
}

// NewTask validates in and returns a task at revision 1.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.Text = strings.TrimSpace(in.Text)
	in.RemoteRef = strings.TrimSpace(in.RemoteRef)
	if in.ID <= 0 {
		return Task{}, ErrInvalidID
	}
	if in.Text == "" {
		return Task{}, ErrInvalidText
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	if !in.Status.IsValid() {
		return Task{}, ErrInvalidStatus
	}
	return Task{
		ID:        in.ID,
		Text:      in.Text,
		Completed: in.Status == StatusDone,
		Status:    in.Status,
		RemoteRef: in.RemoteRef,
		Revision:  1,
		UpdatedAt: now.UTC(),
	}, nil
}

// Rename replaces the task text.
func (t *Task) Rename(text string, now time.Time) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrInvalidText
	}
	t.Text = text
	t.touch(now)
	return nil
}

// SetStatus moves the task to status and keeps Completed in step.
func (t *Task) SetStatus(status Status, now time.Time) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}
	t.Status = status
	t.Completed = status == StatusDone
	t.touch(now)
	return nil
}

// SetCompleted applies a remote completion flag. An in-progress task that
// is still incomplete stays in progress.
func (t *Task) SetCompleted(completed bool, now time.Time) {
	switch {
	case completed:
		t.Status = StatusDone
	case t.Status == StatusDone:
		t.Status = StatusTodo
	}
	t.Completed = completed
	t.touch(now)
}

func (t *Task) touch(now time.Time) {
	t.Revision++
	t.UpdatedAt = now.UTC()
}
