package app

import (
	"context"

	"github.com/evanschultz/kanbo/internal/domain"
)

// RemoteTask is the remote collaborator's view of one todo.
type RemoteTask struct {
	Ref       string
	ID        int64
	Text      string
	Completed bool
}

// Remote is the todo resource that owns the canonical data set.
type Remote interface {
	ListTasks(context.Context) ([]RemoteTask, error)
	CreateTask(context.Context, RemoteTask) (RemoteTask, error)
	UpdateTask(context.Context, RemoteTask) (RemoteTask, error)
	DeleteTask(context.Context, RemoteTask) error
}

// Mirror is a string key-value store with local storage semantics.
type Mirror interface {
	LoadValue(ctx context.Context, key string) ([]byte, bool, error)
	SaveValue(ctx context.Context, key string, value []byte) error
}

// ActivityLog persists and lists applied board mutations.
type ActivityLog interface {
	AppendChangeEvent(context.Context, domain.ChangeEvent) error
	ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error)
}

// Logger is the structured logger the store reports through.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
