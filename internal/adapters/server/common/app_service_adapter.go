package common

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/kanbo/internal/app"
	"github.com/evanschultz/kanbo/internal/domain"
)

// TaskStore is the subset of app.Store the server surfaces need.
type TaskStore interface {
	Tasks() []domain.Task
	Task(id int64) (domain.Task, error)
	Add(ctx context.Context, text string) (domain.Task, bool)
	Edit(ctx context.Context, id int64, text string) bool
	Delete(ctx context.Context, id int64) bool
	SetStatus(ctx context.Context, id int64, status domain.Status) (bool, error)
	Activity(ctx context.Context, limit int) ([]domain.ChangeEvent, error)
}

// AppServiceAdapter maps transport contracts onto one shared task store.
type AppServiceAdapter struct {
	store           TaskStore
	pageSize        int
	pageSizeOptions []int
}

// NewAppServiceAdapter builds one adapter over store. Requests without a page
// size use pageSize; only sizes in options are accepted.
func NewAppServiceAdapter(store TaskStore, pageSize int, options []int) *AppServiceAdapter {
	if len(options) == 0 {
		options = app.DefaultPageSizeOptions
	}
	if !slices.Contains(options, pageSize) {
		pageSize = options[0]
	}
	return &AppServiceAdapter{
		store:           store,
		pageSize:        pageSize,
		pageSizeOptions: slices.Clone(options),
	}
}

// Board projects the collection into paginated status columns.
func (a *AppServiceAdapter) Board(_ context.Context, in BoardRequest) (Board, error) {
	if err := a.ready(); err != nil {
		return Board{}, err
	}
	size := in.PageSize
	if size == 0 {
		size = a.pageSize
	}
	if !slices.Contains(a.pageSizeOptions, size) {
		return Board{}, fmt.Errorf("page_size %d is not one of %v: %w", size, a.pageSizeOptions, ErrInvalidRequest)
	}
	pages := make(map[domain.Status]int, len(in.Pages))
	for raw, page := range in.Pages {
		status, err := parseStatus(raw)
		if err != nil {
			return Board{}, err
		}
		if page < 0 {
			return Board{}, fmt.Errorf("page for %q must be >= 0: %w", status, ErrInvalidRequest)
		}
		pages[status] = page
	}

	tasks := a.store.Tasks()
	projected := app.Project(tasks, size, pages)
	out := Board{
		PageSize:        projected.PageSize,
		PageSizeOptions: slices.Clone(a.pageSizeOptions),
		TotalTasks:      len(tasks),
		Columns:         make([]Column, 0, len(projected.Columns)),
	}
	for _, col := range projected.Columns {
		out.Columns = append(out.Columns, Column{
			Status:    string(col.Status),
			Title:     col.Status.Title(),
			Total:     col.Total,
			Page:      col.Page,
			PageCount: col.PageCount,
			HasPrev:   col.HasPrev,
			HasNext:   col.HasNext,
			Tasks:     mapDomainTasks(col.Tasks),
		})
	}
	return out, nil
}

// ListTasks returns every task, optionally limited to one status.
func (a *AppServiceAdapter) ListTasks(_ context.Context, in ListTasksRequest) ([]Task, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	tasks := a.store.Tasks()
	if strings.TrimSpace(in.Status) == "" {
		return mapDomainTasks(tasks), nil
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	return mapDomainTasks(app.Partition(tasks)[status]), nil
}

// GetTask returns one task by id.
func (a *AppServiceAdapter) GetTask(_ context.Context, id int64) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	task, err := a.store.Task(id)
	if err != nil {
		return Task{}, mapAppError(fmt.Sprintf("get task %d", id), err)
	}
	return mapDomainTask(task), nil
}

// AddTask appends one todo task.
func (a *AppServiceAdapter) AddTask(ctx context.Context, in AddTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	task, ok := a.store.Add(ctx, in.Text)
	if !ok {
		return Task{}, fmt.Errorf("text is required: %w", ErrInvalidRequest)
	}
	return mapDomainTask(task), nil
}

// EditTask replaces the text of one task.
func (a *AppServiceAdapter) EditTask(ctx context.Context, in EditTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return Task{}, fmt.Errorf("text is required: %w", ErrInvalidRequest)
	}
	if !a.store.Edit(ctx, in.ID, in.Text) {
		return Task{}, fmt.Errorf("task %d: %w", in.ID, ErrNotFound)
	}
	return a.GetTask(ctx, in.ID)
}

// DeleteTask removes one task.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, id int64) error {
	if err := a.ready(); err != nil {
		return err
	}
	if !a.store.Delete(ctx, id) {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

// MoveTask sets the status of one task.
func (a *AppServiceAdapter) MoveTask(ctx context.Context, in MoveTaskRequest) (Task, error) {
	if err := a.ready(); err != nil {
		return Task{}, err
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return Task{}, err
	}
	moved, err := a.store.SetStatus(ctx, in.ID, status)
	if err != nil {
		return Task{}, mapAppError("move task", err)
	}
	if !moved {
		return Task{}, fmt.Errorf("task %d: %w", in.ID, ErrNotFound)
	}
	return a.GetTask(ctx, in.ID)
}

// ListActivity returns the newest activity entries first.
func (a *AppServiceAdapter) ListActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	switch {
	case limit < 0:
		return nil, fmt.Errorf("limit must be >= 0: %w", ErrInvalidRequest)
	case limit == 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}
	events, err := a.store.Activity(ctx, limit)
	if err != nil {
		return nil, mapAppError("list activity", err)
	}
	out := make([]ActivityEntry, 0, len(events))
	for _, event := range events {
		out = append(out, ActivityEntry{
			ID:         event.ID,
			TaskID:     event.TaskID,
			Operation:  string(event.Operation),
			Metadata:   event.Metadata,
			OccurredAt: event.OccurredAt,
		})
	}
	return out, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.store == nil {
		return fmt.Errorf("task store is not configured: %w", ErrUnavailable)
	}
	return nil
}

// parseStatus accepts canonical statuses and their common aliases.
func parseStatus(raw string) (domain.Status, error) {
	status := domain.NormalizeStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("status %q is unsupported: %w", strings.TrimSpace(raw), ErrInvalidRequest)
	}
	return status, nil
}

func mapDomainTasks(tasks []domain.Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, mapDomainTask(task))
	}
	return out
}

func mapDomainTask(task domain.Task) Task {
	return Task{
		ID:        task.ID,
		Text:      task.Text,
		Status:    string(task.Status),
		Completed: task.Completed,
		RemoteRef: task.RemoteRef,
		Revision:  task.Revision,
		UpdatedAt: task.UpdatedAt,
	}
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrInvalidText), errors.Is(err, domain.ErrInvalidID):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
