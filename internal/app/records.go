package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/evanschultz/kanbo/internal/domain"
)

// TaskRecord is the persisted and exported shape of one task.
type TaskRecord struct {
	ID        int64         `json:"id"`
	Todo      string        `json:"todo"`
	Completed bool          `json:"completed"`
	Status    domain.Status `json:"status,omitempty"`
	RemoteRef string        `json:"remoteRef,omitempty"`
}

// RecordFromTask converts a task to its persisted shape.
func RecordFromTask(t domain.Task) TaskRecord {
	return TaskRecord{
		ID:        t.ID,
		Todo:      t.Text,
		Completed: t.Completed,
		Status:    t.Status,
		RemoteRef: t.RemoteRef,
	}
}

// Task converts r back to a domain task. A record without a status derives
// it from the completion flag; a record with one keeps the flag in step.
func (r TaskRecord) Task(now time.Time) (domain.Task, error) {
	status := r.Status
	if status == "" {
		status = domain.StatusFromCompleted(r.Completed)
	}
	return domain.NewTask(domain.TaskInput{
		ID:        r.ID,
		Text:      r.Todo,
		Status:    status,
		RemoteRef: r.RemoteRef,
	}, now)
}

// EncodeTasks renders tasks as the mirrored JSON array.
func EncodeTasks(tasks []domain.Task) ([]byte, error) {
	records := make([]TaskRecord, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, RecordFromTask(t))
	}
	encoded, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode task records: %w", err)
	}
	return encoded, nil
}

// DecodeTasks validates raw against the task record schema and decodes it.
func DecodeTasks(raw []byte, now time.Time) ([]domain.Task, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	if err := validateJSON(schemas.records, raw); err != nil {
		return nil, fmt.Errorf("validate task records: %w", err)
	}
	var records []TaskRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode task records: %w", err)
	}
	return tasksFromRecords(records, now)
}

func tasksFromRecords(records []TaskRecord, now time.Time) ([]domain.Task, error) {
	out := make([]domain.Task, 0, len(records))
	seen := make(map[int64]struct{}, len(records))
	for i, rec := range records {
		if _, ok := seen[rec.ID]; ok {
			return nil, fmt.Errorf("record %d: duplicate id %d: %w", i, rec.ID, domain.ErrInvalidID)
		}
		seen[rec.ID] = struct{}{}
		task, err := rec.Task(now)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, task)
	}
	return out, nil
}
