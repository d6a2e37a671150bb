package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "kanbo.snapshot.v1"

// Snapshot is a portable copy of the board collection.
type Snapshot struct {
	Version    string       `json:"version"`
	ExportedAt time.Time    `json:"exported_at"`
	Tasks      []TaskRecord `json:"tasks"`
}

// ExportSnapshot captures the current collection.
func (s *Store) ExportSnapshot() Snapshot {
	tasks := s.Tasks()
	records := make([]TaskRecord, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, RecordFromTask(t))
	}
	return Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Tasks:      records,
	}
}

// DecodeSnapshot validates raw snapshot JSON and decodes it.
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return Snapshot{}, err
	}
	if err := validateJSON(schemas.snapshot, raw); err != nil {
		return Snapshot{}, fmt.Errorf("validate snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Validate checks the snapshot version and every task record.
func (snap Snapshot) Validate() error {
	if strings.TrimSpace(snap.Version) != SnapshotVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, snap.Version)
	}
	_, err := tasksFromRecords(snap.Tasks, time.Now())
	return err
}

// ImportSnapshot replaces the collection with the snapshot contents.
func (s *Store) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	tasks, err := tasksFromRecords(snap.Tasks, s.clock())
	if err != nil {
		return err
	}
	s.Replace(ctx, tasks)
	return nil
}
