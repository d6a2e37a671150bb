package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/evanschultz/kanbo/internal/app"
	"github.com/evanschultz/kanbo/internal/domain"
)

func TestRepository_KVLifecycle(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "kanbo.db")
	repo, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	if _, ok, err := repo.LoadValue(ctx, "tasks"); err != nil || ok {
		t.Fatalf("LoadValue(missing) = ok %t, err %v", ok, err)
	}
	if err := repo.SaveValue(ctx, "tasks", []byte(`[]`)); err != nil {
		t.Fatalf("SaveValue() error = %v", err)
	}
	if err := repo.SaveValue(ctx, "tasks", []byte(`[{"id":1}]`)); err != nil {
		t.Fatalf("SaveValue(overwrite) error = %v", err)
	}
	got, ok, err := repo.LoadValue(ctx, "tasks")
	if err != nil || !ok {
		t.Fatalf("LoadValue() = ok %t, err %v", ok, err)
	}
	if string(got) != `[{"id":1}]` {
		t.Fatalf("unexpected value %q", got)
	}
	if err := repo.SaveValue(ctx, "  ", []byte("x")); err == nil {
		t.Fatal("expected blank key error")
	}
}

// TestRepository_PersistsAcrossReopen verifies behavior for the covered scenario.
func TestRepository_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "kanbo.db")
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	store := app.NewStore(nil, repo, clock, app.StoreConfig{MirrorKey: "inProgressTasks"}, app.WithActivityLog(repo))
	a, _ := store.Add(ctx, "A")
	b, _ := store.Add(ctx, "B")
	if _, err := store.SetStatus(ctx, b.ID, domain.StatusInProgress); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	_ = store.Close(ctx)
	if err := repo.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open(reopen) error = %v", err)
	}
	t.Cleanup(func() {
		_ = reopened.Close()
	})
	restored := app.NewStore(nil, reopened, clock, app.StoreConfig{MirrorKey: "inProgressTasks"})
	if err := restored.Initialize(ctx, app.SourceMirror); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	tasks := restored.Tasks()
	if len(tasks) != 2 || tasks[0].ID != a.ID || tasks[1].Status != domain.StatusInProgress {
		t.Fatalf("unexpected restored tasks %#v", tasks)
	}

	events, err := reopened.ListChangeEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListChangeEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(events))
	}
	if events[0].Operation != domain.ChangeOperationMove || events[0].Metadata["to_status"] != "in-progress" {
		t.Fatalf("unexpected newest event %#v", events[0])
	}
	if events[2].Operation != domain.ChangeOperationCreate || events[2].TaskID != a.ID {
		t.Fatalf("unexpected oldest event %#v", events[2])
	}
}

func TestRepository_ChangeEventDefaults(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	if err := repo.AppendChangeEvent(ctx, domain.ChangeEvent{TaskID: 4, Operation: "rename"}); err != nil {
		t.Fatalf("AppendChangeEvent() error = %v", err)
	}
	events, err := repo.ListChangeEvents(ctx, 0)
	if err != nil {
		t.Fatalf("ListChangeEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.Operation != domain.ChangeOperationUpdate || !got.OccurredAt.Equal(fixed) || got.Metadata == nil {
		t.Fatalf("unexpected defaults %#v", got)
	}
}
