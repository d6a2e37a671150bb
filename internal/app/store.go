package app

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/kanbo/internal/domain"
)

// Source selects where Initialize seeds the collection from.
type Source string

// Source values.
const (
	SourceAuto   Source = "auto"
	SourceRemote Source = "remote"
	SourceMirror Source = "mirror"
)

// ReconcilePolicy decides what happens to remote responses for local writes.
type ReconcilePolicy string

// ReconcilePolicy values.
const (
	ReconcileLocalWins     ReconcilePolicy = "local-wins"
	ReconcileLastWriteWins ReconcilePolicy = "last-write-wins"
)

// DefaultMirrorKey is the key the collection is mirrored under.
const DefaultMirrorKey = "tasks"

// DefaultQueueSize bounds the number of pending remote calls.
const DefaultQueueSize = 64

// IDGenerator returns unique identifiers for sync operations.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// StoreConfig holds configuration for the task store.
type StoreConfig struct {
	MirrorKey string
	Reconcile ReconcilePolicy
	QueueSize int
}

// StoreOption configures optional store collaborators.
type StoreOption func(*Store)

// WithActivityLog records every applied mutation in log.
func WithActivityLog(log ActivityLog) StoreOption {
	return func(s *Store) {
		s.activity = log
	}
}

// WithLogger routes store diagnostics to logger.
func WithLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOpIDGenerator sets the generator used to correlate sync calls in logs.
func WithOpIDGenerator(gen IDGenerator) StoreOption {
	return func(s *Store) {
		if gen != nil {
			s.opID = gen
		}
	}
}

// Store owns the ordered task collection. Mutations apply locally first,
// are mirrored synchronously and are pushed to the remote in issue order by
// a single background worker.
type Store struct {
	mu     sync.RWMutex
	tasks  []domain.Task
	refs   map[int64]string
	closed bool

	ids      *IDSequence
	remote   Remote
	mirror   Mirror
	activity ActivityLog
	logger   Logger
	clock    Clock
	opID     IDGenerator
	cfg      StoreConfig

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int

	queue      chan syncJob
	done       chan struct{}
	syncCtx    context.Context
	cancelSync context.CancelFunc
}

// NewStore constructs a store. A nil remote keeps the board local-only and a
// nil mirror disables local persistence.
func NewStore(remote Remote, mirror Mirror, clock Clock, cfg StoreConfig, opts ...StoreOption) *Store {
	if clock == nil {
		clock = time.Now
	}
	if strings.TrimSpace(cfg.MirrorKey) == "" {
		cfg.MirrorKey = DefaultMirrorKey
	}
	if cfg.Reconcile == "" {
		cfg.Reconcile = ReconcileLocalWins
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	s := &Store{
		tasks:  []domain.Task{},
		refs:   map[int64]string{},
		ids:    NewIDSequence(clock),
		remote: remote,
		mirror: mirror,
		logger: nopLogger{},
		clock:  clock,
		opID:   func() string { return "" },
		cfg:    cfg,
		subs:   map[int]chan Event{},
		queue:  make(chan syncJob, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.syncCtx, s.cancelSync = context.WithCancel(context.Background())
	if s.remote == nil {
		close(s.done)
	} else {
		go s.runSync()
	}
	return s
}

// RemoteEnabled reports whether mutations are pushed to a remote.
func (s *Store) RemoteEnabled() bool {
	return s.remote != nil
}

// Reconcile returns the active reconciliation policy.
func (s *Store) Reconcile() ReconcilePolicy {
	return s.cfg.Reconcile
}

// Initialize replaces the collection wholesale from source. When the remote
// fetch fails the collection keeps its previous value, or the mirrored value
// for SourceAuto, and a load_failed event is published.
func (s *Store) Initialize(ctx context.Context, source Source) error {
	switch source {
	case "", SourceAuto:
		if s.remote == nil {
			return s.initializeFromMirror(ctx)
		}
		if err := s.initializeFromRemote(ctx); err != nil {
			s.logger.Warn("remote load failed; falling back to mirror", "err", err)
			if mirrorErr := s.initializeFromMirror(ctx); mirrorErr != nil {
				return mirrorErr
			}
		}
		return nil
	case SourceRemote:
		return s.initializeFromRemote(ctx)
	case SourceMirror:
		return s.initializeFromMirror(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
}

func (s *Store) initializeFromRemote(ctx context.Context) error {
	if s.remote == nil {
		return ErrRemoteDisabled
	}
	fetched, err := s.remote.ListTasks(ctx)
	if err != nil {
		s.logger.Error("remote list failed", "err", err)
		s.publish(Event{Kind: EventLoadFailed, Op: "list", Err: err})
		return fmt.Errorf("fetch remote tasks: %w", err)
	}
	tasks := s.tasksFromRemote(fetched, s.knownRefs(ctx))
	s.replace(ctx, tasks, "remote")
	return nil
}

func (s *Store) initializeFromMirror(ctx context.Context) error {
	if s.mirror == nil {
		s.replace(ctx, nil, "mirror")
		return nil
	}
	raw, ok, err := s.mirror.LoadValue(ctx, s.cfg.MirrorKey)
	if err != nil {
		s.logger.Error("mirror load failed", "key", s.cfg.MirrorKey, "err", err)
		s.publish(Event{Kind: EventLoadFailed, Op: "mirror", Err: err})
		return fmt.Errorf("load mirrored tasks: %w", err)
	}
	var tasks []domain.Task
	if ok {
		tasks, err = DecodeTasks(raw, s.clock())
		if err != nil {
			s.logger.Warn("mirrored tasks malformed; starting empty", "key", s.cfg.MirrorKey, "err", err)
			tasks = nil
		}
	}
	s.mu.Lock()
	s.setLocked(tasks)
	s.mu.Unlock()
	s.logger.Info("board loaded", "source", "mirror", "tasks", len(tasks))
	s.record(ctx, domain.ChangeOperationLoad, 0, map[string]string{"source": "mirror", "count": strconv.Itoa(len(tasks))})
	s.publish(Event{Kind: EventLoaded, Op: "mirror"})
	return nil
}

// knownRefs maps remote refs to the local ids already assigned to them, taken
// from the current collection or, before the first load, from the mirror.
func (s *Store) knownRefs(ctx context.Context) map[string]int64 {
	s.mu.RLock()
	tasks := slices.Clone(s.tasks)
	s.mu.RUnlock()
	if len(tasks) == 0 && s.mirror != nil {
		raw, ok, err := s.mirror.LoadValue(ctx, s.cfg.MirrorKey)
		if err != nil {
			s.logger.Warn("mirror read for remote ids failed", "key", s.cfg.MirrorKey, "err", err)
		} else if ok {
			if decoded, err := DecodeTasks(raw, s.clock()); err == nil {
				tasks = decoded
			}
		}
	}
	refs := make(map[string]int64, len(tasks))
	for _, t := range tasks {
		if t.RemoteRef != "" {
			refs[t.RemoteRef] = t.ID
		}
	}
	return refs
}

// tasksFromRemote maps fetched records onto local tasks. Remote ids become
// local ids when usable, then ids already bound to the same ref; the rest draw
// from the id sequence.
func (s *Store) tasksFromRemote(fetched []RemoteTask, known map[string]int64) []domain.Task {
	now := s.clock()
	for _, rt := range fetched {
		if rt.ID > 0 {
			s.ids.Observe(rt.ID)
		}
	}
	for _, id := range known {
		s.ids.Observe(id)
	}
	out := make([]domain.Task, 0, len(fetched))
	seen := map[int64]struct{}{}
	for _, rt := range fetched {
		ref := strings.TrimSpace(rt.Ref)
		id := rt.ID
		if id <= 0 && ref != "" {
			id = known[ref]
		}
		if _, dup := seen[id]; dup || id <= 0 {
			id = s.ids.Next()
		}
		if ref == "" && rt.ID > 0 {
			ref = strconv.FormatInt(rt.ID, 10)
		}
		task, err := domain.NewTask(domain.TaskInput{
			ID:        id,
			Text:      rt.Text,
			Status:    domain.StatusFromCompleted(rt.Completed),
			RemoteRef: ref,
		}, now)
		if err != nil {
			s.logger.Warn("skipping remote task", "remote_ref", ref, "err", err)
			continue
		}
		seen[id] = struct{}{}
		out = append(out, task)
	}
	return out
}

// Replace swaps the whole collection, as an import does. Nothing is pushed
// to the remote.
func (s *Store) Replace(ctx context.Context, tasks []domain.Task) {
	s.replace(ctx, tasks, "import")
}

func (s *Store) replace(ctx context.Context, tasks []domain.Task, source string) {
	s.mu.Lock()
	s.setLocked(tasks)
	s.persistLocked(ctx)
	count := len(s.tasks)
	s.mu.Unlock()

	s.logger.Info("board loaded", "source", source, "tasks", count)
	s.record(ctx, domain.ChangeOperationLoad, 0, map[string]string{"source": source, "count": strconv.Itoa(count)})
	s.publish(Event{Kind: EventLoaded, Op: source})
}

func (s *Store) setLocked(tasks []domain.Task) {
	s.tasks = slices.Clone(tasks)
	if s.tasks == nil {
		s.tasks = []domain.Task{}
	}
	s.refs = make(map[int64]string, len(s.tasks))
	for _, t := range s.tasks {
		s.ids.Observe(t.ID)
		if t.RemoteRef != "" {
			s.refs[t.ID] = t.RemoteRef
		}
	}
}

// Tasks returns a copy of the collection in insertion order.
func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

// Task returns the task with id.
func (s *Store) Task(id int64) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Task{}, ErrNotFound
	}
	return s.tasks[idx], nil
}

// Add appends a new todo task. Blank text is ignored and reported as false.
func (s *Store) Add(ctx context.Context, text string) (domain.Task, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Task{}, false
	}
	s.mu.Lock()
	task, err := domain.NewTask(domain.TaskInput{ID: s.ids.Next(), Text: text}, s.clock())
	if err != nil {
		s.mu.Unlock()
		return domain.Task{}, false
	}
	s.tasks = append(s.tasks, task)
	s.persistLocked(ctx)
	s.enqueueLocked(syncCreate, task)
	s.mu.Unlock()

	s.record(ctx, domain.ChangeOperationCreate, task.ID, map[string]string{"text": task.Text})
	s.publish(Event{Kind: EventChanged, TaskID: task.ID, Op: string(syncCreate)})
	return task, true
}

// Edit replaces the text of task id. Missing ids and blank text are no-ops.
func (s *Store) Edit(ctx context.Context, id int64, text string) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	prev := s.tasks[idx].Text
	if err := s.tasks[idx].Rename(text, s.clock()); err != nil {
		s.mu.Unlock()
		return false
	}
	task := s.tasks[idx]
	s.persistLocked(ctx)
	s.enqueueLocked(syncUpdate, task)
	s.mu.Unlock()

	s.record(ctx, domain.ChangeOperationUpdate, id, map[string]string{"from_text": prev, "to_text": task.Text})
	s.publish(Event{Kind: EventChanged, TaskID: id, Op: string(syncUpdate)})
	return true
}

// Delete removes task id. Missing ids are a no-op.
func (s *Store) Delete(ctx context.Context, id int64) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	task := s.tasks[idx]
	s.tasks = slices.Delete(s.tasks, idx, idx+1)
	s.persistLocked(ctx)
	s.enqueueLocked(syncDelete, task)
	s.mu.Unlock()

	s.record(ctx, domain.ChangeOperationDelete, id, map[string]string{"text": task.Text})
	s.publish(Event{Kind: EventChanged, TaskID: id, Op: string(syncDelete)})
	return true
}

// SetStatus moves task id to status, keeping Completed in step. Missing ids
// are a no-op; unknown statuses are rejected.
func (s *Store) SetStatus(ctx context.Context, id int64, status domain.Status) (bool, error) {
	if !status.IsValid() {
		return false, domain.ErrInvalidStatus
	}
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	from := s.tasks[idx].Status
	if err := s.tasks[idx].SetStatus(status, s.clock()); err != nil {
		s.mu.Unlock()
		return false, err
	}
	task := s.tasks[idx]
	s.persistLocked(ctx)
	s.enqueueLocked(syncUpdate, task)
	s.mu.Unlock()

	s.record(ctx, domain.ChangeOperationMove, id, map[string]string{"from_status": string(from), "to_status": string(status)})
	s.publish(Event{Kind: EventChanged, TaskID: id, Op: "move"})
	return true, nil
}

// Activity lists the most recent ledger entries, newest first.
func (s *Store) Activity(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if s.activity == nil {
		return []domain.ChangeEvent{}, nil
	}
	return s.activity.ListChangeEvents(ctx, limit)
}

// Close stops accepting remote calls and waits for queued ones to finish
// until ctx ends.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		s.cancelSync()
		return nil
	case <-ctx.Done():
		s.cancelSync()
		return ctx.Err()
	}
}

func (s *Store) indexLocked(id int64) int {
	return slices.IndexFunc(s.tasks, func(t domain.Task) bool { return t.ID == id })
}

// persistLocked mirrors the collection. Failures are reported, not returned.
func (s *Store) persistLocked(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	encoded, err := EncodeTasks(s.tasks)
	if err == nil {
		err = s.mirror.SaveValue(ctx, s.cfg.MirrorKey, encoded)
	}
	if err != nil {
		s.logger.Error("mirror save failed", "key", s.cfg.MirrorKey, "err", err)
		s.publish(Event{Kind: EventMirrorFailed, Op: "save", Err: err})
	}
}

func (s *Store) record(ctx context.Context, op domain.ChangeOperation, taskID int64, metadata map[string]string) {
	if s.activity == nil {
		return
	}
	event := domain.ChangeEvent{
		TaskID:     taskID,
		Operation:  op,
		Metadata:   metadata,
		OccurredAt: s.clock().UTC(),
	}
	if err := s.activity.AppendChangeEvent(ctx, event); err != nil {
		s.logger.Warn("activity append failed", "op", op, "task_id", taskID, "err", err)
	}
}
