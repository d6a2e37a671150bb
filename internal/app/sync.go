package app

import (
	"errors"

	"github.com/evanschultz/kanbo/internal/domain"
)

// ErrSyncQueueFull reports a remote call dropped because the queue was full.
var ErrSyncQueueFull = errors.New("sync queue full")

type syncOp string

const (
	syncCreate syncOp = "create"
	syncUpdate syncOp = "update"
	syncDelete syncOp = "delete"
)

type syncJob struct {
	opID string
	op   syncOp
	task domain.Task
}

// enqueueLocked hands a remote call to the worker without blocking.
func (s *Store) enqueueLocked(op syncOp, task domain.Task) {
	if s.remote == nil {
		return
	}
	job := syncJob{opID: s.opID(), op: op, task: task}
	if s.closed {
		s.logger.Warn("remote sync skipped after close", "op", op, "task_id", task.ID, "op_id", job.opID)
		return
	}
	select {
	case s.queue <- job:
		s.logger.Debug("remote sync queued", "op", op, "task_id", task.ID, "op_id", job.opID)
	default:
		s.logger.Error("remote sync dropped", "op", op, "task_id", task.ID, "op_id", job.opID, "err", ErrSyncQueueFull)
		s.publish(Event{Kind: EventSyncFailed, TaskID: task.ID, Op: string(op), OpID: job.opID, Err: ErrSyncQueueFull})
	}
}

func (s *Store) runSync() {
	defer close(s.done)
	for job := range s.queue {
		s.runJob(job)
	}
}

func (s *Store) runJob(job syncJob) {
	ctx := s.syncCtx
	req := s.remoteRequest(job)

	var err error
	switch job.op {
	case syncCreate:
		var resp RemoteTask
		if resp, err = s.remote.CreateTask(ctx, req); err == nil {
			s.applyCreated(job, resp)
		}
	case syncUpdate:
		var resp RemoteTask
		if resp, err = s.remote.UpdateTask(ctx, req); err == nil {
			s.applyUpdated(job, resp)
		}
	case syncDelete:
		if err = s.remote.DeleteTask(ctx, req); err == nil {
			s.mu.Lock()
			delete(s.refs, job.task.ID)
			s.mu.Unlock()
		}
	}
	if err != nil {
		s.logger.Error("remote sync failed", "op", job.op, "task_id", job.task.ID, "op_id", job.opID, "err", err)
		s.publish(Event{Kind: EventSyncFailed, TaskID: job.task.ID, Op: string(job.op), OpID: job.opID, Err: err})
		return
	}
	s.logger.Debug("remote sync complete", "op", job.op, "task_id", job.task.ID, "op_id", job.opID)
	s.publish(Event{Kind: EventSynced, TaskID: job.task.ID, Op: string(job.op), OpID: job.opID})
}

// remoteRequest builds the outbound record. The remote ref is resolved at
// send time so calls queued behind a create use the ref it returned.
func (s *Store) remoteRequest(job syncJob) RemoteTask {
	s.mu.RLock()
	ref, ok := s.refs[job.task.ID]
	s.mu.RUnlock()
	if !ok {
		ref = job.task.RemoteRef
	}
	return RemoteTask{
		Ref:       ref,
		ID:        job.task.ID,
		Text:      job.task.Text,
		Completed: job.task.Completed,
	}
}

func (s *Store) applyCreated(job syncJob, resp RemoteTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp.Ref != "" {
		s.refs[job.task.ID] = resp.Ref
	}
	idx := s.indexLocked(job.task.ID)
	if idx < 0 {
		return
	}
	if resp.Ref != "" {
		s.tasks[idx].RemoteRef = resp.Ref
	}
	s.mergeLocked(idx, job, resp)
	s.persistLocked(s.syncCtx)
	s.publish(Event{Kind: EventChanged, TaskID: job.task.ID, Op: "reconcile", OpID: job.opID})
}

func (s *Store) applyUpdated(job syncJob, resp RemoteTask) {
	if s.cfg.Reconcile != ReconcileLastWriteWins {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(job.task.ID)
	if idx < 0 {
		return
	}
	if s.mergeLocked(idx, job, resp) {
		s.persistLocked(s.syncCtx)
		s.publish(Event{Kind: EventChanged, TaskID: job.task.ID, Op: "reconcile", OpID: job.opID})
	}
}

// mergeLocked folds a remote response into the local task under the
// last-write-wins policy. A response is stale once the task has been written
// again locally since the call was queued.
func (s *Store) mergeLocked(idx int, job syncJob, resp RemoteTask) bool {
	if s.cfg.Reconcile != ReconcileLastWriteWins {
		return false
	}
	task := &s.tasks[idx]
	if task.Revision != job.task.Revision {
		s.logger.Debug("remote response superseded by local write", "task_id", task.ID, "op_id", job.opID)
		return false
	}
	changed := false
	now := s.clock()
	if resp.Text != "" && resp.Text != task.Text {
		if err := task.Rename(resp.Text, now); err == nil {
			changed = true
		}
	}
	if resp.Completed != task.Completed {
		task.SetCompleted(resp.Completed, now)
		changed = true
	}
	return changed
}
