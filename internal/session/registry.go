package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrAlreadyExists is returned when creating a session with a taken task ID.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrBridgeActive is returned when a second orchestrator tries to claim a
	// session whose bridge is already running.
	ErrBridgeActive = errors.New("bridge already active for session")
	// ErrTranscriptFrozen is returned for transcript appends outside IN_PROGRESS.
	ErrTranscriptFrozen = errors.New("transcript is frozen")
)

// TaskHandle tracks one background initiation task: it can be canceled, and
// it signals completion by closing its done channel.
type TaskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewTaskHandle wraps a cancel function into a trackable handle.
func NewTaskHandle(cancel context.CancelFunc) *TaskHandle {
	return &TaskHandle{cancel: cancel, done: make(chan struct{})}
}

// Cancel asks the task to stop. Safe to call any number of times.
func (h *TaskHandle) Cancel() {
	h.cancel()
}

// Finish marks the task as fully exited. The task itself calls this, usually
// via defer, exactly like closing a done channel.
func (h *TaskHandle) Finish() {
	h.once.Do(func() { close(h.done) })
}

// Done is closed once the task has exited.
func (h *TaskHandle) Done() <-chan struct{} {
	return h.done
}

type entry struct {
	sess         Session
	bridgeActive bool
	initiation   *TaskHandle
}

// Registry is the process-wide session table. It is the only structure shared
// between active bridges and HTTP polling, so every read returns a deep copy
// taken under the lock: a caller never observes a half-applied write.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Create stores a new session record.
func (r *Registry) Create(sess Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[sess.TaskID]; ok {
		return fmt.Errorf("task %s: %w", sess.TaskID, ErrAlreadyExists)
	}
	r.entries[sess.TaskID] = &entry{sess: sess.Clone()}
	return nil
}

// Get returns a point-in-time snapshot of the session.
func (r *Registry) Get(taskID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[taskID]
	if !ok {
		return Session{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return e.sess.Clone(), nil
}

// SetCallSID records the provider call identifier once placement succeeds.
func (r *Registry) SetCallSID(taskID, callSID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	e.sess.CallSID = callSID
	return nil
}

// MarkInProgress moves a pending session to IN_PROGRESS when the media stream
// is established, recording the start time.
func (r *Registry) MarkInProgress(taskID string, startedAt time.Time) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[taskID]
	if !ok {
		return Session{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err := checkTransition(e.sess.Status, StatusInProgress); err != nil {
		return Session{}, err
	}
	e.sess.Status = StatusInProgress
	e.sess.StartedAt = &startedAt
	return e.sess.Clone(), nil
}

// AppendTranscript adds one finalized utterance to the live record so polls
// observe the transcript as it grows. Only legal while IN_PROGRESS.
func (r *Registry) AppendTranscript(taskID string, transcriptEntry TranscriptEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if e.sess.Status != StatusInProgress {
		return fmt.Errorf("task %s status %s: %w", taskID, e.sess.Status, ErrTranscriptFrozen)
	}
	e.sess.Transcript = append(e.sess.Transcript, transcriptEntry)
	return nil
}

// Complete writes the terminal COMPLETED state with its summary.
func (r *Registry) Complete(taskID string, summary Summary, completedAt time.Time, durationSeconds int) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[taskID]
	if !ok {
		return Session{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err := checkTransition(e.sess.Status, StatusCompleted); err != nil {
		return Session{}, err
	}
	e.sess.Status = StatusCompleted
	e.sess.Summary = &summary
	e.sess.CompletedAt = &completedAt
	e.sess.DurationSeconds = durationSeconds
	return e.sess.Clone(), nil
}

// Fail writes the terminal FAILED state with its reason. Legal from both
// PENDING (call never connected) and IN_PROGRESS (bridge failure).
func (r *Registry) Fail(taskID, reason string, completedAt time.Time, durationSeconds int) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[taskID]
	if !ok {
		return Session{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err := checkTransition(e.sess.Status, StatusFailed); err != nil {
		return Session{}, err
	}
	e.sess.Status = StatusFailed
	e.sess.FailureReason = reason
	e.sess.CompletedAt = &completedAt
	e.sess.DurationSeconds = durationSeconds
	return e.sess.Clone(), nil
}

// FailPending writes the terminal FAILED state only if the session is still
// PENDING and unclaimed by a bridge. The answer watchdog and provider status
// callbacks race the bridge for the first transition; this makes their side of
// the race atomic, so a call that connects at the same instant is never torn
// down underneath its orchestrator.
func (r *Registry) FailPending(taskID, reason string, completedAt time.Time, durationSeconds int) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[taskID]
	if !ok {
		return Session{}, false
	}
	if e.sess.Status != StatusPending || e.bridgeActive {
		return Session{}, false
	}
	e.sess.Status = StatusFailed
	e.sess.FailureReason = reason
	e.sess.CompletedAt = &completedAt
	e.sess.DurationSeconds = durationSeconds
	return e.sess.Clone(), true
}

// AcquireBridge claims the single orchestrator slot for a session. A session
// whose bridge is running, or which already finished, cannot be claimed again.
func (r *Registry) AcquireBridge(taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if e.bridgeActive {
		return fmt.Errorf("task %s: %w", taskID, ErrBridgeActive)
	}
	if e.sess.Status.Terminal() {
		return fmt.Errorf("task %s is %s: %w", taskID, e.sess.Status, ErrInvalidTransition)
	}
	e.bridgeActive = true
	return nil
}

// ReleaseBridge frees the orchestrator slot.
func (r *Registry) ReleaseBridge(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[taskID]; ok {
		e.bridgeActive = false
	}
}

// TrackInitiation stores the handle of the background placement task so the
// watchdog can be canceled once the bridge starts, or at shutdown.
func (r *Registry) TrackInitiation(taskID string, handle *TaskHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[taskID]; ok {
		e.initiation = handle
	}
}

// CancelInitiation cancels the session's background placement task, if any.
func (r *Registry) CancelInitiation(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[taskID]; ok && e.initiation != nil {
		e.initiation.Cancel()
	}
}

// Shutdown cancels every outstanding initiation task and waits for their done
// signals until the context expires.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	handles := make([]*TaskHandle, 0, len(r.entries))
	for _, e := range r.entries {
		if e.initiation != nil {
			handles = append(handles, e.initiation)
		}
	}
	r.mu.RUnlock()

	for _, h := range handles {
		h.Cancel()
	}
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return
		}
	}
}
