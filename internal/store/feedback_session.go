package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"feedback-server/internal/session"
)

// CreateFeedbackSessionParams represents parameters for creating a feedback session
type CreateFeedbackSessionParams struct {
	TaskID      string
	BookingID   string
	PhoneNumber string
}

const sqlCreateFeedbackSession = `
INSERT INTO feedback_sessions (task_id, booking_id, phone_number, status)
VALUES ($1, $2, $3, $4)
RETURNING task_id, booking_id, phone_number, status, call_sid, transcript, summary, failure_reason, duration_seconds, created_at, started_at, completed_at
`

// CreateFeedbackSession creates a new pending feedback session record
func (s *Store) CreateFeedbackSession(ctx context.Context, params CreateFeedbackSessionParams) (FeedbackSession, error) {
	var feedbackSession FeedbackSession
	err := s.db.GetContext(ctx, &feedbackSession, sqlCreateFeedbackSession,
		params.TaskID,
		params.BookingID,
		params.PhoneNumber,
		string(session.StatusPending))
	if err != nil {
		s.logger.Error(ctx, "failed to create feedback session", err)
		return FeedbackSession{}, fmt.Errorf("failed to create feedback session: %w", err)
	}
	return feedbackSession, nil
}

const sqlGetFeedbackSessionByTaskID = `
SELECT task_id, booking_id, phone_number, status, call_sid, transcript, summary, failure_reason, duration_seconds, created_at, started_at, completed_at
FROM feedback_sessions
WHERE task_id = $1
`

// GetFeedbackSessionByTaskID retrieves a feedback session by task ID
func (s *Store) GetFeedbackSessionByTaskID(ctx context.Context, taskID string) (FeedbackSession, error) {
	var feedbackSession FeedbackSession
	err := s.db.GetContext(ctx, &feedbackSession, sqlGetFeedbackSessionByTaskID, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FeedbackSession{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get feedback session by task ID", err)
		return FeedbackSession{}, fmt.Errorf("failed to get feedback session by task ID: %w", err)
	}
	return feedbackSession, nil
}

const sqlSetFeedbackSessionCallSID = `
UPDATE feedback_sessions SET call_sid = $1 WHERE task_id = $2
`

// SetFeedbackSessionCallSID records the provider call identifier after placement
func (s *Store) SetFeedbackSessionCallSID(ctx context.Context, taskID, callSID string) error {
	result, err := s.db.ExecContext(ctx, sqlSetFeedbackSessionCallSID, callSID, taskID)
	if err != nil {
		s.logger.Error(ctx, "failed to set feedback session call SID", err)
		return fmt.Errorf("failed to set feedback session call SID: %w", err)
	}
	return checkRowsAffected(result)
}

const sqlMarkFeedbackSessionInProgress = `
UPDATE feedback_sessions SET status = $1, started_at = $2 WHERE task_id = $3
`

// MarkFeedbackSessionInProgress mirrors the PENDING -> IN_PROGRESS transition.
// Transition legality is enforced by the session registry; the store only
// persists what the registry already accepted.
func (s *Store) MarkFeedbackSessionInProgress(ctx context.Context, taskID string, startedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, sqlMarkFeedbackSessionInProgress,
		string(session.StatusInProgress), startedAt, taskID)
	if err != nil {
		s.logger.Error(ctx, "failed to mark feedback session in progress", err)
		return fmt.Errorf("failed to mark feedback session in progress: %w", err)
	}
	return checkRowsAffected(result)
}

// CompleteFeedbackSessionParams represents the terminal COMPLETED write
type CompleteFeedbackSessionParams struct {
	TaskID          string
	Transcript      []session.TranscriptEntry
	Summary         session.Summary
	CompletedAt     time.Time
	DurationSeconds int
}

const sqlCompleteFeedbackSession = `
UPDATE feedback_sessions
SET status = $1, transcript = $2, summary = $3, completed_at = $4, duration_seconds = $5
WHERE task_id = $6
`

// CompleteFeedbackSession writes the terminal COMPLETED state with transcript and summary
func (s *Store) CompleteFeedbackSession(ctx context.Context, params CompleteFeedbackSessionParams) error {
	result, err := s.db.ExecContext(ctx, sqlCompleteFeedbackSession,
		string(session.StatusCompleted),
		TranscriptJSON(params.Transcript),
		SummaryJSON{Summary: &params.Summary},
		params.CompletedAt,
		params.DurationSeconds,
		params.TaskID)
	if err != nil {
		s.logger.Error(ctx, "failed to complete feedback session", err)
		return fmt.Errorf("failed to complete feedback session: %w", err)
	}
	return checkRowsAffected(result)
}

// FailFeedbackSessionParams represents the terminal FAILED write
type FailFeedbackSessionParams struct {
	TaskID          string
	Transcript      []session.TranscriptEntry
	FailureReason   string
	CompletedAt     time.Time
	DurationSeconds int
}

const sqlFailFeedbackSession = `
UPDATE feedback_sessions
SET status = $1, transcript = $2, failure_reason = $3, completed_at = $4, duration_seconds = $5
WHERE task_id = $6
`

// FailFeedbackSession writes the terminal FAILED state with the failure reason
func (s *Store) FailFeedbackSession(ctx context.Context, params FailFeedbackSessionParams) error {
	result, err := s.db.ExecContext(ctx, sqlFailFeedbackSession,
		string(session.StatusFailed),
		TranscriptJSON(params.Transcript),
		params.FailureReason,
		params.CompletedAt,
		params.DurationSeconds,
		params.TaskID)
	if err != nil {
		s.logger.Error(ctx, "failed to fail feedback session", err)
		return fmt.Errorf("failed to fail feedback session: %w", err)
	}
	return checkRowsAffected(result)
}

func checkRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
