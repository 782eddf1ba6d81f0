package store

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"feedback-server/internal/session"
)

// TranscriptJSON is a JSONB column holding the ordered transcript array.
type TranscriptJSON []session.TranscriptEntry

// Value implements the driver.Valuer interface for TranscriptJSON
func (t TranscriptJSON) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for TranscriptJSON
func (t *TranscriptJSON) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for TranscriptJSON")
	}

	if len(bytes) == 0 || string(bytes) == "null" {
		*t = nil
		return nil
	}

	var entries []session.TranscriptEntry
	if err := json.Unmarshal(bytes, &entries); err != nil {
		return err
	}
	*t = entries
	return nil
}

// SummaryJSON is a nullable JSONB column holding the structured call summary.
type SummaryJSON struct {
	Summary *session.Summary
}

// Value implements the driver.Valuer interface for SummaryJSON
func (s SummaryJSON) Value() (driver.Value, error) {
	if s.Summary == nil {
		return nil, nil
	}
	return json.Marshal(s.Summary)
}

// Scan implements the sql.Scanner interface for SummaryJSON
func (s *SummaryJSON) Scan(value interface{}) error {
	if value == nil {
		s.Summary = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for SummaryJSON")
	}

	if len(bytes) == 0 || string(bytes) == "null" {
		s.Summary = nil
		return nil
	}

	var summary session.Summary
	if err := json.Unmarshal(bytes, &summary); err != nil {
		return err
	}
	s.Summary = &summary
	return nil
}

// FeedbackSession is the persistent form of one feedback call session.
type FeedbackSession struct {
	TaskID          string         `db:"task_id"`
	BookingID       string         `db:"booking_id"`
	PhoneNumber     string         `db:"phone_number"`
	Status          string         `db:"status"`
	CallSID         sql.NullString `db:"call_sid"`
	Transcript      TranscriptJSON `db:"transcript"`
	Summary         SummaryJSON    `db:"summary"`
	FailureReason   sql.NullString `db:"failure_reason"`
	DurationSeconds sql.NullInt64  `db:"duration_seconds"`
	CreatedAt       time.Time      `db:"created_at"`
	StartedAt       sql.NullTime   `db:"started_at"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
}

// ToSession converts a stored row back into the in-memory session form, used
// when polling a session from a previous process.
func (f FeedbackSession) ToSession() session.Session {
	sess := session.Session{
		TaskID:      f.TaskID,
		BookingID:   f.BookingID,
		PhoneNumber: f.PhoneNumber,
		Status:      session.Status(f.Status),
		Transcript:  []session.TranscriptEntry(f.Transcript),
		Summary:     f.Summary.Summary,
		CreatedAt:   f.CreatedAt,
	}
	if f.CallSID.Valid {
		sess.CallSID = f.CallSID.String
	}
	if f.FailureReason.Valid {
		sess.FailureReason = f.FailureReason.String
	}
	if f.DurationSeconds.Valid {
		sess.DurationSeconds = int(f.DurationSeconds.Int64)
	}
	if f.StartedAt.Valid {
		startedAt := f.StartedAt.Time
		sess.StartedAt = &startedAt
	}
	if f.CompletedAt.Valid {
		completedAt := f.CompletedAt.Time
		sess.CompletedAt = &completedAt
	}
	return sess
}
