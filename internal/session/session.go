package session

import (
	"errors"
	"fmt"
	"time"
)

// Status represents the lifecycle state of a feedback call session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Failure reasons recorded on FAILED sessions.
const (
	ReasonCallInitiationFailed     = "call_initiation_failed"
	ReasonBusy                     = "busy"
	ReasonNoAnswer                 = "no_answer"
	ReasonCallFailed               = "call_failed"
	ReasonCanceled                 = "canceled"
	ReasonAnswerTimeout            = "answer_timeout"
	ReasonCallEndedBeforeStream    = "call_ended_before_stream"
	ReasonRealtimeConnectFailed    = "realtime_connect_failed"
	ReasonRealtimeConnectionClosed = "realtime_connection_closed"
	ReasonSummarizationFailed      = "summarization_failed"
	ReasonNoConversation           = "no_conversation"
)

// Role identifies the speaker of a transcript entry.
type Role string

const (
	RoleAgent Role = "agent"
	RoleGuest Role = "guest"
)

// Sentiment is the coarse polarity of the whole conversation.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// TranscriptEntry is one finalized utterance. Sequence is assigned on append,
// starts at 1 and never changes afterwards.
type TranscriptEntry struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	Sequence int    `json:"sequence"`
}

// Summary is the structured result of summarizing a finished call.
type Summary struct {
	Overview        string    `json:"overview"`
	Painpoints      []string  `json:"painpoints"`
	Highlights      []string  `json:"highlights"`
	Recommendations []string  `json:"recommendations"`
	Sentiment       Sentiment `json:"sentiment"`
}

var ErrInvalidSummary = errors.New("invalid summary")

// Validate checks that every required summary field is present and the
// sentiment value is one of the allowed set. List fields may be empty but
// must exist; a missing key unmarshals to nil and fails here.
func (s Summary) Validate() error {
	if s.Overview == "" {
		return fmt.Errorf("missing overview: %w", ErrInvalidSummary)
	}
	if s.Painpoints == nil {
		return fmt.Errorf("missing painpoints: %w", ErrInvalidSummary)
	}
	if s.Highlights == nil {
		return fmt.Errorf("missing highlights: %w", ErrInvalidSummary)
	}
	if s.Recommendations == nil {
		return fmt.Errorf("missing recommendations: %w", ErrInvalidSummary)
	}
	switch s.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		return fmt.Errorf("sentiment %q not in allowed set: %w", s.Sentiment, ErrInvalidSummary)
	}
	return nil
}

// Clone returns a deep copy of the summary.
func (s Summary) Clone() Summary {
	out := s
	out.Painpoints = cloneStrings(s.Painpoints)
	out.Highlights = cloneStrings(s.Highlights)
	out.Recommendations = cloneStrings(s.Recommendations)
	return out
}

// Session is one feedback call from initiation to its terminal state.
type Session struct {
	TaskID          string
	BookingID       string
	PhoneNumber     string
	Status          Status
	CallSID         string
	Transcript      []TranscriptEntry
	Summary         *Summary
	FailureReason   string
	DurationSeconds int
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// Clone returns a deep copy so callers can hand out snapshots that never
// alias registry-owned state.
func (s Session) Clone() Session {
	out := s
	if s.Transcript != nil {
		out.Transcript = make([]TranscriptEntry, len(s.Transcript))
		copy(out.Transcript, s.Transcript)
	}
	if s.Summary != nil {
		summary := s.Summary.Clone()
		out.Summary = &summary
	}
	if s.StartedAt != nil {
		startedAt := *s.StartedAt
		out.StartedAt = &startedAt
	}
	if s.CompletedAt != nil {
		completedAt := *s.CompletedAt
		out.CompletedAt = &completedAt
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
