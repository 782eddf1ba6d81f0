package bridge

import (
	"context"
	"fmt"
	"time"

	"feedback-server/internal/clients/openai"
	twiliostream "feedback-server/internal/feedback/twilio"
	"feedback-server/internal/observability"
	"feedback-server/internal/session"
	"feedback-server/internal/store"
	"feedback-server/internal/transcript"
)

// conversationEndedOutput acknowledges the end_conversation tool call.
const conversationEndedOutput = `{"status": "conversation_ended"}`

const (
	// closingGraceDelay lets the closing audio play out after the model's
	// final response before the call is torn down.
	defaultClosingGrace = 5 * time.Second
	// responseDoneFallback bounds the wait for the final response after the
	// end_conversation acknowledgment.
	defaultResponseFallback = 15 * time.Second
	// summarizeTimeout bounds the one summarization request.
	summarizeTimeout = 60 * time.Second
)

// TelephonyStream is the caller side of the bridge.
type TelephonyStream interface {
	Events() <-chan twiliostream.StreamEvent
	SendAudio(audio []byte) error
	Close()
}

// RealtimeConversation is the model side of the bridge.
type RealtimeConversation interface {
	Events() <-chan openai.ConversationEvent
	AppendAudio(audio []byte) error
	CompleteFunctionCall(callID, output string) error
	Close()
}

// Summarizer produces the structured summary for a finished conversation.
type Summarizer interface {
	Summarize(ctx context.Context, entries []session.TranscriptEntry) (session.Summary, error)
}

// SessionStore persists session state changes decided by the bridge.
type SessionStore interface {
	MarkFeedbackSessionInProgress(ctx context.Context, taskID string, startedAt time.Time) error
	CompleteFeedbackSession(ctx context.Context, params store.CompleteFeedbackSessionParams) error
	FailFeedbackSession(ctx context.Context, params store.FailFeedbackSessionParams) error
}

// Orchestrator runs one call's bridge between the telephony stream and the
// realtime conversation. All state transitions for the call are decided here,
// one event at a time.
type Orchestrator struct {
	registry         *session.Registry
	store            SessionStore
	summarizer       Summarizer
	maxCallDuration  time.Duration
	closingGrace     time.Duration
	responseFallback time.Duration
	logger           *observability.Logger
}

func New(registry *session.Registry, sessionStore SessionStore, summarizer Summarizer, maxCallDuration time.Duration, logger *observability.Logger) Orchestrator {
	return Orchestrator{
		registry:         registry,
		store:            sessionStore,
		summarizer:       summarizer,
		maxCallDuration:  maxCallDuration,
		closingGrace:     defaultClosingGrace,
		responseFallback: defaultResponseFallback,
		logger:           logger,
	}
}

// outcome is how the event loop terminated.
type outcome int

const (
	// outcomeEnded: the model signaled end_conversation and the closing
	// exchange ran its course. Summarize unconditionally.
	outcomeEnded outcome = iota
	// outcomeHangup: the telephony side went away without an end signal
	// (stop frame, dropped connection, write failure, call duration cap,
	// or shutdown). Summarize only a non-empty transcript.
	outcomeHangup
	// outcomeRealtimeFailed: the realtime side errored or dropped
	// unexpectedly. Never summarize.
	outcomeRealtimeFailed
	// outcomeAborted: the session reached a terminal state through another
	// path before the bridge could take over. Nothing left to write.
	outcomeAborted
)

// Run drives the bridge until the call terminates, then writes the terminal
// state. It returns the terminal session snapshot. The session never remains
// IN_PROGRESS after Run returns.
func (o Orchestrator) Run(ctx context.Context, taskID string, telephony TelephonyStream, realtime RealtimeConversation) session.Session {
	ctx = observability.WithFields(ctx, observability.Field{Key: "task_id", Value: taskID})

	accumulator := transcript.NewAccumulator()
	telephonyEvents := telephony.Events()
	realtimeEvents := realtime.Events()

	var startedAt time.Time
	var graceC, fallbackC, maxDurC <-chan time.Time
	conversationEnded := false
	forwardInput := true
	result := outcomeHangup
	failureReason := ""

loop:
	for {
		select {
		case <-ctx.Done():
			o.logger.Info(ctx, "bridge interrupted by shutdown")
			result = outcomeHangup
			break loop

		case event, ok := <-telephonyEvents:
			if !ok {
				result = outcomeHangup
				break loop
			}
			switch event.Type {
			case twiliostream.EventStart:
				if !startedAt.IsZero() {
					continue
				}
				startedAt = time.Now().UTC()
				if _, err := o.registry.MarkInProgress(taskID, startedAt); err != nil {
					o.logger.Error(ctx, "session cannot enter IN_PROGRESS", err)
					result = outcomeAborted
					break loop
				}
				if err := o.store.MarkFeedbackSessionInProgress(ctx, taskID, startedAt); err != nil {
					o.logger.Error(ctx, "failed to persist IN_PROGRESS", err)
				}
				maxDurC = time.After(o.maxCallDuration)

			case twiliostream.EventMedia:
				if !forwardInput {
					continue
				}
				if err := realtime.AppendAudio(event.Audio); err != nil {
					o.logger.Error(ctx, "failed to forward caller audio", err)
					result = outcomeRealtimeFailed
					failureReason = session.ReasonRealtimeConnectionClosed
					break loop
				}

			case twiliostream.EventMark:
				// Playback acknowledgment, nothing to decide.

			case twiliostream.EventStop:
				o.logger.Info(ctx, "caller ended the stream")
				result = outcomeHangup
				break loop

			case twiliostream.EventClosed:
				result = outcomeHangup
				break loop
			}

		case event, ok := <-realtimeEvents:
			if !ok {
				realtimeEvents = nil
				if conversationEnded {
					continue
				}
				result = outcomeRealtimeFailed
				failureReason = session.ReasonRealtimeConnectionClosed
				break loop
			}
			switch event.Type {
			case openai.EventAudioDelta:
				if err := telephony.SendAudio(event.Audio); err != nil {
					o.logger.WarnWithError(ctx, "failed to forward model audio", err)
					result = outcomeHangup
					break loop
				}

			case openai.EventTranscript:
				if event.Transcript == "" {
					continue
				}
				role := session.RoleAgent
				if event.Speaker == openai.SpeakerCaller {
					role = session.RoleGuest
				}
				entry := accumulator.Append(role, event.Transcript)
				if err := o.registry.AppendTranscript(taskID, entry); err != nil {
					o.logger.WarnWithError(ctx, "failed to mirror transcript entry", err)
				}

			case openai.EventFunctionCall:
				if event.Name != "end_conversation" {
					o.logger.Warn(ctx, fmt.Sprintf("ignoring unknown function call: %s", event.Name))
					continue
				}
				o.logger.Info(ctx, "model requested end of conversation")
				conversationEnded = true
				forwardInput = false
				if err := realtime.CompleteFunctionCall(event.CallID, conversationEndedOutput); err != nil {
					o.logger.Error(ctx, "failed to acknowledge end of conversation", err)
					result = outcomeRealtimeFailed
					failureReason = session.ReasonRealtimeConnectionClosed
					break loop
				}
				fallbackC = time.After(o.responseFallback)

			case openai.EventResponseDone:
				if conversationEnded && graceC == nil {
					graceC = time.After(o.closingGrace)
					fallbackC = nil
				}

			case openai.EventError:
				o.logger.Error(ctx, "realtime session reported an error", event.Err)
				result = outcomeRealtimeFailed
				failureReason = event.Err.Error()
				break loop

			case openai.EventClosed:
				realtimeEvents = nil
				if conversationEnded {
					continue
				}
				result = outcomeRealtimeFailed
				failureReason = session.ReasonRealtimeConnectionClosed
				break loop
			}

		case <-graceC:
			result = outcomeEnded
			break loop

		case <-fallbackC:
			o.logger.Warn(ctx, "final response never arrived, ending call")
			result = outcomeEnded
			break loop

		case <-maxDurC:
			o.logger.Warn(ctx, "call reached maximum duration, ending")
			result = outcomeHangup
			break loop
		}
	}

	realtime.Close()
	telephony.Close()

	// The connection-scoped context dies with the sockets; terminal writes
	// and summarization must not.
	finishCtx := context.WithoutCancel(ctx)
	completedAt := time.Now().UTC()
	duration := 0
	if !startedAt.IsZero() {
		duration = int(completedAt.Sub(startedAt) / time.Second)
	}

	switch result {
	case outcomeEnded:
		return o.summarizeAndFinish(finishCtx, taskID, accumulator, completedAt, duration)

	case outcomeHangup:
		if accumulator.Len() == 0 {
			return o.fail(finishCtx, taskID, session.ReasonNoConversation, nil, completedAt, duration)
		}
		return o.summarizeAndFinish(finishCtx, taskID, accumulator, completedAt, duration)

	case outcomeRealtimeFailed:
		if failureReason == "" {
			failureReason = session.ReasonRealtimeConnectionClosed
		}
		return o.fail(finishCtx, taskID, failureReason, accumulator.Snapshot(), completedAt, duration)

	default:
		sess, err := o.registry.Get(taskID)
		if err != nil {
			o.logger.Error(finishCtx, "aborted bridge could not load session", err)
		}
		return sess
	}
}

func (o Orchestrator) summarizeAndFinish(ctx context.Context, taskID string, accumulator *transcript.Accumulator, completedAt time.Time, duration int) session.Session {
	entries := accumulator.Snapshot()

	summarizeCtx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()

	summary, err := o.summarizer.Summarize(summarizeCtx, entries)
	if err != nil {
		o.logger.Error(ctx, "summarization failed", err)
		reason := fmt.Sprintf("%s: %v", session.ReasonSummarizationFailed, err)
		return o.fail(ctx, taskID, reason, entries, completedAt, duration)
	}

	sess, err := o.registry.Complete(taskID, summary, completedAt, duration)
	if err != nil {
		o.logger.Error(ctx, "failed to complete session", err)
		return sess
	}

	if err := o.store.CompleteFeedbackSession(ctx, store.CompleteFeedbackSessionParams{
		TaskID:          taskID,
		Transcript:      entries,
		Summary:         summary,
		CompletedAt:     completedAt,
		DurationSeconds: duration,
	}); err != nil {
		o.logger.Error(ctx, "failed to persist completed session", err)
	}

	o.logger.Info(ctx, fmt.Sprintf("feedback call completed with sentiment %s", summary.Sentiment))
	return sess
}

func (o Orchestrator) fail(ctx context.Context, taskID, reason string, entries []session.TranscriptEntry, completedAt time.Time, duration int) session.Session {
	sess, err := o.registry.Fail(taskID, reason, completedAt, duration)
	if err != nil {
		o.logger.Error(ctx, "failed to mark session failed", err)
		return sess
	}

	if err := o.store.FailFeedbackSession(ctx, store.FailFeedbackSessionParams{
		TaskID:          taskID,
		Transcript:      entries,
		FailureReason:   reason,
		CompletedAt:     completedAt,
		DurationSeconds: duration,
	}); err != nil {
		o.logger.Error(ctx, "failed to persist failed session", err)
	}

	o.logger.Info(ctx, fmt.Sprintf("feedback call failed: %s", reason))
	return sess
}
