package processor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"feedback-server/internal/clients/openai"
	twilioclient "feedback-server/internal/clients/twilio"
	"feedback-server/internal/feedback/bridge"
	feedbacktwilio "feedback-server/internal/feedback/twilio"
	"feedback-server/internal/observability"
	"feedback-server/internal/session"
	"feedback-server/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/twilio/twilio-go/twiml"
)

//go:generate mockgen -source=processor.go -destination=mocks_test.go -package=processor

// CallPlacer starts outbound calls with the telephony provider.
type CallPlacer interface {
	PlaceCall(ctx context.Context, params twilioclient.PlaceCallParams) (string, error)
}

// RealtimeDialer opens a configured model conversation for an answered call.
type RealtimeDialer interface {
	Connect(ctx context.Context, cfg openai.ConversationConfig) (*openai.Conversation, error)
}

// Bridge runs the audio loop for one answered call and returns the session's
// terminal snapshot.
type Bridge interface {
	Run(ctx context.Context, taskID string, telephony bridge.TelephonyStream, realtime bridge.RealtimeConversation) session.Session
}

// FeedbackStore persists the session rows the processor owns. Once a bridge
// has claimed a call, terminal writes belong to the bridge.
type FeedbackStore interface {
	CreateFeedbackSession(ctx context.Context, params store.CreateFeedbackSessionParams) (store.FeedbackSession, error)
	GetFeedbackSessionByTaskID(ctx context.Context, taskID string) (store.FeedbackSession, error)
	SetFeedbackSessionCallSID(ctx context.Context, taskID, callSID string) error
	FailFeedbackSession(ctx context.Context, params store.FailFeedbackSessionParams) error
}

// Config carries the call-behavior settings the processor needs.
type Config struct {
	BaseURL       string        // public URL Twilio reaches this service at
	AnswerTimeout time.Duration // how long a placed call may wait for an answer
	Voice         string        // realtime agent voice
}

type FeedbackProcessor struct {
	registry   *session.Registry
	caller     CallPlacer
	dialer     RealtimeDialer
	bridge     Bridge
	store      FeedbackStore
	guidelines string
	config     Config
	logger     *observability.Logger
}

func New(registry *session.Registry, caller CallPlacer, dialer RealtimeDialer, bridge Bridge,
	store FeedbackStore, guidelines string, config Config, logger *observability.Logger) *FeedbackProcessor {
	return &FeedbackProcessor{
		registry:   registry,
		caller:     caller,
		dialer:     dialer,
		bridge:     bridge,
		store:      store,
		guidelines: guidelines,
		config:     config,
		logger:     logger,
	}
}

// InitiatedFeedback is the immediate acknowledgment for a feedback request.
// The call itself proceeds in the background.
type InitiatedFeedback struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// InitiateFeedback creates a PENDING session for the booking and launches the
// outbound call in the background. It returns as soon as the session exists;
// callers poll GetFeedbackStatus for progress.
func (p *FeedbackProcessor) InitiateFeedback(ctx context.Context, bookingID string) (InitiatedFeedback, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "booking_id", Value: bookingID})

	booking, err := lookupBooking(bookingID)
	if err != nil {
		p.logger.WarnWithError(ctx, "Feedback requested for unknown booking", err)
		return InitiatedFeedback{}, err
	}

	taskID := newTaskID()
	ctx = observability.WithFields(ctx, observability.Field{Key: "task_id", Value: taskID})

	if _, err := p.store.CreateFeedbackSession(ctx, store.CreateFeedbackSessionParams{
		TaskID:      taskID,
		BookingID:   bookingID,
		PhoneNumber: booking.PhoneNumber,
	}); err != nil {
		p.logger.Error(ctx, "Failed to persist feedback session", err)
		return InitiatedFeedback{}, err
	}
	if err := p.registry.Create(session.Session{
		TaskID:      taskID,
		BookingID:   bookingID,
		PhoneNumber: booking.PhoneNumber,
		Status:      session.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		p.logger.Error(ctx, "Failed to track feedback session", err)
		return InitiatedFeedback{}, err
	}

	placementCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle := session.NewTaskHandle(cancel)
	p.registry.TrackInitiation(taskID, handle)
	go p.placeCall(placementCtx, handle, taskID, booking)

	p.logger.Info(ctx, fmt.Sprintf("Feedback call initiated for booking %s", bookingID))
	return InitiatedFeedback{
		TaskID:  taskID,
		Status:  "initiated",
		Message: fmt.Sprintf("Feedback call initiated for booking %s", bookingID),
	}, nil
}

// placeCall runs in the background after InitiateFeedback returns: it places
// the outbound call, records the call SID, and then waits out the answer
// window. The handle cancels the wait once a media stream claims the session,
// or at shutdown.
func (p *FeedbackProcessor) placeCall(ctx context.Context, handle *session.TaskHandle, taskID string, booking Booking) {
	defer handle.Finish()

	callSID, err := p.caller.PlaceCall(ctx, twilioclient.PlaceCallParams{
		To:                booking.PhoneNumber,
		VoiceURL:          fmt.Sprintf("%s/twilio/voice/%s", p.config.BaseURL, taskID),
		StatusCallbackURL: fmt.Sprintf("%s/twilio/status/%s", p.config.BaseURL, taskID),
	})
	if err != nil {
		p.logger.Error(ctx, "Failed to place outbound call", err)
		p.failInitiation(ctx, taskID, session.ReasonCallInitiationFailed, 0)
		return
	}

	if err := p.registry.SetCallSID(taskID, callSID); err != nil {
		p.logger.WarnWithError(ctx, "Failed to track call SID", err)
	}
	if err := p.store.SetFeedbackSessionCallSID(ctx, taskID, callSID); err != nil {
		p.logger.WarnWithError(ctx, "Failed to persist call SID", err)
	}

	timer := time.NewTimer(p.config.AnswerTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
		p.logger.Warn(ctx, "Call was never answered within the answer window")
		p.failInitiation(ctx, taskID, session.ReasonAnswerTimeout, 0)
	}
}

// failInitiation marks a still-pending session FAILED. Sessions already
// claimed by a bridge or finished by a status callback are left alone.
func (p *FeedbackProcessor) failInitiation(ctx context.Context, taskID, reason string, durationSeconds int) {
	ctx = context.WithoutCancel(ctx)
	now := time.Now().UTC()
	if _, ok := p.registry.FailPending(taskID, reason, now, durationSeconds); !ok {
		return
	}
	if err := p.store.FailFeedbackSession(ctx, store.FailFeedbackSessionParams{
		TaskID:          taskID,
		FailureReason:   reason,
		CompletedAt:     now,
		DurationSeconds: durationSeconds,
	}); err != nil {
		p.logger.Error(ctx, "Failed to persist session failure", err)
	}
	p.logger.Info(ctx, fmt.Sprintf("Session failed before any conversation: %s", reason))
}

// GetFeedbackStatus returns a point-in-time snapshot of a session. Live
// sessions come from the registry; sessions from earlier process runs are
// read back from the store.
func (p *FeedbackProcessor) GetFeedbackStatus(ctx context.Context, taskID string) (session.Session, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "task_id", Value: taskID})

	sess, err := p.registry.Get(taskID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return session.Session{}, err
	}

	row, err := p.store.GetFeedbackSessionByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return session.Session{}, fmt.Errorf("task %s: %w", taskID, session.ErrNotFound)
		}
		p.logger.Error(ctx, "Failed to load feedback session", err)
		return session.Session{}, err
	}
	return row.ToSession(), nil
}

// HandleCallStatus applies a provider lifecycle callback. Only sessions still
// waiting for an answer change state here: once a media stream has claimed
// the call, its bridge owns every transition, and terminal sessions ignore
// further callbacks.
func (p *FeedbackProcessor) HandleCallStatus(ctx context.Context, taskID, callStatus, callDuration string) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "task_id", Value: taskID},
		observability.Field{Key: "call_status", Value: callStatus},
	)

	duration, err := strconv.Atoi(callDuration)
	if err != nil {
		duration = 0
	}
	p.logger.Info(ctx, fmt.Sprintf("Call status update: %s, duration: %ds", callStatus, duration))

	var reason string
	switch callStatus {
	case "busy":
		reason = session.ReasonBusy
	case "no-answer":
		reason = session.ReasonNoAnswer
	case "failed":
		reason = session.ReasonCallFailed
	case "canceled":
		reason = session.ReasonCanceled
	case "completed":
		// The call ended without a media stream ever claiming the session.
		reason = session.ReasonCallEndedBeforeStream
	}

	if _, err := p.registry.Get(taskID); err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			return err
		}
		return p.handleOfflineCallStatus(ctx, taskID, reason, duration)
	}

	if reason == "" {
		// queued, initiated, ringing, in-progress: nothing to record.
		return nil
	}

	now := time.Now().UTC()
	if _, ok := p.registry.FailPending(taskID, reason, now, duration); !ok {
		p.logger.Info(ctx, "Call status ignored: session already claimed or finished")
		return nil
	}
	p.registry.CancelInitiation(taskID)
	if err := p.store.FailFeedbackSession(ctx, store.FailFeedbackSessionParams{
		TaskID:          taskID,
		FailureReason:   reason,
		CompletedAt:     now,
		DurationSeconds: duration,
	}); err != nil {
		p.logger.Error(ctx, "Failed to persist session failure", err)
	}
	p.logger.Info(ctx, fmt.Sprintf("Call ended before any conversation: %s", reason))
	return nil
}

// handleOfflineCallStatus covers callbacks for sessions this process never
// saw, usually after a restart. The store row is all there is to update.
func (p *FeedbackProcessor) handleOfflineCallStatus(ctx context.Context, taskID, reason string, durationSeconds int) error {
	row, err := p.store.GetFeedbackSessionByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("task %s: %w", taskID, session.ErrNotFound)
		}
		p.logger.Error(ctx, "Failed to load feedback session", err)
		return err
	}
	if reason == "" || session.Status(row.Status) != session.StatusPending {
		return nil
	}
	if err := p.store.FailFeedbackSession(ctx, store.FailFeedbackSessionParams{
		TaskID:          taskID,
		FailureReason:   reason,
		CompletedAt:     time.Now().UTC(),
		DurationSeconds: durationSeconds,
	}); err != nil {
		p.logger.Error(ctx, "Failed to persist session failure", err)
		return err
	}
	p.logger.Info(ctx, fmt.Sprintf("Stale session failed from status callback: %s", reason))
	return nil
}

// AnswerTwiML renders the instructions Twilio fetches when the guest answers:
// a short greeting, a beat of silence, then a media stream opened back to
// this service. Unknown tasks get a spoken apology and a hangup.
func (p *FeedbackProcessor) AnswerTwiML(ctx context.Context, taskID string) (string, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "task_id", Value: taskID})

	if !p.sessionKnown(ctx, taskID) {
		p.logger.Warn(ctx, "Voice webhook called for unknown session")
		return twiml.Voice([]twiml.Element{
			twiml.VoiceSay{Message: "We're sorry, there was an error. Please try again later."},
			twiml.VoiceHangup{},
		})
	}

	host := strings.TrimPrefix(strings.TrimPrefix(p.config.BaseURL, "https://"), "http://")
	p.logger.Info(ctx, "Answer webhook served, directing call to media stream")
	return twiml.Voice([]twiml.Element{
		twiml.VoiceSay{
			Message: "Please wait while you get connected to our customer service representative",
			Voice:   "Google.en-US-Chirp3-HD-Aoede",
		},
		twiml.VoicePause{Length: "1"},
		twiml.VoiceConnect{
			InnerElements: []twiml.Element{
				twiml.VoiceStream{Url: fmt.Sprintf("wss://%s/twilio/stream/%s", host, taskID)},
			},
		},
	})
}

func (p *FeedbackProcessor) sessionKnown(ctx context.Context, taskID string) bool {
	if _, err := p.registry.Get(taskID); err == nil {
		return true
	}
	_, err := p.store.GetFeedbackSessionByTaskID(ctx, taskID)
	return err == nil
}

// RunMediaStream owns a provider media-stream connection for its whole life:
// it claims the session, opens the model conversation, and hands both ends to
// the bridge. It returns once the call has reached a terminal state.
func (p *FeedbackProcessor) RunMediaStream(ctx context.Context, taskID string, conn *websocket.Conn) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "task_id", Value: taskID})
	p.logger.Info(ctx, "Media stream connection established")

	sess, err := p.registry.Get(taskID)
	if err != nil {
		p.logger.WarnWithError(ctx, "Media stream opened for unknown session", err)
		feedbacktwilio.ClosePolicyViolation(conn, "Session not found")
		return
	}
	booking, err := lookupBooking(sess.BookingID)
	if err != nil {
		p.logger.Error(ctx, "Failed to resolve booking for session", err)
		feedbacktwilio.ClosePolicyViolation(conn, "Session not found")
		return
	}

	if err := p.registry.AcquireBridge(taskID); err != nil {
		p.logger.WarnWithError(ctx, "Media stream rejected", err)
		feedbacktwilio.ClosePolicyViolation(conn, "Session not found")
		return
	}
	defer p.registry.ReleaseBridge(taskID)

	// The bridge decides the session's fate from here; the answer watchdog
	// is out of the picture.
	p.registry.CancelInitiation(taskID)

	conversation, err := p.dialer.Connect(ctx, openai.ConversationConfig{
		Instructions: buildSystemPrompt(booking, p.guidelines),
		Voice:        p.config.Voice,
	})
	if err != nil {
		p.logger.Error(ctx, "Failed to open realtime conversation", err)
		now := time.Now().UTC()
		if _, failErr := p.registry.Fail(taskID, session.ReasonRealtimeConnectFailed, now, 0); failErr != nil {
			p.logger.Error(ctx, "Failed to mark session failed", failErr)
		}
		if storeErr := p.store.FailFeedbackSession(context.WithoutCancel(ctx), store.FailFeedbackSessionParams{
			TaskID:        taskID,
			FailureReason: session.ReasonRealtimeConnectFailed,
			CompletedAt:   now,
		}); storeErr != nil {
			p.logger.Error(ctx, "Failed to persist session failure", storeErr)
		}
		feedbacktwilio.CloseInternalError(conn)
		return
	}

	stream := feedbacktwilio.NewStream(conn, p.logger)
	final := p.bridge.Run(ctx, taskID, stream, conversation)
	p.logger.Info(ctx, fmt.Sprintf("Feedback session finished with status %s", final.Status))
}

func newTaskID() string {
	id := uuid.New()
	return "task_" + hex.EncodeToString(id[:])[:12]
}
