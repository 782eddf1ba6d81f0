package twilio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"feedback-server/internal/observability"

	"github.com/gorilla/websocket"
)

// EventType enumerates the media stream events surfaced to the bridge.
type EventType string

const (
	EventStart  EventType = "start"
	EventMedia  EventType = "media"
	EventStop   EventType = "stop"
	EventMark   EventType = "mark"
	EventClosed EventType = "closed"
)

// StreamEvent is one inbound media stream event, delivered in arrival order on
// the stream's event channel.
type StreamEvent struct {
	Type      EventType
	StreamSID string // start
	Audio     []byte // media, raw mu-law bytes
	Mark      string // mark, acknowledged mark name
	Err       error  // closed
}

// mediaEvent is the Twilio Media Streams wire envelope.
type mediaEvent struct {
	Event string `json:"event"`
	Start struct {
		StreamSid string `json:"streamSid"`
		CallSid   string `json:"callSid"`
	} `json:"start,omitempty"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
	Mark struct {
		Name string `json:"name"`
	} `json:"mark,omitempty"`
}

// Stream wraps one upgraded Twilio media stream connection. Reading starts
// immediately; events arrive on Events() and the channel closes when the
// stream ends or the connection drops.
type Stream struct {
	conn         *websocket.Conn
	logger       *observability.Logger
	events       chan StreamEvent
	writeMu      sync.Mutex
	mu           sync.Mutex
	streamSID    string
	pendingMarks int
	closeOnce    sync.Once
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewStream(conn *websocket.Conn, logger *observability.Logger) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		conn:   conn,
		logger: logger,
		events: make(chan StreamEvent, 256),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.readLoop()
	return s
}

func (s *Stream) Events() <-chan StreamEvent {
	return s.events
}

// StreamSID returns the stream identifier captured from the start event, or
// empty before the stream has started.
func (s *Stream) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// PendingMarks reports how many sent audio frames have not been acknowledged.
func (s *Stream) PendingMarks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingMarks
}

// SendAudio frames one chunk of raw mu-law audio as a media message followed
// by a mark, so playback progress comes back as mark acknowledgments.
func (s *Stream) SendAudio(audio []byte) error {
	s.mu.Lock()
	streamSID := s.streamSID
	s.mu.Unlock()
	if streamSID == "" {
		return fmt.Errorf("media stream has not started")
	}

	mediaMsg := map[string]any{
		"event":     "media",
		"streamSid": streamSID,
		"media": map[string]string{
			"payload": base64.StdEncoding.EncodeToString(audio),
		},
	}
	markMsg := map[string]any{
		"event":     "mark",
		"streamSid": streamSID,
		"mark": map[string]string{
			"name": "responsePart",
		},
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(mediaMsg); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	if err := s.conn.WriteJSON(markMsg); err != nil {
		return fmt.Errorf("failed to send mark frame: %w", err)
	}

	s.mu.Lock()
	s.pendingMarks++
	s.mu.Unlock()
	return nil
}

// Close is idempotent. It sends a close frame best-effort and drops the
// connection; the read loop then drains and closes the event channel.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()

		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()

		s.conn.Close()
	})
}

func (s *Stream) readLoop() {
	defer close(s.events)

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.WarnWithError(s.ctx, "media stream read failed", err)
			}
			s.emit(StreamEvent{Type: EventClosed, Err: err})
			return
		}

		var event mediaEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			s.logger.WarnWithError(s.ctx, "failed to parse media stream event", err)
			continue
		}

		switch event.Event {
		case "connected":
			// Handshake preamble before start, nothing to capture.

		case "start":
			s.mu.Lock()
			s.streamSID = event.Start.StreamSid
			s.mu.Unlock()
			s.logger.Info(s.ctx, fmt.Sprintf("media stream started: %s", event.Start.StreamSid))
			if !s.emit(StreamEvent{Type: EventStart, StreamSID: event.Start.StreamSid}) {
				return
			}

		case "media":
			audio, err := base64.StdEncoding.DecodeString(event.Media.Payload)
			if err != nil {
				s.logger.WarnWithError(s.ctx, "failed to decode media payload", err)
				continue
			}
			if !s.emit(StreamEvent{Type: EventMedia, Audio: audio}) {
				return
			}

		case "mark":
			s.mu.Lock()
			if s.pendingMarks > 0 {
				s.pendingMarks--
			}
			s.mu.Unlock()
			if !s.emit(StreamEvent{Type: EventMark, Mark: event.Mark.Name}) {
				return
			}

		case "stop":
			s.logger.Info(s.ctx, "media stream stopped")
			s.emit(StreamEvent{Type: EventStop})
			return

		default:
			s.logger.Debug(s.ctx, fmt.Sprintf("ignoring media stream event: %s", event.Event))
		}
	}
}

func (s *Stream) emit(event StreamEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// ClosePolicyViolation rejects a connection for a session that does not exist.
func ClosePolicyViolation(conn *websocket.Conn, reason string) {
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	conn.Close()
}

// CloseInternalError drops a connection after a server-side failure.
func CloseInternalError(conn *websocket.Conn) {
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "Internal error"))
	conn.Close()
}
