package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"feedback-server/internal/observability"

	"github.com/gorilla/websocket"
)

const realtimeBaseURL = "wss://api.openai.com/v1/realtime"

const maxOutputTokens = 512

// Speaker identifies which side of the call produced a committed transcript.
type Speaker string

const (
	SpeakerCaller    Speaker = "caller"
	SpeakerAssistant Speaker = "assistant"
)

// EventType enumerates the conversation events surfaced to the bridge.
type EventType string

const (
	EventAudioDelta   EventType = "audio_delta"
	EventTranscript   EventType = "transcript"
	EventFunctionCall EventType = "function_call"
	EventResponseDone EventType = "response_done"
	EventError        EventType = "error"
	EventClosed       EventType = "closed"
)

// ConversationEvent is one event read from the realtime session, delivered in
// server order on the conversation's event channel.
type ConversationEvent struct {
	Type       EventType
	Audio      []byte  // audio_delta: raw audio bytes
	Speaker    Speaker // transcript
	Transcript string  // transcript
	Name       string  // function_call
	CallID     string  // function_call
	Arguments  string  // function_call, verbatim JSON
	Err        error   // error, closed
}

// ConversationConfig holds the per-call session parameters.
type ConversationConfig struct {
	Instructions string
	Voice        string
}

// Realtime dials OpenAI realtime sessions over WebSocket.
type Realtime struct {
	apiKey  string
	model   string
	baseURL string
	logger  *observability.Logger
}

func NewRealtime(apiKey, model string, logger *observability.Logger) (*Realtime, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("realtime model is required")
	}
	return &Realtime{apiKey: apiKey, model: model, baseURL: realtimeBaseURL, logger: logger}, nil
}

// Connect opens a realtime session and configures it for a feedback call:
// G.711 mu-law audio both ways, server VAD, caller-side transcription, and the
// end_conversation tool. The returned conversation is live once Connect returns.
func (r *Realtime) Connect(ctx context.Context, cfg ConversationConfig) (*Conversation, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+r.apiKey)

	conn, _, err := dialer.DialContext(ctx, r.baseURL+"?model="+r.model, headers)
	if err != nil {
		r.logger.Error(ctx, "failed to connect to OpenAI realtime endpoint", err)
		return nil, fmt.Errorf("failed to connect to realtime endpoint: %w", err)
	}

	update := sessionUpdate{
		Type: "session.update",
		Session: realtimeSession{
			Type:             "realtime",
			Model:            r.model,
			OutputModalities: []string{"audio"},
			MaxOutputTokens:  maxOutputTokens,
			Audio: sessionAudio{
				Input: sessionAudioInput{
					Format:        audioFormat{Type: "audio/pcmu"},
					TurnDetection: turnDetection{Type: "server_vad"},
					Transcription: audioTranscription{
						Language: "en",
						Model:    "whisper-1",
					},
				},
				Output: sessionAudioOutput{
					Format: audioFormat{Type: "audio/pcmu"},
					Voice:  cfg.Voice,
				},
			},
			Instructions: cfg.Instructions,
			Tools: []sessionTool{
				{
					Type:        "function",
					Name:        "end_conversation",
					Description: "Call this when you have finished collecting all feedback from user and are ready to end the call",
					Parameters: toolParameters{
						Type:       "object",
						Properties: map[string]any{},
						Required:   []string{},
					},
				},
			},
			ToolChoice: "auto",
		},
	}

	conversation := newConversation(conn, r.logger)
	if err := conversation.send(update); err != nil {
		conn.Close()
		r.logger.Error(ctx, "failed to send session update", err)
		return nil, fmt.Errorf("failed to send session update: %w", err)
	}

	go conversation.readLoop()

	r.logger.Info(ctx, "realtime conversation session established")
	return conversation, nil
}

// Conversation is one live realtime session. Events arrive on Events() in
// server order; the channel closes when the connection is gone.
type Conversation struct {
	conn      *websocket.Conn
	logger    *observability.Logger
	events    chan ConversationEvent
	writeMu   sync.Mutex
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

func newConversation(conn *websocket.Conn, logger *observability.Logger) *Conversation {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conversation{
		conn:   conn,
		logger: logger,
		events: make(chan ConversationEvent, 256),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Conversation) Events() <-chan ConversationEvent {
	return c.events
}

// AppendAudio streams one chunk of caller audio into the session's input
// buffer. Server VAD commits turns, so no explicit commit follows.
func (c *Conversation) AppendAudio(audio []byte) error {
	return c.send(appendAudioEvent{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(audio),
	})
}

// CompleteFunctionCall acknowledges a tool invocation with its output, which
// lets the model produce its closing response.
func (c *Conversation) CompleteFunctionCall(callID, output string) error {
	return c.send(functionCallOutputEvent{
		Type: "conversation.item.create",
		Item: functionCallOutputItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	})
}

func (c *Conversation) send(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime event: %w", err)
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to write realtime event: %w", err)
	}
	return nil
}

// Close is idempotent. It sends a close frame best-effort and drops the
// connection; the read loop then drains and closes the event channel.
func (c *Conversation) Close() {
	c.closeOnce.Do(func() {
		c.cancel()

		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.conn.Close()
	})
}

func (c *Conversation) readLoop() {
	defer close(c.events)

	// Transcript fragments per output item, used when the final transcript
	// event arrives without the full text.
	fragments := make(map[string]*strings.Builder)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.WarnWithError(c.ctx, "realtime connection read failed", err)
			}
			c.emit(ConversationEvent{Type: EventClosed, Err: err})
			return
		}

		var event serverEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			c.logger.WarnWithError(c.ctx, "failed to parse realtime event", err)
			continue
		}

		switch event.Type {
		case "response.output_audio.delta":
			audio, err := base64.StdEncoding.DecodeString(event.Delta)
			if err != nil {
				c.logger.WarnWithError(c.ctx, "failed to decode audio delta", err)
				continue
			}
			if !c.emit(ConversationEvent{Type: EventAudioDelta, Audio: audio}) {
				return
			}

		case "conversation.item.input_audio_transcription.completed":
			if !c.emit(ConversationEvent{Type: EventTranscript, Speaker: SpeakerCaller, Transcript: event.Transcript}) {
				return
			}

		case "response.output_audio_transcript.delta":
			builder, ok := fragments[event.ItemID]
			if !ok {
				builder = &strings.Builder{}
				fragments[event.ItemID] = builder
			}
			builder.WriteString(event.Delta)

		case "response.output_audio_transcript.done":
			transcript := event.Transcript
			if transcript == "" {
				if builder, ok := fragments[event.ItemID]; ok {
					transcript = builder.String()
				}
			}
			delete(fragments, event.ItemID)
			if !c.emit(ConversationEvent{Type: EventTranscript, Speaker: SpeakerAssistant, Transcript: transcript}) {
				return
			}

		case "response.function_call_arguments.done":
			if !c.emit(ConversationEvent{
				Type:      EventFunctionCall,
				Name:      event.Name,
				CallID:    event.CallID,
				Arguments: event.Arguments,
			}) {
				return
			}

		case "response.done":
			if !c.emit(ConversationEvent{Type: EventResponseDone}) {
				return
			}

		case "error":
			err := fmt.Errorf("realtime error")
			if event.Error != nil {
				if event.Error.Code != "" {
					err = fmt.Errorf("realtime error %s: %s", event.Error.Code, event.Error.Message)
				} else {
					err = fmt.Errorf("realtime error: %s", event.Error.Message)
				}
			}
			if !c.emit(ConversationEvent{Type: EventError, Err: err}) {
				return
			}

		default:
			c.logger.Debug(c.ctx, fmt.Sprintf("ignoring realtime event: %s", event.Type))
		}
	}
}

func (c *Conversation) emit(event ConversationEvent) bool {
	select {
	case c.events <- event:
		return true
	case <-c.ctx.Done():
		return false
	}
}

type sessionUpdate struct {
	Type    string          `json:"type"`
	Session realtimeSession `json:"session"`
}

type realtimeSession struct {
	Type             string        `json:"type"`
	Model            string        `json:"model"`
	OutputModalities []string      `json:"output_modalities"`
	MaxOutputTokens  int           `json:"max_output_tokens"`
	Audio            sessionAudio  `json:"audio"`
	Instructions     string        `json:"instructions"`
	Tools            []sessionTool `json:"tools"`
	ToolChoice       string        `json:"tool_choice"`
}

type sessionAudio struct {
	Input  sessionAudioInput  `json:"input"`
	Output sessionAudioOutput `json:"output"`
}

type sessionAudioInput struct {
	Format        audioFormat        `json:"format"`
	TurnDetection turnDetection      `json:"turn_detection"`
	Transcription audioTranscription `json:"transcription"`
}

type sessionAudioOutput struct {
	Format audioFormat `json:"format"`
	Voice  string      `json:"voice"`
}

type audioFormat struct {
	Type string `json:"type"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type audioTranscription struct {
	Language string `json:"language"`
	Model    string `json:"model"`
}

type sessionTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  toolParameters `json:"parameters"`
}

type toolParameters struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

type appendAudioEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type functionCallOutputEvent struct {
	Type string                 `json:"type"`
	Item functionCallOutputItem `json:"item"`
}

type functionCallOutputItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

type serverEvent struct {
	Type       string       `json:"type"`
	Delta      string       `json:"delta"`
	Transcript string       `json:"transcript"`
	ItemID     string       `json:"item_id"`
	Name       string       `json:"name"`
	CallID     string       `json:"call_id"`
	Arguments  string       `json:"arguments"`
	Error      *serverError `json:"error"`
}

type serverError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
