package handler

import (
	"net/http"

	"feedback-server/internal/feedback/processor"
	"feedback-server/internal/observability"

	"github.com/gorilla/websocket"
)

type Handler struct {
	processor *processor.FeedbackProcessor
	logger    *observability.Logger
}

func New(processor *processor.FeedbackProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

// upgrader is shared across media-stream connections. Twilio does not send an
// Origin header, so the origin check stays open.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
