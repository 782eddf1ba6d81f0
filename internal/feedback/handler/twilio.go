package handler

import (
	"errors"
	"net/http"

	"feedback-server/internal/apierrors"
	"feedback-server/internal/observability"
	"feedback-server/internal/session"

	"github.com/gin-gonic/gin"
	twilioclient "github.com/twilio/twilio-go/client"
)

// HandleVoiceWebhook handles POST /twilio/voice/:task_id. Twilio fetches this
// when the callee answers; the TwiML it returns connects the call to the
// media-stream endpoint.
func (h *Handler) HandleVoiceWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	taskID := c.Param("task_id")
	xml, err := h.processor.AnswerTwiML(ctx, taskID)
	if err != nil {
		h.logger.Error(ctx, "failed to render voice webhook TwiML", err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, xml)
}

// HandleStatusCallback handles POST /twilio/status/:task_id. Twilio posts the
// call lifecycle here: queued, ringing, in-progress, completed, busy, failed,
// no-answer.
func (h *Handler) HandleStatusCallback(c *gin.Context) {
	ctx := c.Request.Context()

	taskID := c.Param("task_id")
	callStatus := c.PostForm("CallStatus")
	callDuration := c.DefaultPostForm("CallDuration", "0")

	if err := h.processor.HandleCallStatus(ctx, taskID, callStatus, callDuration); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			apierrors.NotFound(c, "Task not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleMediaStream handles the WebSocket upgrade on /twilio/stream/:task_id
// and runs the media stream until the call ends.
func (h *Handler) HandleMediaStream(c *gin.Context) {
	ctx := c.Request.Context()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(ctx, "WebSocket upgrade failed", err)
		return
	}
	defer conn.Close()

	h.processor.RunMediaStream(ctx, c.Param("task_id"), conn)
}

// VerifyTwilioSignature rejects webhook requests whose X-Twilio-Signature does
// not match the auth token. The signature covers the public URL Twilio was
// given, so baseURL must be the same value handed to call placement.
func VerifyTwilioSignature(authToken, baseURL string, logger *observability.Logger) gin.HandlerFunc {
	validator := twilioclient.NewRequestValidator(authToken)
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		signature := c.GetHeader("X-Twilio-Signature")
		if signature == "" {
			logger.Warn(ctx, "Rejected webhook without Twilio signature")
			apierrors.Forbidden(c, "MISSING_SIGNATURE", "Missing Twilio signature")
			c.Abort()
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			apierrors.BadRequest(c, "MALFORMED_FORM", "Malformed form body")
			c.Abort()
			return
		}
		params := make(map[string]string, len(c.Request.PostForm))
		for key := range c.Request.PostForm {
			params[key] = c.Request.PostForm.Get(key)
		}

		url := baseURL + c.Request.URL.RequestURI()
		if !validator.Validate(url, params, signature) {
			logger.Warn(ctx, "Rejected webhook with invalid Twilio signature")
			apierrors.Forbidden(c, "INVALID_SIGNATURE", "Invalid Twilio signature")
			c.Abort()
			return
		}

		c.Next()
	}
}
