package handler

import (
	"errors"
	"net/http"
	"time"

	"feedback-server/internal/apierrors"
	"feedback-server/internal/feedback/processor"
	"feedback-server/internal/session"

	"github.com/gin-gonic/gin"
)

// HandleInitiateFeedback handles POST /get_feedback?booking_id=...
func (h *Handler) HandleInitiateFeedback(c *gin.Context) {
	ctx := c.Request.Context()

	bookingID := c.Query("booking_id")
	if bookingID == "" {
		apierrors.BadRequest(c, "MISSING_BOOKING_ID", "booking_id is required")
		return
	}

	initiated, err := h.processor.InitiateFeedback(ctx, bookingID)
	if err != nil {
		if errors.Is(err, processor.ErrBookingNotFound) {
			apierrors.NotFound(c, "Booking not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, initiated)
}

// FeedbackStatusResponse is the poll response for one feedback session.
// Transcript and summary stay null until the call produces them.
type FeedbackStatusResponse struct {
	TaskID          string                    `json:"task_id"`
	BookingID       string                    `json:"booking_id"`
	Status          string                    `json:"status"`
	PhoneNumber     string                    `json:"phone_number,omitempty"`
	DurationSeconds int                       `json:"duration_seconds,omitempty"`
	Summary         *session.Summary          `json:"summary,omitempty"`
	Transcript      []session.TranscriptEntry `json:"transcript,omitempty"`
	FailureReason   string                    `json:"failure_reason,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	CompletedAt     *time.Time                `json:"completed_at,omitempty"`
}

// HandleGetFeedbackStatus handles GET /get_feedback/:task_id.
func (h *Handler) HandleGetFeedbackStatus(c *gin.Context) {
	ctx := c.Request.Context()

	taskID := c.Param("task_id")
	sess, err := h.processor.GetFeedbackStatus(ctx, taskID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			apierrors.NotFound(c, "Task not found")
			return
		}
		apierrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, FeedbackStatusResponse{
		TaskID:          sess.TaskID,
		BookingID:       sess.BookingID,
		Status:          string(sess.Status),
		PhoneNumber:     sess.PhoneNumber,
		DurationSeconds: sess.DurationSeconds,
		Summary:         sess.Summary,
		Transcript:      sess.Transcript,
		FailureReason:   sess.FailureReason,
		CreatedAt:       sess.CreatedAt,
		CompletedAt:     sess.CompletedAt,
	})
}

// HandleHealthCheck handles GET /health.
func (h *Handler) HandleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "hostel-feedback-system",
	})
}
