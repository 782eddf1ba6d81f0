package api

import (
	feedbackHandler "feedback-server/internal/feedback/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router          *gin.RouterGroup
	feedbackHandler feedbackHandler.Handler
	webhookAuth     gin.HandlerFunc
}

// New wires the route table. webhookAuth guards the Twilio webhook routes and
// may be nil when signature validation is disabled.
func New(router *gin.RouterGroup, feedbackHandler feedbackHandler.Handler, webhookAuth gin.HandlerFunc) API {
	return API{
		router:          router,
		feedbackHandler: feedbackHandler,
		webhookAuth:     webhookAuth,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()

	a.router.POST("/get_feedback", a.feedbackHandler.HandleInitiateFeedback)
	a.router.GET("/get_feedback/:task_id", a.feedbackHandler.HandleGetFeedbackStatus)

	twilioGroup := a.router.Group("/twilio")
	webhookGroup := twilioGroup.Group("/")
	if a.webhookAuth != nil {
		webhookGroup.Use(a.webhookAuth)
	}
	webhookGroup.POST("/voice/:task_id", a.feedbackHandler.HandleVoiceWebhook)
	webhookGroup.POST("/status/:task_id", a.feedbackHandler.HandleStatusCallback)

	// Media streams are plain WebSocket upgrades; Twilio does not sign them,
	// so the stream route stays outside the webhook auth group.
	twilioGroup.GET("/stream/:task_id", a.feedbackHandler.HandleMediaStream)
}

func (a *API) Health() {
	a.router.GET("/health", a.feedbackHandler.HandleHealthCheck)
}
