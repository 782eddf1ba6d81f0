package bootstrap

import (
	"context"
	"fmt"

	"feedback-server/internal/config"
	"feedback-server/internal/observability"
	"feedback-server/internal/session"
	"feedback-server/internal/store"

	openaiClient "feedback-server/internal/clients/openai"
	twilioClient "feedback-server/internal/clients/twilio"
	"feedback-server/internal/feedback/bridge"
	feedbackHandler "feedback-server/internal/feedback/handler"
	feedbackProcessor "feedback-server/internal/feedback/processor"
	"feedback-server/internal/guidelines"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store    store.Store
	Logger   *observability.Logger
	Registry *session.Registry

	// Handlers
	FeedbackHandler feedbackHandler.Handler
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize database store
	connectionString := cfg.Database.ConnectionString()
	var err error
	deps.Store, err = store.New(connectionString, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The registry is the authoritative in-memory session state during a
	// call; the store trails it for durability.
	deps.Registry = session.NewRegistry()

	// Initialize clients
	caller, err := twilioClient.NewCaller(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.FromNumber,
		cfg.Twilio.RingTimeoutSeconds,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create twilio caller: %w", err)
	}

	realtime, err := openaiClient.NewRealtime(cfg.OpenAI.APIKey, cfg.OpenAI.RealtimeModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create realtime client: %w", err)
	}

	summarizer, err := feedbackProcessor.NewSummaryGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary generator: %w", err)
	}

	// Load conversation guidelines once at startup
	guidelineText := guidelines.Load(ctx, cfg.Call.GuidelinesPath, logger)

	// Initialize the call bridge and the feedback processor
	orchestrator := bridge.New(deps.Registry, &deps.Store, summarizer, cfg.Call.MaxDuration, logger)
	proc := feedbackProcessor.New(
		deps.Registry,
		caller,
		realtime,
		orchestrator,
		&deps.Store,
		guidelineText,
		feedbackProcessor.Config{
			BaseURL:       cfg.Server.BaseURL,
			AnswerTimeout: cfg.Call.AnswerTimeout,
			Voice:         cfg.OpenAI.Voice,
		},
		logger,
	)
	deps.FeedbackHandler = feedbackHandler.New(proc, logger)

	return deps, nil
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	if db := d.Store.DB(); db != nil {
		if err := db.Close(); err != nil {
			d.Logger.Error(context.Background(), "failed to close database", err)
		}
	}
}
