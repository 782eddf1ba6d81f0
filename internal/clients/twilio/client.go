package twilio

import (
	"context"
	"fmt"

	"feedback-server/internal/observability"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Caller places outbound feedback calls through the Twilio REST API.
type Caller struct {
	client      *twilio.RestClient
	fromNumber  string
	ringTimeout int
	logger      *observability.Logger
}

func NewCaller(accountSID, authToken, fromNumber string, ringTimeoutSeconds int, logger *observability.Logger) (*Caller, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio credentials are required")
	}
	if fromNumber == "" {
		return nil, fmt.Errorf("twilio from number is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &Caller{
		client:      client,
		fromNumber:  fromNumber,
		ringTimeout: ringTimeoutSeconds,
		logger:      logger,
	}, nil
}

// PlaceCallParams holds the per-call routing for one outbound call.
type PlaceCallParams struct {
	To                string
	VoiceURL          string
	StatusCallbackURL string
}

// PlaceCall initiates an outbound call. When the callee answers, Twilio fetches
// TwiML from VoiceURL; lifecycle updates are posted to StatusCallbackURL.
func (c *Caller) PlaceCall(ctx context.Context, params PlaceCallParams) (string, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "call_to", Value: params.To},
	)

	callParams := &twilioapi.CreateCallParams{}
	callParams.SetTo(params.To)
	callParams.SetFrom(c.fromNumber)
	callParams.SetUrl(params.VoiceURL)
	callParams.SetStatusCallback(params.StatusCallbackURL)
	callParams.SetTimeout(c.ringTimeout)

	call, err := c.client.Api.CreateCall(callParams)
	if err != nil {
		c.logger.Error(ctx, "failed to place outbound call", err)
		return "", fmt.Errorf("failed to place outbound call: %w", err)
	}
	if call.Sid == nil {
		return "", fmt.Errorf("twilio returned call without SID")
	}

	c.logger.Info(ctx, fmt.Sprintf("outbound call placed with SID %s", *call.Sid))
	return *call.Sid, nil
}
