package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"feedback-server/internal/observability"
	"feedback-server/internal/session"

	"github.com/openai/openai-go"
	openaiOption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// SummaryGenerator turns a finished call transcript into the structured
// summary stored with the session.
type SummaryGenerator struct {
	apiKey  string
	model   string
	baseURL string
	logger  *observability.Logger
}

func NewSummaryGenerator(apiKey, model string, logger *observability.Logger) (*SummaryGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("chat model is required")
	}
	return &SummaryGenerator{apiKey: apiKey, model: model, logger: logger}, nil
}

// Summarize issues a single chat completion over the transcript and parses
// the JSON result. Failures are returned as-is; the bridge decides what a
// failed summary means for the session and nothing is retried here.
func (g *SummaryGenerator) Summarize(ctx context.Context, entries []session.TranscriptEntry) (session.Summary, error) {
	g.logger.Info(ctx, "Generating summary for transcript")

	options := []openaiOption.RequestOption{
		openaiOption.WithAPIKey(g.apiKey),
	}
	if g.baseURL != "" {
		options = append(options, openaiOption.WithBaseURL(g.baseURL))
	}
	client := openai.NewClient(options...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarySystemPrompt),
			openai.UserMessage(buildSummaryPrompt(entries)),
		},
		Temperature: openai.Float(0.3),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return session.Summary{}, fmt.Errorf("failed to generate summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return session.Summary{}, fmt.Errorf("summary response contained no choices")
	}

	var summary session.Summary
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &summary); err != nil {
		return session.Summary{}, fmt.Errorf("failed to parse summary response: %w", err)
	}
	if err := summary.Validate(); err != nil {
		return session.Summary{}, err
	}
	return summary, nil
}
