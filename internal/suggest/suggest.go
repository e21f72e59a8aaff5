package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/remindhq/remind/internal/config"
)

// Priority is the urgency level the model assigns to a reminder.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Suggestion is the result of one AI suggestion call, including the token
// counts and cost the ledger records.
type Suggestion struct {
	SuggestedText     string   `json:"suggested_text"`
	Priority          Priority `json:"priority"`
	DueTimeSuggestion string   `json:"due_time_suggestion,omitempty"`
	CostCents         int      `json:"cost_cents"`
	InputTokens       int      `json:"input_tokens"`
	OutputTokens      int      `json:"output_tokens"`
}

// Client wraps the OpenAI chat API for reminder suggestions.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient creates a suggestion client from AI config.
func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		api:   openai.NewClient(cfg.APIKey),
		model: cfg.Model,
	}
}

const promptTemplate = `You are a helpful reminder assistant. The user has entered a reminder: %q

Your task:
1. Rephrase it to be clear and concise
2. Determine priority (low, medium, high) based on urgency/importance
3. If a time is mentioned, extract due_time_suggestion, otherwise null

Respond ONLY with valid JSON (no markdown, no backticks):
{
  "suggested_text": "Clear rephrased reminder",
  "priority": "low|medium|high",
  "due_time_suggestion": "time or null"
}`

// Suggest asks the model to rephrase a reminder. The caller bounds the call
// with a context timeout.
func (c *Client) Suggest(ctx context.Context, reminderText string) (*Suggestion, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptTemplate, reminderText)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	var parsed struct {
		SuggestedText     string  `json:"suggested_text"`
		Priority          string  `json:"priority"`
		DueTimeSuggestion *string `json:"due_time_suggestion"`
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}

	out := &Suggestion{
		SuggestedText: parsed.SuggestedText,
		Priority:      parsePriority(parsed.Priority),
		InputTokens:   resp.Usage.PromptTokens,
		OutputTokens:  resp.Usage.CompletionTokens,
	}
	if out.SuggestedText == "" {
		out.SuggestedText = reminderText
	}
	if parsed.DueTimeSuggestion != nil && *parsed.DueTimeSuggestion != "null" {
		out.DueTimeSuggestion = *parsed.DueTimeSuggestion
	}
	out.CostCents = CalculateCost(out.InputTokens, out.OutputTokens)
	return out, nil
}

func parsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s)
	}
	return PriorityMedium
}

// CalculateCost converts token counts to whole cents using gpt-5-nano
// pricing ($0.0000375 per 1K input tokens, $0.00015 per 1K output tokens).
// Every billable call costs at least one cent.
func CalculateCost(inputTokens, outputTokens int) int {
	inputCost := float64(inputTokens) / 1000 * 0.0000375
	outputCost := float64(outputTokens) / 1000 * 0.00015
	cents := int((inputCost + outputCost) * 100)
	if cents < 1 {
		return 1
	}
	return cents
}
