package differ

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"grc-portal/models"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = "gpt-4o-mini"

const (
	summaryInputLimit = 3000
	diffInputLimit    = 4000
)

const summarySystemPrompt = "You are a technical writer assistant. Generate a brief, professional change summary " +
	"(1-2 sentences) describing what was modified in the document. Focus on the key changes without being verbose."

const diffSystemPrompt = `You are a document comparison assistant. Analyze the differences between two versions of a policy document and return a JSON object with three arrays:
- "added": New sections, paragraphs, or significant content that was added
- "removed": Sections, paragraphs, or significant content that was removed
- "modified": Existing content that was changed or reworded

Each item should be a brief description (10-20 words max) of what changed. Focus on meaningful changes, not minor punctuation or formatting. Return ONLY valid JSON.`

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// OpenAIConfig configures the chat-completions backed generator.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional, for compatible gateways
	Model   string
}

// OpenAI asks a chat-completions model to describe changes.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

func (o *OpenAI) Name() string {
	return "openai"
}

func (o *OpenAI) Summarize(ctx context.Context, oldContent, newContent string) (string, error) {
	prompt := fmt.Sprintf(`Compare these two versions of a policy document and provide a brief change summary.

ORIGINAL VERSION:
%s

NEW VERSION:
%s

Provide a concise change summary (1-2 sentences):`,
		truncate(oldContent, summaryInputLimit), truncate(newContent, summaryInputLimit))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   100,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("openai summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai summary: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) Diff(ctx context.Context, oldContent, newContent string) (models.ChangeDiff, error) {
	prompt := fmt.Sprintf(`Compare these two versions and list the specific changes:

ORIGINAL VERSION:
%s

NEW VERSION:
%s

Return JSON with added, removed, and modified arrays:`,
		truncate(oldContent, diffInputLimit), truncate(newContent, diffInputLimit))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: diffSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   500,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.ChangeDiff{}, fmt.Errorf("openai diff: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.ChangeDiff{}, errors.New("openai diff: no choices returned")
	}
	return parseDiff(resp.Choices[0].Message.Content)
}

// parseDiff extracts the JSON object from a model reply, tolerating code
// fences around it.
func parseDiff(reply string) (models.ChangeDiff, error) {
	raw := jsonObject.FindString(reply)
	if raw == "" {
		return models.ChangeDiff{}, fmt.Errorf("openai diff: no JSON object in reply %q", truncate(reply, 80))
	}
	var diff models.ChangeDiff
	if err := json.Unmarshal([]byte(raw), &diff); err != nil {
		return models.ChangeDiff{}, fmt.Errorf("openai diff: decode reply: %w", err)
	}
	return diff.Normalize(), nil
}
