package scriptgen

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/metrics"
	"thirdcoast.systems/contentdna/pkg/retry"
	"thirdcoast.systems/contentdna/pkg/utils/jsonrecover"
)

const openAISystemPrompt = `You are a short-form video scriptwriter.
Reply with a JSON object {"segments": [{"timeframe": "...", "visual": "...", "audio": "..."}]}.`

type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   *retry.Policy
}

// OpenAIGenerator talks to any OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	retry  retry.Policy
}

func NewOpenAIGenerator(opts OpenAIOptions) *OpenAIGenerator {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	policy := retry.Default()
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		retry:  policy,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, topic string, passport db.StylePassport, patterns []db.Pattern) ([]SegmentDraft, error) {
	prompt, err := Prompt(topic, passport, patterns)
	if err != nil {
		return nil, err
	}

	policy := g.retry
	policy.OnRetry = metrics.RetryHook("openai_script")
	reply, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		start := time.Now()
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Temperature: 0.7,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		metrics.ObserveProvider("openai", "script", start, err)
		if err != nil {
			return "", &apperr.ProviderError{Provider: "openai", Op: "generate script", Err: err}
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, err
	}

	return Clean(decodeSegments(reply)), nil
}

// decodeSegments accepts a bare array or an object wrapping it under
// "segments" (JSON object mode cannot return a top-level array).
func decodeSegments(reply string) []SegmentDraft {
	raw, stage := jsonrecover.Decode[json.RawMessage](reply, nil)
	if stage != jsonrecover.StageDirect {
		metrics.ReplyFallbacks.WithLabelValues(string(stage)).Inc()
		slog.Warn("Script reply was not clean JSON", "provider", "openai", "stage", stage)
	}
	if len(raw) == 0 {
		return nil
	}

	var list []SegmentDraft
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var wrapped struct {
		Segments []SegmentDraft `json:"segments"`
		Script   []SegmentDraft `json:"script"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		metrics.ReplyFallbacks.WithLabelValues(string(jsonrecover.StageFallback)).Inc()
		slog.Warn("Script reply has an unexpected shape", "provider", "openai", "error", err)
		return nil
	}
	if len(wrapped.Segments) > 0 {
		return wrapped.Segments
	}
	return wrapped.Script
}
