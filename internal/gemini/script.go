package gemini

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/metrics"
	"thirdcoast.systems/contentdna/internal/scriptgen"
	"thirdcoast.systems/contentdna/pkg/retry"
	"thirdcoast.systems/contentdna/pkg/utils/jsonrecover"
)

var _ scriptgen.Generator = (*Client)(nil)

// Generate writes a script for topic in the analysed style. An unreadable
// reply yields an empty script rather than an error.
func (c *Client) Generate(ctx context.Context, topic string, passport db.StylePassport, patterns []db.Pattern) ([]scriptgen.SegmentDraft, error) {
	prompt, err := scriptgen.Prompt(topic, passport, patterns)
	if err != nil {
		return nil, err
	}
	system, err := render(c.prompts.scriptSystem, map[string]any{"Language": c.opts.Language})
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    scriptSchema(),
	}
	contents := genai.Text(prompt)

	policy := c.retry
	policy.OnRetry = metrics.RetryHook("gemini_script")
	text, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		start := time.Now()
		resp, err := c.models.GenerateContent(ctx, c.opts.ScriptModel, contents, cfg)
		metrics.ObserveProvider("gemini", "script", start, err)
		if err != nil {
			return "", &apperr.ProviderError{Provider: "gemini", Op: "generate script", Err: err}
		}
		return replyText(resp), nil
	})
	if err != nil {
		return nil, err
	}

	drafts, stage := jsonrecover.Decode(text, []scriptgen.SegmentDraft{})
	if stage != jsonrecover.StageDirect {
		metrics.ReplyFallbacks.WithLabelValues(string(stage)).Inc()
		slog.Warn("Script reply was not clean JSON", "provider", "gemini", "stage", stage)
	}
	return scriptgen.Clean(drafts), nil
}
