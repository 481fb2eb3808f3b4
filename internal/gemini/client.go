// Package gemini wraps the Gemini API for reference-video analysis, script
// writing and the synchronous image, video and speech generation stages.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"thirdcoast.systems/contentdna/pkg/retry"
)

// models is the subset of *genai.Models the client calls.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

// operations is the subset of *genai.Operations used to poll video jobs.
type operations interface {
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

type Options struct {
	APIKey        string
	AnalysisModel string
	ScriptModel   string
	ImageModel    string
	VideoModel    string
	TTSModel      string
	TTSVoice      string
	Language      string

	// VideoPollInterval and VideoPollAttempts bound the wait on a Veo
	// operation. Defaults are 10s and 60.
	VideoPollInterval time.Duration
	VideoPollAttempts int

	Retry *retry.Policy
}

type Client struct {
	models     models
	operations operations
	prompts    *prompts
	opts       Options
	retry      retry.Policy
}

// NewClient builds a Gemini API client. It is meant to be created once per
// process and shared.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(gc.Models, gc.Operations, opts)
}

func newClient(m models, ops operations, opts Options) (*Client, error) {
	p, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	if opts.Language == "" {
		opts.Language = "Russian"
	}
	if opts.TTSVoice == "" {
		opts.TTSVoice = "Kore"
	}
	if opts.VideoPollInterval <= 0 {
		opts.VideoPollInterval = 10 * time.Second
	}
	if opts.VideoPollAttempts <= 0 {
		opts.VideoPollAttempts = 60
	}
	policy := retry.Default()
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	return &Client{models: m, operations: ops, prompts: p, opts: opts, retry: policy}, nil
}

// replyText prefers the first candidate's text and only joins the text parts
// of every candidate when that is empty. Thoughts are skipped.
func replyText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	if t := resp.Text(); t != "" {
		return t
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
