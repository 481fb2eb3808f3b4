package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/metrics"
	"thirdcoast.systems/contentdna/pkg/retry"
	"thirdcoast.systems/contentdna/pkg/utils/jsonrecover"
)

// Input is one reference video: either a link the model resolves itself or
// inline bytes.
type Input struct {
	URL      string
	Data     []byte
	MIMEType string
}

// Analysis is the extracted content DNA of a group of videos.
type Analysis struct {
	Transcript    []db.TranscriptSegment
	StylePassport db.StylePassport
	Patterns      []db.Pattern
	Sources       []db.GroundingSource
}

type analysisReply struct {
	Transcript    []db.TranscriptSegment `json:"transcript"`
	StylePassport db.StylePassport       `json:"stylePassport"`
	Patterns      []db.Pattern           `json:"patterns"`
}

// Analyze runs the group analysis over inputs.
func (c *Client) Analyze(ctx context.Context, inputs []Input) (*Analysis, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one input is required", apperr.ErrInvalidInput)
	}

	system, err := render(c.prompts.analysisSystem, map[string]any{
		"Count":    len(inputs),
		"Language": c.opts.Language,
	})
	if err != nil {
		return nil, err
	}

	parts, hasURL := c.analysisParts(inputs)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.1),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    analysisSchema(c.prompts, c.opts.Language),
	}
	if hasURL {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	policy := c.retry
	policy.OnRetry = metrics.RetryHook("gemini_analyze")
	return retry.Do(ctx, policy, func(ctx context.Context) (*Analysis, error) {
		start := time.Now()
		slog.Debug("Gemini analysis started", "model", c.opts.AnalysisModel, "inputs", len(inputs), "search", hasURL)
		resp, err := c.models.GenerateContent(ctx, c.opts.AnalysisModel, contents, cfg)
		metrics.ObserveProvider("gemini", "analyze", start, err)
		if err != nil {
			return nil, &apperr.ProviderError{Provider: "gemini", Op: "analyze", Err: err}
		}
		slog.Debug("Gemini analysis finished", "latency", time.Since(start))

		reply, stage := jsonrecover.Decode[*analysisReply](replyText(resp), nil)
		if stage != jsonrecover.StageDirect {
			metrics.ReplyFallbacks.WithLabelValues(string(stage)).Inc()
			slog.Warn("Analysis reply was not clean JSON", "stage", stage)
		}
		if reply == nil || (len(reply.Transcript) == 0 && len(reply.StylePassport.ToneTags) == 0) {
			return nil, apperr.ErrAnalysisEmpty
		}

		return &Analysis{
			Transcript:    reply.Transcript,
			StylePassport: reply.StylePassport,
			Patterns:      reply.Patterns,
			Sources:       groundingSources(resp),
		}, nil
	})
}

func (c *Client) analysisParts(inputs []Input) ([]*genai.Part, bool) {
	parts := make([]*genai.Part, 0, len(inputs)+1)
	hasURL := false
	for _, in := range inputs {
		if in.URL != "" {
			hasURL = true
			parts = append(parts, genai.NewPartFromText(c.prompts.Analysis.LinkPrefix+in.URL))
			continue
		}
		if len(in.Data) == 0 {
			continue
		}
		mime := in.MIMEType
		if mime == "" {
			mime = "video/mp4"
		}
		parts = append(parts, genai.NewPartFromBytes(in.Data, mime))
	}
	parts = append(parts, genai.NewPartFromText(strings.TrimSpace(c.prompts.Analysis.Instruction)))
	return parts, hasURL
}

// groundingSources reads web citations from the first candidate. Entries
// without a URI are skipped.
func groundingSources(resp *genai.GenerateContentResponse) []db.GroundingSource {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil ||
		resp.Candidates[0].GroundingMetadata == nil {
		return []db.GroundingSource{}
	}
	chunks := resp.Candidates[0].GroundingMetadata.GroundingChunks
	sources := make([]db.GroundingSource, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, db.GroundingSource{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return sources
}
