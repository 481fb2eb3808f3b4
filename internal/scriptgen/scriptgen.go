// Package scriptgen turns an analysis (style passport and patterns) plus a
// topic into an ordered list of script segments.
package scriptgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"thirdcoast.systems/contentdna/internal/db"
)

// SegmentDraft is one generated script beat before it is persisted.
type SegmentDraft struct {
	Timeframe string `json:"timeframe"`
	Visual    string `json:"visual"`
	Audio     string `json:"audio"`
}

// Generator produces script segments. An empty result is valid.
type Generator interface {
	Generate(ctx context.Context, topic string, passport db.StylePassport, patterns []db.Pattern) ([]SegmentDraft, error)
}

// Prompt builds the shared script request: the topic, the style passport as
// JSON and the pattern names.
func Prompt(topic string, passport db.StylePassport, patterns []db.Pattern) (string, error) {
	passportJSON, err := json.Marshal(passport)
	if err != nil {
		return "", fmt.Errorf("marshal style passport: %w", err)
	}
	names := make([]string, 0, len(patterns))
	for _, p := range patterns {
		names = append(names, p.Name)
	}
	namesJSON, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("marshal pattern names: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a video script for: %q. ", topic)
	b.WriteString("Use the success DNA extracted from the reference videos. ")
	fmt.Fprintf(&b, "Style: %s. ", passportJSON)
	fmt.Fprintf(&b, "Patterns: %s. ", namesJSON)
	b.WriteString("Each segment has a timeframe, a visual plan and the narration audio. JSON only.")
	return b.String(), nil
}

// Clean drops segments that carry no content at all.
func Clean(drafts []SegmentDraft) []SegmentDraft {
	out := make([]SegmentDraft, 0, len(drafts))
	for _, d := range drafts {
		d.Timeframe = strings.TrimSpace(d.Timeframe)
		d.Visual = strings.TrimSpace(d.Visual)
		d.Audio = strings.TrimSpace(d.Audio)
		if d.Timeframe == "" && d.Visual == "" && d.Audio == "" {
			continue
		}
		out = append(out, d)
	}
	return out
}
