package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/db"
)

const maxTopicLen = 500

// CreateScript generates a script for topic in the style of an analysis.
// Nothing is stored when generation fails.
func (o *Orchestrator) CreateScript(ctx context.Context, analysisID uuid.UUID, topic string) (*ScriptView, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", apperr.ErrInvalidInput)
	}
	if utf8.RuneCountInString(topic) > maxTopicLen {
		return nil, fmt.Errorf("%w: topic is longer than %d characters", apperr.ErrInvalidInput, maxTopicLen)
	}

	a, err := o.Store.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	var passport db.StylePassport
	if a.StylePassport != nil {
		passport = *a.StylePassport
	}

	drafts, err := o.Scripts.Generate(ctx, topic, passport, a.Patterns)
	if err != nil {
		slog.Warn("Script generation failed", "analysis_id", analysisID, "error", err)
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, &apperr.ProviderError{Provider: "script", Op: "generate", Message: "no segments in reply"}
	}

	var script *db.Script
	err = o.Store.InTx(ctx, func(q db.Querier) error {
		s, err := q.InsertScript(ctx, analysisID, topic)
		if err != nil {
			return err
		}
		for i, d := range drafts {
			_, err := q.InsertScriptSegment(ctx, db.InsertScriptSegmentParams{
				ScriptID:  s.ID,
				Timeframe: d.Timeframe,
				Visual:    d.Visual,
				Audio:     d.Audio,
				Order:     int32(i),
			})
			if err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
		}
		script = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store script: %w", err)
	}
	slog.Info("Script created", "script_id", script.ID, "analysis_id", analysisID, "segments", len(drafts))

	return o.scriptView(ctx, script)
}

func (o *Orchestrator) GetScript(ctx context.Context, id uuid.UUID) (*ScriptView, error) {
	s, err := o.Store.GetScript(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.scriptView(ctx, s)
}
