package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/db"
)

type AnalysisView struct {
	ID               uuid.UUID              `json:"id"`
	Status           db.AnalysisStatus      `json:"status"`
	Transcript       []db.TranscriptSegment `json:"transcript"`
	StylePassport    *db.StylePassport      `json:"style_passport"`
	Patterns         []db.Pattern           `json:"patterns"`
	GroundingSources []db.GroundingSource   `json:"grounding_sources"`
	ErrorMessage     *string                `json:"error_message,omitempty"`
	Sources          []SourceView           `json:"sources"`
	Scripts          []*ScriptView          `json:"scripts"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

type SourceView struct {
	ID              uuid.UUID     `json:"id"`
	SourceType      db.SourceKind `json:"source_type"`
	Label           string        `json:"label"`
	URL             *string       `json:"url"`
	File            *string       `json:"file"`
	FileMimeType    *string       `json:"file_mime_type"`
	Title           *string       `json:"title,omitempty"`
	DurationSeconds *float64      `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

type ScriptView struct {
	ID         uuid.UUID     `json:"id"`
	AnalysisID uuid.UUID     `json:"analysis_id"`
	Topic      string        `json:"topic"`
	Segments   []SegmentView `json:"segments"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type SegmentView struct {
	ID        uuid.UUID `json:"id"`
	Timeframe string    `json:"timeframe"`
	Visual    string    `json:"visual"`
	Audio     string    `json:"audio"`
	Order     int32     `json:"order"`
	Media     MediaView `json:"media"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaView is the combined media state of one segment.
type MediaView struct {
	Status    db.MediaStatus `json:"status"`
	ImageURL  string         `json:"imageUrl,omitempty"`
	VideoURL  string         `json:"videoUrl,omitempty"`
	AudioURL  string         `json:"audioUrl,omitempty"`
	KieTaskID string         `json:"kieTaskId,omitempty"`
	KieModel  string         `json:"kieModel,omitempty"`
}

func (o *Orchestrator) analysisView(ctx context.Context, a *db.Analysis) (*AnalysisView, error) {
	v := &AnalysisView{
		ID:               a.ID,
		Status:           a.Status,
		Transcript:       nonNil(a.Transcript),
		StylePassport:    a.StylePassport,
		Patterns:         nonNil(a.Patterns),
		GroundingSources: nonNil(a.GroundingSources),
		ErrorMessage:     a.ErrorMessage,
		Sources:          []SourceView{},
		Scripts:          []*ScriptView{},
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}

	sources, err := o.Store.ListAnalysisSources(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	for _, s := range sources {
		v.Sources = append(v.Sources, SourceView{
			ID:              s.ID,
			SourceType:      s.Kind,
			Label:           s.Label,
			URL:             s.URL,
			File:            s.BlobURL,
			FileMimeType:    s.MimeType,
			Title:           s.Title,
			DurationSeconds: s.DurationSeconds,
			CreatedAt:       s.CreatedAt,
		})
	}

	scripts, err := o.Store.ListScriptsByAnalysis(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	for _, s := range scripts {
		sv, err := o.scriptView(ctx, s)
		if err != nil {
			return nil, err
		}
		v.Scripts = append(v.Scripts, sv)
	}
	return v, nil
}

func (o *Orchestrator) scriptView(ctx context.Context, s *db.Script) (*ScriptView, error) {
	segments, err := o.Store.ListScriptSegments(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	files, err := o.Store.ListMediaFilesByScript(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	bySegment := make(map[uuid.UUID][]*db.MediaFile, len(segments))
	for _, f := range files {
		bySegment[f.SegmentID] = append(bySegment[f.SegmentID], f)
	}

	jobs := jobCache{store: o.Store, byID: map[uuid.UUID]*db.VideoJob{}}
	v := &ScriptView{
		ID:         s.ID,
		AnalysisID: s.AnalysisID,
		Topic:      s.Topic,
		Segments:   make([]SegmentView, 0, len(segments)),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	for _, seg := range segments {
		v.Segments = append(v.Segments, segmentView(seg, mediaView(ctx, bySegment[seg.ID], &jobs)))
	}
	return v, nil
}

func (o *Orchestrator) segmentView(ctx context.Context, seg *db.ScriptSegment) (*SegmentView, error) {
	files, err := o.Store.ListMediaFilesBySegment(ctx, seg.ID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	jobs := jobCache{store: o.Store, byID: map[uuid.UUID]*db.VideoJob{}}
	v := segmentView(seg, mediaView(ctx, files, &jobs))
	return &v, nil
}

func segmentView(seg *db.ScriptSegment, media MediaView) SegmentView {
	return SegmentView{
		ID:        seg.ID,
		Timeframe: seg.Timeframe,
		Visual:    seg.Visual,
		Audio:     seg.Audio,
		Order:     seg.Order,
		Media:     media,
		CreatedAt: seg.CreatedAt,
	}
}

// mediaView folds a segment's per-kind rows into one status. Kinds are
// visited in generation order; a failed row wins, otherwise the first row
// that is not done sets the status.
func mediaView(ctx context.Context, files []*db.MediaFile, jobs *jobCache) MediaView {
	v := MediaView{Status: db.MediaStatusIdle}
	if len(files) == 0 {
		return v
	}

	byType := make(map[db.MediaType]*db.MediaFile, len(files))
	for _, f := range files {
		byType[f.MediaType] = f
	}

	var failed, pending *db.MediaFile
	for _, t := range db.MediaTypes {
		f, ok := byType[t]
		if !ok {
			continue
		}
		switch {
		case f.Status.Failed():
			if failed == nil {
				failed = f
			}
		case f.Status != db.MediaStatusDone:
			if pending == nil {
				pending = f
			}
		}

		u := deref(f.BlobURL)
		if u == "" {
			u = deref(f.ExternalURL)
		}
		switch t {
		case db.MediaTypeImage:
			v.ImageURL = u
		case db.MediaTypeVideo:
			v.VideoURL = u
			if f.VideoJobID != nil {
				if job := jobs.get(ctx, *f.VideoJobID); job != nil {
					v.KieTaskID = job.TaskID
					v.KieModel = job.Model
				}
			}
		case db.MediaTypeAudio:
			v.AudioURL = u
		}
	}

	switch {
	case failed != nil:
		v.Status = failed.Status
	case pending != nil:
		v.Status = pending.Status
	default:
		v.Status = db.MediaStatusDone
	}
	return v
}

type jobCache struct {
	store db.Querier
	byID  map[uuid.UUID]*db.VideoJob
}

func (c *jobCache) get(ctx context.Context, id uuid.UUID) *db.VideoJob {
	if job, ok := c.byID[id]; ok {
		return job
	}
	job, err := c.store.GetVideoJob(ctx, id)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		slog.Warn("failed to load video job", "job_id", id, "error", err)
	}
	c.byID[id] = job
	return job
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
