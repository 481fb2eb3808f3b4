package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/fetcher"
	"thirdcoast.systems/contentdna/internal/gemini"
	"thirdcoast.systems/contentdna/internal/metrics"
	"thirdcoast.systems/contentdna/pkg/utils/filename"
)

const defaultUploadMime = "video/mp4"

// SourceInput is one reference video submitted for analysis. URL sources
// set URL; file sources carry the decoded bytes in Data.
type SourceInput struct {
	Type     db.SourceKind
	Label    string
	URL      string
	Data     []byte
	MimeType string
}

func validateSources(sources []SourceInput) error {
	if len(sources) == 0 {
		return fmt.Errorf("%w: at least one source is required", apperr.ErrInvalidInput)
	}
	for i, s := range sources {
		switch s.Type {
		case db.SourceKindURL:
			u, err := url.Parse(strings.TrimSpace(s.URL))
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("%w: source %d: an http(s) url is required", apperr.ErrInvalidInput, i)
			}
		case db.SourceKindFile:
			if len(s.Data) == 0 {
				return fmt.Errorf("%w: source %d: file data is required", apperr.ErrInvalidInput, i)
			}
		default:
			return fmt.Errorf("%w: source %d: unknown type %q", apperr.ErrInvalidInput, i, s.Type)
		}
	}
	return nil
}

// analysisRun tracks one CreateAnalysis call.
type analysisRun struct {
	o      *Orchestrator
	id     uuid.UUID
	status db.AnalysisStatus
}

func (r *analysisRun) advance(ctx context.Context, status db.AnalysisStatus) error {
	if r.status == status {
		return nil
	}
	if err := r.o.Store.UpdateAnalysisStatus(ctx, r.id, status, nil); err != nil {
		return fmt.Errorf("set analysis status %s: %w", status, err)
	}
	r.status = status
	metrics.AnalysisStatus.WithLabelValues(string(status)).Inc()
	return nil
}

// fail records the error on the analysis and returns cause.
func (r *analysisRun) fail(ctx context.Context, cause error) error {
	wctx, cancel := detached(ctx)
	defer cancel()

	msg := cause.Error()
	if err := r.o.Store.UpdateAnalysisStatus(wctx, r.id, db.AnalysisStatusError, &msg); err != nil {
		slog.Error("failed to record analysis error", "analysis_id", r.id, "cause", cause, "error", err)
	} else {
		metrics.AnalysisStatus.WithLabelValues(string(db.AnalysisStatusError)).Inc()
	}
	slog.Warn("Analysis failed", "analysis_id", r.id, "stage", r.status, "error", cause)
	r.status = db.AnalysisStatusError
	return cause
}

// CreateAnalysis persists the sources, downloads platform links, runs the
// analysis and stores its result. Every status change is written as it
// happens; on failure the analysis is left in error with the reason.
func (o *Orchestrator) CreateAnalysis(ctx context.Context, sources []SourceInput) (*AnalysisView, error) {
	if err := validateSources(sources); err != nil {
		return nil, err
	}

	a, err := o.Store.InsertAnalysis(ctx, db.AnalysisStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}
	metrics.AnalysisStatus.WithLabelValues(string(db.AnalysisStatusProcessing)).Inc()
	run := &analysisRun{o: o, id: a.ID, status: a.Status}
	slog.Info("Analysis started", "analysis_id", a.ID, "sources", len(sources))

	inputs := make([]gemini.Input, 0, len(sources))
	for i, src := range sources {
		in, err := o.ingestSource(ctx, run, i, src)
		if err != nil {
			return nil, run.fail(ctx, err)
		}
		inputs = append(inputs, in)
	}

	if err := run.advance(ctx, db.AnalysisStatusTranscribing); err != nil {
		return nil, run.fail(ctx, err)
	}

	actx := ctx
	if o.opts.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, o.opts.AnalysisTimeout)
		defer cancel()
	}
	result, err := o.Analyzer.Analyze(actx, inputs)
	if err != nil {
		return nil, run.fail(ctx, err)
	}
	if len(result.Transcript) == 0 && len(result.StylePassport.ToneTags) == 0 {
		return nil, run.fail(ctx, apperr.ErrAnalysisEmpty)
	}

	if err := run.advance(ctx, db.AnalysisStatusAnalyzing); err != nil {
		return nil, run.fail(ctx, err)
	}

	passport := result.StylePassport
	err = o.Store.InTx(ctx, func(q db.Querier) error {
		return q.CompleteAnalysis(ctx, db.CompleteAnalysisParams{
			ID:               a.ID,
			Transcript:       result.Transcript,
			StylePassport:    &passport,
			Patterns:         result.Patterns,
			GroundingSources: result.Sources,
		})
	})
	if err != nil {
		return nil, run.fail(ctx, fmt.Errorf("store analysis result: %w", err))
	}
	metrics.AnalysisStatus.WithLabelValues(string(db.AnalysisStatusReady)).Inc()
	slog.Info("Analysis ready", "analysis_id", a.ID,
		"transcript_segments", len(result.Transcript),
		"patterns", len(result.Patterns),
	)

	return o.GetAnalysis(ctx, a.ID)
}

// ingestSource stores one source row and returns the matching provider input.
func (o *Orchestrator) ingestSource(ctx context.Context, run *analysisRun, i int, src SourceInput) (gemini.Input, error) {
	switch src.Type {
	case db.SourceKindFile:
		mime := src.MimeType
		if mime == "" {
			mime = defaultUploadMime
		}
		ext := extForMime(mime)
		base := src.Label
		if strings.EqualFold(filepath.Ext(base), ext) {
			base = strings.TrimSuffix(base, filepath.Ext(base))
		}
		name := filename.WithExt(base, ext, fmt.Sprintf("video_%d", i+1))
		if err := o.storeFileSource(ctx, run.id, i, src.Label, name, src.Data, mime, nil, nil); err != nil {
			return gemini.Input{}, err
		}
		return gemini.Input{Data: src.Data, MIMEType: mime}, nil

	default:
		link := strings.TrimSpace(src.URL)
		if !o.Fetcher.Supports(link) {
			_, err := o.Store.InsertAnalysisSource(ctx, db.InsertAnalysisSourceParams{
				AnalysisID: run.id,
				Kind:       db.SourceKindURL,
				Label:      src.Label,
				URL:        &link,
			})
			if err != nil {
				return gemini.Input{}, fmt.Errorf("store source: %w", err)
			}
			return gemini.Input{URL: link}, nil
		}

		if err := run.advance(ctx, db.AnalysisStatusDownloading); err != nil {
			return gemini.Input{}, err
		}
		media, err := o.Fetcher.Fetch(ctx, link)
		if err != nil {
			platform, _ := fetcher.Detect(link)
			// The link is kept so the failed submission stays inspectable.
			_, serr := o.Store.InsertAnalysisSource(ctx, db.InsertAnalysisSourceParams{
				AnalysisID: run.id,
				Kind:       db.SourceKindURL,
				Label:      src.Label,
				URL:        &link,
			})
			if serr != nil {
				slog.Warn("failed to store source after download error", "analysis_id", run.id, "error", serr)
			}
			return gemini.Input{}, apperr.Wrap(apperr.ErrDownloadFailed,
				fmt.Errorf("error downloading from %s: %w", platform, err))
		}

		label := src.Label
		if label == "" {
			label = media.Title
		}
		title := media.Title
		duration := media.Duration
		if err := o.storeFileSource(ctx, run.id, i, label, media.Filename, media.Data, media.MimeType, &title, &duration); err != nil {
			return gemini.Input{}, err
		}
		slog.Info("Source downloaded", "analysis_id", run.id, "platform", media.Platform, "size", humanize.Bytes(uint64(len(media.Data))))
		return gemini.Input{Data: media.Data, MIMEType: media.MimeType}, nil
	}
}

// storeFileSource keys each blob by source position so equal titles never share a file.
func (o *Orchestrator) storeFileSource(ctx context.Context, analysisID uuid.UUID, i int, label, name string, data []byte, mime string, title *string, duration *float64) error {
	obj, err := o.Blobs.Put(ctx, sourceKey(analysisID, i, name), data, mime)
	if err != nil {
		return fmt.Errorf("store source file: %w", err)
	}
	if title != nil && *title == "" {
		title = nil
	}
	if duration != nil && *duration <= 0 {
		duration = nil
	}
	_, err = o.Store.InsertAnalysisSource(ctx, db.InsertAnalysisSourceParams{
		AnalysisID:      analysisID,
		Kind:            db.SourceKindFile,
		Label:           label,
		BlobKey:         &obj.Key,
		BlobURL:         &obj.URL,
		MimeType:        &mime,
		Title:           title,
		DurationSeconds: duration,
	})
	if err != nil {
		return fmt.Errorf("store source: %w", err)
	}
	return nil
}

func extForMime(mime string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])) {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	case "video/x-matroska":
		return ".mkv"
	default:
		return ".mp4"
	}
}

// GetAnalysis returns an analysis with its sources and scripts.
func (o *Orchestrator) GetAnalysis(ctx context.Context, id uuid.UUID) (*AnalysisView, error) {
	a, err := o.Store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.analysisView(ctx, a)
}

// ListAnalyses returns the newest analyses in any state.
func (o *Orchestrator) ListAnalyses(ctx context.Context, limit int) ([]*AnalysisView, error) {
	if limit <= 0 || limit > 100 {
		limit = o.opts.HistoryLimit
	}
	rows, err := o.Store.ListAnalyses(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return o.analysisViews(ctx, rows)
}

// History returns the newest ready analyses.
func (o *Orchestrator) History(ctx context.Context) ([]*AnalysisView, error) {
	rows, err := o.Store.ListAnalysesByStatus(ctx, db.AnalysisStatusReady, int32(o.opts.HistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return o.analysisViews(ctx, rows)
}

func (o *Orchestrator) analysisViews(ctx context.Context, rows []*db.Analysis) ([]*AnalysisView, error) {
	out := make([]*AnalysisView, 0, len(rows))
	for _, a := range rows {
		v, err := o.analysisView(ctx, a)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func sourceKey(analysisID uuid.UUID, i int, name string) string {
	return fmt.Sprintf("sources/%s/%d/%s", analysisID, i+1, name)
}
