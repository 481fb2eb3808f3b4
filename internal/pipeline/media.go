package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/gemini"
)

// GenerateMedia runs image, video and speech generation for one segment.
// Finished kinds are kept and skipped; failed kinds start over from a fresh
// row. A stage failure marks its row error and stops the run.
func (o *Orchestrator) GenerateMedia(ctx context.Context, scriptID, segmentID uuid.UUID) (*SegmentView, error) {
	seg, err := o.Store.GetScriptSegment(ctx, scriptID, segmentID)
	if err != nil {
		return nil, err
	}

	rows := make(map[db.MediaType]*db.MediaFile, len(db.MediaTypes))
	allDone := true
	for _, t := range db.MediaTypes {
		f, err := o.Store.GetOrCreateMediaFile(ctx, seg.ID, t)
		if err != nil {
			return nil, fmt.Errorf("get %s media: %w", t, err)
		}
		rows[t] = f
		allDone = allDone && f.Status == db.MediaStatusDone
	}
	if allDone {
		slog.Debug("Segment media already generated", "segment_id", seg.ID)
		return o.segmentView(ctx, seg)
	}

	run := mediaRun{o: o, seg: seg}
	for _, t := range db.MediaTypes {
		f := rows[t]
		if f.Status == db.MediaStatusDone {
			if t == db.MediaTypeImage {
				run.still = o.loadStill(ctx, f)
			}
			continue
		}
		if f.Status.Failed() {
			if f, err = o.Store.ResetMediaFile(ctx, f.ID); err != nil {
				return nil, fmt.Errorf("reset %s media: %w", t, err)
			}
		}
		if err := run.stage(ctx, f); err != nil {
			return nil, err
		}
	}

	return o.segmentView(ctx, seg)
}

type mediaRun struct {
	o     *Orchestrator
	seg   *db.ScriptSegment
	still *gemini.Image
}

func (r *mediaRun) stage(ctx context.Context, f *db.MediaFile) error {
	if err := r.o.Store.UpdateMediaFileStatus(ctx, f.ID, f.MediaType.GeneratingStatus(), nil); err != nil {
		return fmt.Errorf("mark %s generating: %w", f.MediaType, err)
	}

	start := time.Now()
	params, err := r.generate(ctx, f.MediaType)
	if err == nil {
		params.ID = f.ID
		_, err = r.o.Store.CompleteMediaFile(ctx, params)
	}
	if err != nil {
		wctx, cancel := detached(ctx)
		defer cancel()
		msg := err.Error()
		if uerr := r.o.Store.UpdateMediaFileStatus(wctx, f.ID, db.MediaStatusError, &msg); uerr != nil {
			slog.Error("failed to record media error", "media_id", f.ID, "cause", err, "error", uerr)
		}
		slog.Warn("Media stage failed", "segment_id", r.seg.ID, "type", f.MediaType, "error", err)
		return fmt.Errorf("generate %s: %w", f.MediaType, err)
	}

	slog.Info("Media stage done", "segment_id", r.seg.ID, "type", f.MediaType, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (r *mediaRun) generate(ctx context.Context, t db.MediaType) (db.CompleteMediaFileParams, error) {
	switch t {
	case db.MediaTypeImage:
		img, err := r.o.Media.GenerateImage(ctx, r.seg.Visual)
		if err != nil {
			return db.CompleteMediaFileParams{}, err
		}
		r.still = img
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return r.put(ctx, "image"+extForImage(mime), img.Data, mime)

	case db.MediaTypeVideo:
		prompt, err := r.o.Media.VideoPrompt(r.seg.Visual, r.seg.Audio)
		if err != nil {
			return db.CompleteMediaFileParams{}, err
		}
		uri, err := r.o.Media.GenerateVideo(ctx, prompt, r.still)
		if err != nil {
			return db.CompleteMediaFileParams{}, err
		}
		return db.CompleteMediaFileParams{ExternalURL: &uri, MimeType: strPtr("video/mp4")}, nil

	default:
		wav, err := r.o.Media.GenerateSpeech(ctx, r.seg.Audio)
		if err != nil {
			return db.CompleteMediaFileParams{}, err
		}
		return r.put(ctx, "audio.wav", wav, "audio/wav")
	}
}

func (r *mediaRun) put(ctx context.Context, name string, data []byte, mime string) (db.CompleteMediaFileParams, error) {
	obj, err := r.o.Blobs.Put(ctx, fmt.Sprintf("segments/%s/%s", r.seg.ID, name), data, mime)
	if err != nil {
		return db.CompleteMediaFileParams{}, err
	}
	return db.CompleteMediaFileParams{BlobKey: &obj.Key, BlobURL: &obj.URL, MimeType: &mime}, nil
}

// loadStill reads back a finished image so a rerun can animate it. A missing
// blob falls back to text-only video generation.
func (o *Orchestrator) loadStill(ctx context.Context, f *db.MediaFile) *gemini.Image {
	if f.BlobKey == nil {
		return nil
	}
	data, err := o.Blobs.Get(ctx, *f.BlobKey)
	if err != nil {
		slog.Warn("failed to load segment image", "media_id", f.ID, "key", *f.BlobKey, "error", err)
		return nil
	}
	return &gemini.Image{Data: data, MIMEType: deref(f.MimeType)}
}

func extForImage(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
