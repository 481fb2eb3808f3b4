package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/kie"
)

const promptSeparator = "\n\n---\n\n"

type PreviewRequest struct {
	SegmentIDs      []uuid.UUID
	Model           string
	AdditionalNotes string
	AspectRatio     string
	Mode            string
}

type PreviewResult struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SegmentPrompt is the text-to-video prompt for one segment.
func SegmentPrompt(seg *db.ScriptSegment) string {
	return fmt.Sprintf("Timeframe: %s\nVisual plan: %s\nNarration: %s", seg.Timeframe, seg.Visual, seg.Audio)
}

// GenerateVideoPreview submits one asynchronous video job covering the
// requested segments, binds each segment's video row to it and hands the job
// to the reconciler. It returns as soon as the job is accepted.
func (o *Orchestrator) GenerateVideoPreview(ctx context.Context, scriptID uuid.UUID, req PreviewRequest) (*PreviewResult, error) {
	if !kie.IsVideoModel(req.Model) {
		return nil, fmt.Errorf("%w: unsupported model %q", apperr.ErrInvalidOption, req.Model)
	}
	if len(req.SegmentIDs) == 0 {
		return nil, fmt.Errorf("%w: segment_ids is required", apperr.ErrInvalidInput)
	}
	if _, err := o.Store.GetScript(ctx, scriptID); err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(req.SegmentIDs))
	var segments []*db.ScriptSegment
	for _, id := range req.SegmentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		seg, err := o.Store.GetScriptSegment(ctx, scriptID, id)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", id, err)
		}
		segments = append(segments, seg)
	}

	prompts := make([]string, len(segments))
	for i, seg := range segments {
		prompts[i] = SegmentPrompt(seg)
	}
	prompt := strings.Join(prompts, promptSeparator)

	taskID, err := o.Tasks.CreateVideoTask(ctx, kie.VideoTaskRequest{
		Model:           req.Model,
		Prompt:          prompt,
		AdditionalNotes: req.AdditionalNotes,
		AspectRatio:     req.AspectRatio,
		Mode:            req.Mode,
		CallbackURL:     o.opts.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	var job *db.VideoJob
	err = o.Store.InTx(ctx, func(q db.Querier) error {
		j, err := q.InsertVideoJob(ctx, db.InsertVideoJobParams{TaskID: taskID, Model: req.Model, Prompt: prompt})
		if err != nil {
			return err
		}
		for _, seg := range segments {
			f, err := q.GetOrCreateMediaFile(ctx, seg.ID, db.MediaTypeVideo)
			if err != nil {
				return err
			}
			if err := q.AttachMediaFileToVideoJob(ctx, f.ID, j.ID); err != nil {
				return err
			}
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store video job %s: %w", taskID, err)
	}

	if !o.Reconciler.Start(job) {
		slog.Warn("Video job was not started by the reconciler", "task_id", taskID)
	}
	slog.Info("Video preview submitted", "task_id", taskID, "model", req.Model, "segments", len(segments))

	return &PreviewResult{
		TaskID:  taskID,
		Status:  "generating",
		Message: "Video generation task created",
	}, nil
}

const defaultFailMsg = "Unknown error"

// TaskStatusView is the live provider state of a job.
type TaskStatusView struct {
	State      kie.TaskState `json:"state"`
	ResultURLs []string      `json:"resultUrls,omitempty"`
	FailMsg    string        `json:"failMsg,omitempty"`
}

// VideoTaskStatus polls the provider for taskID.
func (o *Orchestrator) VideoTaskStatus(ctx context.Context, taskID string) (*TaskStatusView, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, fmt.Errorf("%w: task_id is required", apperr.ErrInvalidInput)
	}
	st, err := o.Tasks.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}

	v := &TaskStatusView{State: st.State}
	switch st.State {
	case kie.TaskStateSuccess:
		v.ResultURLs = nonNil(st.ResultURLs)
	case kie.TaskStateFail:
		v.FailMsg = st.FailMsg
		if v.FailMsg == "" {
			v.FailMsg = defaultFailMsg
		}
	}
	return v, nil
}
