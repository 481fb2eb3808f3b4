// Package pipeline drives analyses, scripts and per-segment media through
// their persisted state machines.
package pipeline

import (
	"context"
	"time"

	"thirdcoast.systems/contentdna/internal/blob"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/fetcher"
	"thirdcoast.systems/contentdna/internal/gemini"
	"thirdcoast.systems/contentdna/internal/kie"
	"thirdcoast.systems/contentdna/internal/scriptgen"
)

// Fetcher downloads platform videos.
type Fetcher interface {
	Supports(rawURL string) bool
	Fetch(ctx context.Context, rawURL string) (*fetcher.Media, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, inputs []gemini.Input) (*gemini.Analysis, error)
}

// MediaGenerator runs the synchronous image, video and speech stages.
type MediaGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*gemini.Image, error)
	GenerateVideo(ctx context.Context, prompt string, still *gemini.Image) (string, error)
	GenerateSpeech(ctx context.Context, text string) ([]byte, error)
	VideoPrompt(visual, audio string) (string, error)
}

// TaskClient submits and polls asynchronous video jobs.
type TaskClient interface {
	CreateVideoTask(ctx context.Context, req kie.VideoTaskRequest) (string, error)
	GetTaskStatus(ctx context.Context, taskID string) (*kie.TaskStatus, error)
}

// Reconciler takes ownership of a submitted job until it resolves.
type Reconciler interface {
	Start(job *db.VideoJob) bool
}

// Deps are the process-wide clients the orchestrator calls into.
type Deps struct {
	Store      db.Store
	Fetcher    Fetcher
	Analyzer   Analyzer
	Scripts    scriptgen.Generator
	Media      MediaGenerator
	Tasks      TaskClient
	Blobs      blob.Store
	Reconciler Reconciler
}

type Options struct {
	// AnalysisTimeout bounds the analysis provider call. Zero means no limit.
	AnalysisTimeout time.Duration
	HistoryLimit    int
	// CallbackURL is forwarded to the task provider when set.
	CallbackURL string
}

type Orchestrator struct {
	Deps
	opts Options
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	return &Orchestrator{Deps: deps, opts: opts}
}

// detached returns a context for bookkeeping writes that must land even if
// the request context was cancelled.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
