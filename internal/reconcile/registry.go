// Package reconcile polls asynchronous video jobs until they reach a terminal
// state and records the outcome on the job and every media file bound to it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/contentdna/internal/blob"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/kie"
	"thirdcoast.systems/contentdna/internal/metrics"
)

// Poller reads the provider-side state of a job.
type Poller interface {
	GetTaskStatus(ctx context.Context, taskID string) (*kie.TaskStatus, error)
}

// Downloader fetches a finished result from the provider's CDN.
type Downloader interface {
	Download(ctx context.Context, fileURL string) ([]byte, error)
}

type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// WriteTimeout bounds the terminal store write, which runs even while
	// the poll context is being cancelled.
	WriteTimeout time.Duration

	// With both set, successful videos are copied into Blobs and the bound
	// media files point at the local copy. Provider URLs expire.
	Downloader     Downloader
	Blobs          blob.Store
	ArchiveTimeout time.Duration
}

// TaskInfo is a snapshot of one running loop.
type TaskInfo struct {
	TaskID    string    `json:"taskId"`
	JobID     uuid.UUID `json:"jobId"`
	Model     string    `json:"model"`
	Attempts  int       `json:"attempts"`
	StartedAt time.Time `json:"startedAt"`
}

type loop struct {
	info   TaskInfo
	cancel context.CancelFunc
}

// Registry supervises one polling goroutine per job handle.
type Registry struct {
	store  db.Store
	poller Poller
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	loops  map[string]*loop
	closed bool
	wg     sync.WaitGroup
}

func New(store db.Store, poller Poller, opts Options) *Registry {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 60
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		store:  store,
		poller: poller,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		loops:  make(map[string]*loop),
	}
}

// Start launches the polling loop for job. It reports false when a loop for
// the same task id is already running or the registry is shut down.
func (r *Registry) Start(job *db.VideoJob) bool {
	if job == nil || job.TaskID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if _, ok := r.loops[job.TaskID]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(r.ctx)
	l := &loop{
		info: TaskInfo{
			TaskID:    job.TaskID,
			JobID:     job.ID,
			Model:     job.Model,
			Attempts:  int(job.Attempts),
			StartedAt: time.Now(),
		},
		cancel: cancel,
	}
	r.loops[job.TaskID] = l
	r.wg.Add(1)
	metrics.ReconcileActive.Inc()

	go func() {
		defer r.wg.Done()
		defer metrics.ReconcileActive.Dec()
		defer r.remove(job.TaskID)
		defer cancel()
		r.run(ctx, *job)
	}()

	slog.Info("Video job reconciliation started", "task_id", job.TaskID, "job_id", job.ID, "model", job.Model)
	return true
}

// Active lists running loops ordered by start time.
func (r *Registry) Active() []TaskInfo {
	r.mu.Lock()
	out := make([]TaskInfo, 0, len(r.loops))
	for _, l := range r.loops {
		out = append(out, l.info)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Cancel stops the loop for taskID without a terminal write. The job stays
// waiting and is picked up again by Resume.
func (r *Registry) Cancel(taskID string) bool {
	r.mu.Lock()
	l, ok := r.loops[taskID]
	r.mu.Unlock()
	if ok {
		l.cancel()
	}
	return ok
}

// Shutdown cancels every loop and waits for them to exit or ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	return r.Wait(ctx)
}

// Wait blocks until every running loop has returned.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume restarts loops for jobs left waiting by a previous process.
func (r *Registry) Resume(ctx context.Context) (int, error) {
	jobs, err := r.store.ListWaitingVideoJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list waiting video jobs: %w", err)
	}
	n := 0
	for _, job := range jobs {
		if r.Start(job) {
			n++
		}
	}
	return n, nil
}

func (r *Registry) remove(taskID string) {
	r.mu.Lock()
	delete(r.loops, taskID)
	r.mu.Unlock()
}

func (r *Registry) setAttempts(taskID string, n int) {
	r.mu.Lock()
	if l, ok := r.loops[taskID]; ok {
		l.info.Attempts = n
	}
	r.mu.Unlock()
}

func (r *Registry) run(ctx context.Context, job db.VideoJob) {
	attempts := int(job.Attempts)
	for {
		if attempts >= r.opts.MaxAttempts {
			msg := fmt.Sprintf("no result after %d polls", attempts)
			r.finish(ctx, job, outcome{state: db.VideoJobStateTimedOut, fileStatus: db.MediaStatusTimedOut, message: msg})
			return
		}

		timer := time.NewTimer(r.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("Video job reconciliation cancelled", "task_id", job.TaskID, "attempts", attempts)
			return
		case <-timer.C:
		}

		attempts++
		r.setAttempts(job.TaskID, attempts)
		if err := r.store.UpdateVideoJobAttempts(ctx, job.ID, int32(attempts)); err != nil && ctx.Err() == nil {
			slog.Warn("failed to persist poll attempts", "task_id", job.TaskID, "error", err)
		}

		st, err := r.poller.GetTaskStatus(ctx, job.TaskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Video job poll failed", "task_id", job.TaskID, "attempt", attempts, "error", err)
			continue
		}

		switch st.Settled() {
		case kie.TaskStateSuccess:
			if u := st.FirstResultURL(); u != "" {
				r.finish(ctx, job, outcome{state: db.VideoJobStateSuccess, fileStatus: db.MediaStatusDone, resultURL: u})
			} else {
				r.finish(ctx, job, outcome{state: db.VideoJobStateFail, fileStatus: db.MediaStatusError, message: "provider reported success without a result url"})
			}
			return
		case kie.TaskStateFail:
			msg := st.FailMsg
			if msg == "" {
				msg = "provider reported failure"
			}
			r.finish(ctx, job, outcome{state: db.VideoJobStateFail, fileStatus: db.MediaStatusError, message: msg})
			return
		default:
			slog.Debug("Video job still waiting", "task_id", job.TaskID, "attempt", attempts)
		}
	}
}

type outcome struct {
	state      db.VideoJobState
	fileStatus db.MediaStatus
	resultURL  string
	message    string
}

// finish writes the job row and its media files in one transaction.
func (r *Registry) finish(ctx context.Context, job db.VideoJob, o outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.WriteTimeout)
	defer cancel()

	var resultURL, message *string
	if o.resultURL != "" {
		resultURL = &o.resultURL
	}
	if o.message != "" {
		message = &o.message
	}

	var files int64
	err := r.store.InTx(ctx, func(q db.Querier) error {
		ok, err := q.FinishVideoJob(ctx, db.FinishVideoJobParams{
			ID:          job.ID,
			State:       o.state,
			ResultURL:   resultURL,
			FailMessage: message,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyFinished
		}
		files, err = q.ResolveMediaFilesForJob(ctx, db.ResolveMediaFilesForJobParams{
			VideoJobID:   job.ID,
			Status:       o.fileStatus,
			ExternalURL:  resultURL,
			ErrorMessage: message,
		})
		return err
	})
	switch {
	case errors.Is(err, errAlreadyFinished):
		slog.Info("Video job already finished", "task_id", job.TaskID)
		return
	case err != nil:
		slog.Error("failed to record video job outcome", "task_id", job.TaskID, "state", o.state, "error", err)
		return
	}

	metrics.ReconcileOutcomes.WithLabelValues(string(o.state)).Inc()
	slog.Info("Video job finished",
		"task_id", job.TaskID,
		"state", o.state,
		"media_files", files,
		"result_url", o.resultURL,
		"message", o.message,
	)

	if o.state == db.VideoJobStateSuccess {
		r.archive(ctx, job, o.resultURL)
	}
}

// archive stores the result video under video_jobs/<job id>/video.mp4 and
// moves the job's done media files from the provider URL to the blob. The
// job row keeps result_url. Failures leave the provider URL in place.
func (r *Registry) archive(ctx context.Context, job db.VideoJob, resultURL string) {
	if r.opts.Downloader == nil || r.opts.Blobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.ArchiveTimeout)
	defer cancel()

	data, err := r.opts.Downloader.Download(ctx, resultURL)
	if err != nil {
		slog.Warn("failed to download video result", "task_id", job.TaskID, "error", err)
		return
	}
	obj, err := r.opts.Blobs.Put(ctx, "video_jobs/"+job.ID.String()+"/video.mp4", data, "video/mp4")
	if err != nil {
		slog.Warn("failed to store video result", "task_id", job.TaskID, "error", err)
		return
	}

	files, err := r.store.ListMediaFilesByVideoJob(ctx, job.ID)
	if err != nil {
		slog.Warn("failed to list media files for archived video", "task_id", job.TaskID, "error", err)
		return
	}
	mime := obj.ContentType
	for _, f := range files {
		if f.Status != db.MediaStatusDone {
			continue
		}
		_, err := r.store.CompleteMediaFile(ctx, db.CompleteMediaFileParams{
			ID:          f.ID,
			BlobKey:     &obj.Key,
			BlobURL:     &obj.URL,
			MimeType:    &mime,
			ExternalURL: nil,
		})
		if err != nil {
			slog.Warn("failed to point media file at archived video", "media_file_id", f.ID, "error", err)
		}
	}
	slog.Info("Video result archived", "task_id", job.TaskID, "key", obj.Key, "bytes", len(data))
}

var errAlreadyFinished = errors.New("video job already finished")
