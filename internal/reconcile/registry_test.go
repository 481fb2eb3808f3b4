package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/contentdna/internal/blob"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/db/dbtest"
	"thirdcoast.systems/contentdna/internal/kie"
)

type scriptedPoller struct {
	mu    sync.Mutex
	steps []pollStep
	calls int
}

type pollStep struct {
	status *kie.TaskStatus
	err    error
}

// GetTaskStatus replays steps and then repeats the last one.
func (p *scriptedPoller) GetTaskStatus(_ context.Context, taskID string) (*kie.TaskStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := min(p.calls, len(p.steps)-1)
	p.calls++
	step := p.steps[i]
	if step.err != nil {
		return nil, step.err
	}
	st := *step.status
	st.TaskID = taskID
	return &st, nil
}

func (p *scriptedPoller) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func waiting() pollStep { return pollStep{status: &kie.TaskStatus{State: kie.TaskStateWaiting}} }

type fixture struct {
	store   *dbtest.MemStore
	job     *db.VideoJob
	segment uuid.UUID
}

func newFixture(t *testing.T, taskID string) fixture {
	t.Helper()
	ctx := context.Background()
	store := dbtest.New()

	a, err := store.InsertAnalysis(ctx, db.AnalysisStatusReady)
	require.NoError(t, err)
	sc, err := store.InsertScript(ctx, a.ID, "topic")
	require.NoError(t, err)
	seg, err := store.InsertScriptSegment(ctx, db.InsertScriptSegmentParams{ScriptID: sc.ID, Visual: "v", Audio: "a"})
	require.NoError(t, err)
	mf, err := store.GetOrCreateMediaFile(ctx, seg.ID, db.MediaTypeVideo)
	require.NoError(t, err)
	job, err := store.InsertVideoJob(ctx, db.InsertVideoJobParams{TaskID: taskID, Model: kie.ModelSora2TextToVideo, Prompt: "p"})
	require.NoError(t, err)
	require.NoError(t, store.AttachMediaFileToVideoJob(ctx, mf.ID, job.ID))

	return fixture{store: store, job: job, segment: seg.ID}
}

func fastOptions() Options {
	return Options{Interval: time.Millisecond, MaxAttempts: 10}
}

func waitIdle(t *testing.T, r *Registry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

func TestRegistry_Success(t *testing.T) {
	f := newFixture(t, "task-ok")
	p := &scriptedPoller{steps: []pollStep{
		waiting(),
		{status: &kie.TaskStatus{State: kie.TaskStateSuccess, ResultURLs: []string{"https://cdn/v.mp4", "https://cdn/w.mp4"}}},
	}}
	r := New(f.store, p, fastOptions())

	require.True(t, r.Start(f.job))
	waitIdle(t, r)

	job := f.store.Job("task-ok")
	require.Equal(t, db.VideoJobStateSuccess, job.State)
	require.Equal(t, "https://cdn/v.mp4", *job.ResultURL)
	require.NotNil(t, job.FinishedAt)
	require.EqualValues(t, 2, job.Attempts)

	mf := f.store.MediaFor(f.segment, db.MediaTypeVideo)
	require.Equal(t, db.MediaStatusDone, mf.Status)
	require.Equal(t, "https://cdn/v.mp4", *mf.ExternalURL)
	require.Empty(t, r.Active())
}

func TestRegistry_ProviderProgressStatesKeepWaiting(t *testing.T) {
	f := newFixture(t, "task-queue")
	p := &scriptedPoller{steps: []pollStep{
		{status: &kie.TaskStatus{State: "queuing"}},
		{status: &kie.TaskStatus{State: "generating"}},
		{status: &kie.TaskStatus{State: kie.TaskStateSuccess, ResultURLs: []string{"https://cdn/q.mp4"}}},
	}}
	r := New(f.store, p, fastOptions())

	require.True(t, r.Start(f.job))
	waitIdle(t, r)

	require.Equal(t, 3, p.Calls())
	job := f.store.Job("task-queue")
	require.Equal(t, db.VideoJobStateSuccess, job.State)
	require.EqualValues(t, 3, job.Attempts)
}

func TestRegistry_ProviderFailure(t *testing.T) {
	f := newFixture(t, "task-fail")
	p := &scriptedPoller{steps: []pollStep{{status: &kie.TaskStatus{State: kie.TaskStateFail, FailMsg: "content policy"}}}}
	r := New(f.store, p, fastOptions())

	require.True(t, r.Start(f.job))
	waitIdle(t, r)

	job := f.store.Job("task-fail")
	require.Equal(t, db.VideoJobStateFail, job.State)
	require.Equal(t, "content policy", *job.FailMessage)

	mf := f.store.MediaFor(f.segment, db.MediaTypeVideo)
	require.Equal(t, db.MediaStatusError, mf.Status)
	require.Equal(t, "content policy", *mf.ErrorMessage)
	require.Nil(t, mf.ExternalURL)
}

func TestRegistry_SuccessWithoutURLIsFailure(t *testing.T) {
	f := newFixture(t, "task-empty")
	p := &scriptedPoller{steps: []pollStep{{status: &kie.TaskStatus{State: kie.TaskStateSuccess}}}}
	r := New(f.store, p, fastOptions())

	require.True(t, r.Start(f.job))
	waitIdle(t, r)

	require.Equal(t, db.VideoJobStateFail, f.store.Job("task-empty").State)
	require.Equal(t, db.MediaStatusError, f.store.MediaFor(f.segment, db.MediaTypeVideo).Status)
}

func TestRegistry_AttemptCeiling(t *testing.T) {
	f := newFixture(t, "task-slow")
	p := &scriptedPoller{steps: []pollStep{waiting()}}
	r := New(f.store, p, Options{Interval: time.Millisecond, MaxAttempts: 3})

	require.True(t, r.Start(f.job))
	waitIdle(t, r)

	require.Equal(t, 3, p.Calls())
	job := f.store.Job("task-slow")
	require.Equal(t, db.VideoJobStateTimedOut, job.State)
	require.EqualValues(t, 3, job.Attempts)
	require.Equal(t, db.MediaStatusTimedOut, f.store.MediaFor(f.segment, db.MediaTypeVideo).Status)
}

func TestRegistry_PollErrorsConsumeAttempts(t *testing.T) {
	f := newFixture(t, "task-flaky")
	p := &scriptedPoller{steps: []pollStep{{err: errors.New("connection reset")}}}
	r := New(f.store, p, Options{Interval: time.Millisecond, MaxAttempts: 2})

	require.True(t, r.Start(f.job))
	waitIdle(t, r)

	require.Equal(t, 2, p.Calls())
	require.Equal(t, db.VideoJobStateTimedOut, f.store.Job("task-flaky").State)
}

func TestRegistry_DuplicateStartIsNoop(t *testing.T) {
	f := newFixture(t, "task-dup")
	p := &scriptedPoller{steps: []pollStep{waiting()}}
	r := New(f.store, p, Options{Interval: time.Hour, MaxAttempts: 5})
	defer func() { _ = r.Shutdown(context.Background()) }()

	require.True(t, r.Start(f.job))
	require.False(t, r.Start(f.job))

	active := r.Active()
	require.Len(t, active, 1)
	require.Equal(t, "task-dup", active[0].TaskID)
	require.Equal(t, f.job.ID, active[0].JobID)
}

func TestRegistry_CancelLeavesJobWaitingAndResumeRestarts(t *testing.T) {
	f := newFixture(t, "task-resume")
	p := &scriptedPoller{steps: []pollStep{waiting()}}
	r := New(f.store, p, Options{Interval: time.Hour, MaxAttempts: 5})

	require.True(t, r.Start(f.job))
	require.True(t, r.Cancel("task-resume"))
	waitIdle(t, r)
	require.False(t, r.Cancel("task-resume"))

	require.Equal(t, db.VideoJobStateWaiting, f.store.Job("task-resume").State)
	require.Equal(t, db.MediaStatusGeneratingVideo, f.store.MediaFor(f.segment, db.MediaTypeVideo).Status)

	done := &scriptedPoller{steps: []pollStep{{status: &kie.TaskStatus{State: kie.TaskStateSuccess, ResultURLs: []string{"https://cdn/r.mp4"}}}}}
	r2 := New(f.store, done, fastOptions())
	n, err := r2.Resume(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	waitIdle(t, r2)

	require.Equal(t, db.VideoJobStateSuccess, f.store.Job("task-resume").State)
	require.Equal(t, db.MediaStatusDone, f.store.MediaFor(f.segment, db.MediaTypeVideo).Status)
}

func TestRegistry_ShutdownStopsEverything(t *testing.T) {
	f := newFixture(t, "task-shutdown")
	p := &scriptedPoller{steps: []pollStep{waiting()}}
	r := New(f.store, p, Options{Interval: time.Hour, MaxAttempts: 5})

	require.True(t, r.Start(f.job))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	require.Empty(t, r.Active())
	require.False(t, r.Start(f.job))
	require.Equal(t, db.VideoJobStateWaiting, f.store.Job("task-shutdown").State)
}

func TestRegistry_TerminalWriteIsAtomic(t *testing.T) {
	f := newFixture(t, "task-atomic")
	f.store.Fail = func(op string) error {
		if op == "ResolveMediaFilesForJob" {
			return errors.New("disk full")
		}
		return nil
	}
	p := &scriptedPoller{steps: []pollStep{{status: &kie.TaskStatus{State: kie.TaskStateSuccess, ResultURLs: []string{"https://cdn/a.mp4"}}}}}
	r := New(f.store, p, fastOptions())

	require.True(t, r.Start(f.job))
	waitIdle(t, r)

	require.Equal(t, db.VideoJobStateWaiting, f.store.Job("task-atomic").State)
	require.Equal(t, db.MediaStatusGeneratingVideo, f.store.MediaFor(f.segment, db.MediaTypeVideo).Status)
}

type fakeDownloader struct {
	data []byte
	err  error
}

func (d fakeDownloader) Download(context.Context, string) ([]byte, error) { return d.data, d.err }

type mapBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (b *mapBlobs) Put(_ context.Context, key string, data []byte, contentType string) (blob.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = map[string][]byte{}
	}
	b.data[key] = data
	return blob.Object{Key: key, URL: "/media/" + key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (b *mapBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data[key], nil
}

func TestRegistry_ArchivesResult(t *testing.T) {
	f := newFixture(t, "task-archive")
	p := &scriptedPoller{steps: []pollStep{{status: &kie.TaskStatus{State: kie.TaskStateSuccess, ResultURLs: []string{"https://cdn/v.mp4"}}}}}
	blobs := &mapBlobs{}
	opts := fastOptions()
	opts.Downloader = fakeDownloader{data: []byte("mp4")}
	opts.Blobs = blobs
	r := New(f.store, p, opts)

	require.True(t, r.Start(f.job))
	waitIdle(t, r)

	key := "video_jobs/" + f.job.ID.String() + "/video.mp4"
	require.Equal(t, []byte("mp4"), blobs.data[key])

	mf := f.store.MediaFor(f.segment, db.MediaTypeVideo)
	require.Equal(t, db.MediaStatusDone, mf.Status)
	require.Equal(t, key, *mf.BlobKey)
	require.Equal(t, "/media/"+key, *mf.BlobURL)
	require.Nil(t, mf.ExternalURL, "archived files reference only the blob")
	require.Equal(t, "https://cdn/v.mp4", *f.store.Job("task-archive").ResultURL)
}

func TestRegistry_ArchiveFailureKeepsProviderURL(t *testing.T) {
	f := newFixture(t, "task-archive-fail")
	p := &scriptedPoller{steps: []pollStep{{status: &kie.TaskStatus{State: kie.TaskStateSuccess, ResultURLs: []string{"https://cdn/v.mp4"}}}}}
	opts := fastOptions()
	opts.Downloader = fakeDownloader{err: errors.New("cdn 403")}
	opts.Blobs = &mapBlobs{}
	r := New(f.store, p, opts)

	require.True(t, r.Start(f.job))
	waitIdle(t, r)

	mf := f.store.MediaFor(f.segment, db.MediaTypeVideo)
	require.Equal(t, db.MediaStatusDone, mf.Status)
	require.Nil(t, mf.BlobURL)
	require.Equal(t, "https://cdn/v.mp4", *mf.ExternalURL)
}
