package pipeline

import (
	"context"
	"io/fs"
	"sync"

	"thirdcoast.systems/contentdna/internal/blob"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/db/dbtest"
	"thirdcoast.systems/contentdna/internal/fetcher"
	"thirdcoast.systems/contentdna/internal/gemini"
	"thirdcoast.systems/contentdna/internal/kie"
	"thirdcoast.systems/contentdna/internal/scriptgen"
)

type fakeFetcher struct {
	media *fetcher.Media
	err   error
	calls []string
}

func (f *fakeFetcher) Supports(rawURL string) bool {
	_, ok := fetcher.Detect(rawURL)
	return ok
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*fetcher.Media, error) {
	f.calls = append(f.calls, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	return f.media, nil
}

type fakeAnalyzer struct {
	result *gemini.Analysis
	err    error
	inputs []gemini.Input
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, inputs []gemini.Input) (*gemini.Analysis, error) {
	f.inputs = inputs
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeScripts struct {
	drafts   []scriptgen.SegmentDraft
	err      error
	topic    string
	passport db.StylePassport
	patterns []db.Pattern
}

func (f *fakeScripts) Generate(ctx context.Context, topic string, passport db.StylePassport, patterns []db.Pattern) ([]scriptgen.SegmentDraft, error) {
	f.topic, f.passport, f.patterns = topic, passport, patterns
	return f.drafts, f.err
}

type fakeMedia struct {
	imageErr, videoErr, speechErr error
	calls                         []string
	videoStill                    *gemini.Image
}

func (f *fakeMedia) GenerateImage(ctx context.Context, prompt string) (*gemini.Image, error) {
	f.calls = append(f.calls, "image:"+prompt)
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return &gemini.Image{Data: []byte("png-bytes"), MIMEType: "image/png"}, nil
}

func (f *fakeMedia) GenerateVideo(ctx context.Context, prompt string, still *gemini.Image) (string, error) {
	f.calls = append(f.calls, "video:"+prompt)
	f.videoStill = still
	if f.videoErr != nil {
		return "", f.videoErr
	}
	return "https://veo.example/v.mp4", nil
}

func (f *fakeMedia) GenerateSpeech(ctx context.Context, text string) ([]byte, error) {
	f.calls = append(f.calls, "speech:"+text)
	if f.speechErr != nil {
		return nil, f.speechErr
	}
	return gemini.WAV([]byte{0, 0}, gemini.SpeechSampleRate), nil
}

func (f *fakeMedia) VideoPrompt(visual, audio string) (string, error) {
	return visual + " | " + audio, nil
}

type fakeTasks struct {
	taskID   string
	err      error
	requests []kie.VideoTaskRequest
	status   *kie.TaskStatus
}

func (f *fakeTasks) CreateVideoTask(ctx context.Context, req kie.VideoTaskRequest) (string, error) {
	f.requests = append(f.requests, req)
	return f.taskID, f.err
}

func (f *fakeTasks) GetTaskStatus(ctx context.Context, taskID string) (*kie.TaskStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
	puts []string
}

func (m *memBlobs) Put(ctx context.Context, key string, data []byte, contentType string) (blob.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return blob.Object{}, m.err
	}
	k, err := blob.CleanKey(key)
	if err != nil {
		return blob.Object{}, err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[k] = data
	m.puts = append(m.puts, k)
	return blob.Object{Key: k, URL: "/media/" + k, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *memBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return b, nil
}

type fakeReconciler struct {
	started []*db.VideoJob
}

func (f *fakeReconciler) Start(job *db.VideoJob) bool {
	f.started = append(f.started, job)
	return true
}

type fixture struct {
	store    *dbtest.MemStore
	fetcher  *fakeFetcher
	analyzer *fakeAnalyzer
	scripts  *fakeScripts
	media    *fakeMedia
	tasks    *fakeTasks
	blobs    *memBlobs
	rec      *fakeReconciler
	o        *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		store: dbtest.New(),
		fetcher: &fakeFetcher{media: &fetcher.Media{
			Data:     []byte("mp4-bytes"),
			Title:    "Morning routine",
			Filename: "Morning routine.mp4",
			MimeType: "video/mp4",
			Duration: 42,
			Platform: fetcher.PlatformYouTube,
		}},
		analyzer: &fakeAnalyzer{result: &gemini.Analysis{
			Transcript:    []db.TranscriptSegment{{Start: "0:00", End: "0:05", Text: "hello"}},
			StylePassport: db.StylePassport{ToneTags: []string{"warm"}, SpeechRateWPM: 150},
			Patterns:      []db.Pattern{{Name: "Hook", Impact: "High"}},
			Sources:       []db.GroundingSource{{Title: "yt", URI: "https://youtu.be/abc"}},
		}},
		scripts: &fakeScripts{drafts: []scriptgen.SegmentDraft{
			{Timeframe: "0-3s", Visual: "close-up of a mug", Audio: "Coffee first."},
			{Timeframe: "3-8s", Visual: "kitchen wide shot", Audio: "Then the plan."},
			{Timeframe: "8-12s", Visual: "outro card", Audio: "Subscribe."},
		}},
		media: &fakeMedia{},
		tasks: &fakeTasks{taskID: "task-1", status: &kie.TaskStatus{TaskID: "task-1", State: kie.TaskStateWaiting}},
		blobs: &memBlobs{},
		rec:   &fakeReconciler{},
	}
	f.o = New(Deps{
		Store:      f.store,
		Fetcher:    f.fetcher,
		Analyzer:   f.analyzer,
		Scripts:    f.scripts,
		Media:      f.media,
		Tasks:      f.tasks,
		Blobs:      f.blobs,
		Reconciler: f.rec,
	}, Options{HistoryLimit: 20})
	return f
}
