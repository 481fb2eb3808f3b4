// Package dbtest provides an in-memory db.Store for tests of the packages that
// sit on top of the persisted store.
package dbtest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/db"
)

// MemStore mirrors the constraints of the Postgres schema that callers rely
// on: unique (segment, media type) rows, terminal video jobs and
// all-or-nothing transactions.
type MemStore struct {
	mu sync.Mutex
	// txMu serialises InTx so a rolled back snapshot never clobbers a
	// concurrent writer.
	txMu sync.Mutex

	analyses map[uuid.UUID]*db.Analysis
	sources  map[uuid.UUID]*db.AnalysisSource
	scripts  map[uuid.UUID]*db.Script
	segments map[uuid.UUID]*db.ScriptSegment
	media    map[uuid.UUID]*db.MediaFile
	jobs     map[uuid.UUID]*db.VideoJob
	seq      time.Duration

	// Fail, when set, is consulted before every operation and its error
	// returned as-is.
	Fail func(op string) error

	// StatusLog records every analysis status write in order.
	StatusLog []db.AnalysisStatus
	// MediaLog records every media status write as "<type>:<status>".
	MediaLog []string
}

var _ db.Store = (*MemStore)(nil)

func New() *MemStore {
	return &MemStore{
		analyses: map[uuid.UUID]*db.Analysis{},
		sources:  map[uuid.UUID]*db.AnalysisSource{},
		scripts:  map[uuid.UUID]*db.Script{},
		segments: map[uuid.UUID]*db.ScriptSegment{},
		media:    map[uuid.UUID]*db.MediaFile{},
		jobs:     map[uuid.UUID]*db.VideoJob{},
	}
}

// now returns strictly increasing timestamps so ordering is deterministic.
func (s *MemStore) now() time.Time {
	s.seq += time.Millisecond
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(s.seq)
}

func (s *MemStore) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

func missing(what string) error {
	return fmt.Errorf("%w: %s", apperr.ErrNotFound, what)
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

type snapshot struct {
	analyses map[uuid.UUID]db.Analysis
	sources  map[uuid.UUID]db.AnalysisSource
	scripts  map[uuid.UUID]db.Script
	segments map[uuid.UUID]db.ScriptSegment
	media    map[uuid.UUID]db.MediaFile
	jobs     map[uuid.UUID]db.VideoJob
}

func copyMap[T any](m map[uuid.UUID]*T) map[uuid.UUID]T {
	out := make(map[uuid.UUID]T, len(m))
	for k, v := range m {
		out[k] = *v
	}
	return out
}

func restoreMap[T any](m map[uuid.UUID]T) map[uuid.UUID]*T {
	out := make(map[uuid.UUID]*T, len(m))
	for k, v := range m {
		out[k] = &v
	}
	return out
}

// InTx runs fn and restores the previous state when it returns an error.
func (s *MemStore) InTx(ctx context.Context, fn func(q db.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := snapshot{
		analyses: copyMap(s.analyses),
		sources:  copyMap(s.sources),
		scripts:  copyMap(s.scripts),
		segments: copyMap(s.segments),
		media:    copyMap(s.media),
		jobs:     copyMap(s.jobs),
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.analyses = restoreMap(snap.analyses)
		s.sources = restoreMap(snap.sources)
		s.scripts = restoreMap(snap.scripts)
		s.segments = restoreMap(snap.segments)
		s.media = restoreMap(snap.media)
		s.jobs = restoreMap(snap.jobs)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Analyses

func (s *MemStore) InsertAnalysis(ctx context.Context, status db.AnalysisStatus) (*db.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertAnalysis"); err != nil {
		return nil, err
	}
	now := s.now()
	a := &db.Analysis{
		ID:               uuid.New(),
		Status:           status,
		Transcript:       db.JSONList[db.TranscriptSegment]{},
		Patterns:         db.JSONList[db.Pattern]{},
		GroundingSources: db.JSONList[db.GroundingSource]{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.analyses[a.ID] = a
	s.StatusLog = append(s.StatusLog, status)
	return clone(a), nil
}

func (s *MemStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*db.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetAnalysis"); err != nil {
		return nil, err
	}
	a, ok := s.analyses[id]
	if !ok {
		return nil, missing("analysis")
	}
	return clone(a), nil
}

func (s *MemStore) ListAnalyses(ctx context.Context, limit int32) ([]*db.Analysis, error) {
	return s.listAnalyses(func(*db.Analysis) bool { return true }, limit)
}

func (s *MemStore) ListAnalysesByStatus(ctx context.Context, status db.AnalysisStatus, limit int32) ([]*db.Analysis, error) {
	return s.listAnalyses(func(a *db.Analysis) bool { return a.Status == status }, limit)
}

func (s *MemStore) listAnalyses(keep func(*db.Analysis) bool, limit int32) ([]*db.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListAnalyses"); err != nil {
		return nil, err
	}
	out := []*db.Analysis{}
	for _, a := range s.analyses {
		if keep(a) {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) UpdateAnalysisStatus(ctx context.Context, id uuid.UUID, status db.AnalysisStatus, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateAnalysisStatus:" + string(status)); err != nil {
		return err
	}
	a, ok := s.analyses[id]
	if !ok {
		return missing("analysis")
	}
	a.Status = status
	a.ErrorMessage = errorMessage
	a.UpdatedAt = s.now()
	s.StatusLog = append(s.StatusLog, status)
	return nil
}

func (s *MemStore) CompleteAnalysis(ctx context.Context, arg db.CompleteAnalysisParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CompleteAnalysis"); err != nil {
		return err
	}
	a, ok := s.analyses[arg.ID]
	if !ok {
		return missing("analysis")
	}
	a.Transcript = arg.Transcript
	a.StylePassport = arg.StylePassport
	a.Patterns = arg.Patterns
	a.GroundingSources = arg.GroundingSources
	a.Status = db.AnalysisStatusReady
	a.ErrorMessage = nil
	a.UpdatedAt = s.now()
	s.StatusLog = append(s.StatusLog, db.AnalysisStatusReady)
	return nil
}

func (s *MemStore) InsertAnalysisSource(ctx context.Context, arg db.InsertAnalysisSourceParams) (*db.AnalysisSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertAnalysisSource"); err != nil {
		return nil, err
	}
	if _, ok := s.analyses[arg.AnalysisID]; !ok {
		return nil, missing("analysis")
	}
	urlSet, blobSet := arg.URL != nil, arg.BlobKey != nil
	if (arg.Kind == db.SourceKindURL && (!urlSet || blobSet)) || (arg.Kind == db.SourceKindFile && (!blobSet || urlSet)) {
		return nil, fmt.Errorf("analysis_sources_payload_chk: kind %s with url=%t blob=%t", arg.Kind, urlSet, blobSet)
	}
	src := &db.AnalysisSource{
		ID:              uuid.New(),
		AnalysisID:      arg.AnalysisID,
		Kind:            arg.Kind,
		Label:           arg.Label,
		URL:             arg.URL,
		BlobKey:         arg.BlobKey,
		BlobURL:         arg.BlobURL,
		MimeType:        arg.MimeType,
		Title:           arg.Title,
		DurationSeconds: arg.DurationSeconds,
		CreatedAt:       s.now(),
	}
	s.sources[src.ID] = src
	return clone(src), nil
}

func (s *MemStore) ListAnalysisSources(ctx context.Context, analysisID uuid.UUID) ([]*db.AnalysisSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*db.AnalysisSource{}
	for _, src := range s.sources {
		if src.AnalysisID == analysisID {
			out = append(out, clone(src))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Scripts

func (s *MemStore) InsertScript(ctx context.Context, analysisID uuid.UUID, topic string) (*db.Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertScript"); err != nil {
		return nil, err
	}
	if _, ok := s.analyses[analysisID]; !ok {
		return nil, missing("analysis")
	}
	now := s.now()
	sc := &db.Script{ID: uuid.New(), AnalysisID: analysisID, Topic: topic, CreatedAt: now, UpdatedAt: now}
	s.scripts[sc.ID] = sc
	return clone(sc), nil
}

func (s *MemStore) GetScript(ctx context.Context, id uuid.UUID) (*db.Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scripts[id]
	if !ok {
		return nil, missing("script")
	}
	return clone(sc), nil
}

func (s *MemStore) ListScriptsByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]*db.Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*db.Script{}
	for _, sc := range s.scripts {
		if sc.AnalysisID == analysisID {
			out = append(out, clone(sc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) InsertScriptSegment(ctx context.Context, arg db.InsertScriptSegmentParams) (*db.ScriptSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertScriptSegment"); err != nil {
		return nil, err
	}
	if _, ok := s.scripts[arg.ScriptID]; !ok {
		return nil, missing("script")
	}
	for _, seg := range s.segments {
		if seg.ScriptID == arg.ScriptID && seg.Order == arg.Order {
			return nil, fmt.Errorf("duplicate segment order %d", arg.Order)
		}
	}
	seg := &db.ScriptSegment{
		ID:        uuid.New(),
		ScriptID:  arg.ScriptID,
		Timeframe: arg.Timeframe,
		Visual:    arg.Visual,
		Audio:     arg.Audio,
		Order:     arg.Order,
		CreatedAt: s.now(),
	}
	s.segments[seg.ID] = seg
	return clone(seg), nil
}

func (s *MemStore) ListScriptSegments(ctx context.Context, scriptID uuid.UUID) ([]*db.ScriptSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*db.ScriptSegment{}
	for _, seg := range s.segments {
		if seg.ScriptID == scriptID {
			out = append(out, clone(seg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *MemStore) GetScriptSegment(ctx context.Context, scriptID, segmentID uuid.UUID) (*db.ScriptSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[segmentID]
	if !ok || seg.ScriptID != scriptID {
		return nil, missing("segment")
	}
	return clone(seg), nil
}

// Media files

func (s *MemStore) GetOrCreateMediaFile(ctx context.Context, segmentID uuid.UUID, mediaType db.MediaType) (*db.MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetOrCreateMediaFile"); err != nil {
		return nil, err
	}
	for _, m := range s.media {
		if m.SegmentID == segmentID && m.MediaType == mediaType {
			return clone(m), nil
		}
	}
	if _, ok := s.segments[segmentID]; !ok {
		return nil, missing("segment")
	}
	now := s.now()
	m := &db.MediaFile{
		ID:        uuid.New(),
		SegmentID: segmentID,
		MediaType: mediaType,
		Status:    db.MediaStatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.media[m.ID] = m
	return clone(m), nil
}

func (s *MemStore) ResetMediaFile(ctx context.Context, id uuid.UUID) (*db.MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ResetMediaFile"); err != nil {
		return nil, err
	}
	old, ok := s.media[id]
	if !ok {
		return nil, missing("media file")
	}
	delete(s.media, id)
	now := s.now()
	m := &db.MediaFile{
		ID:        uuid.New(),
		SegmentID: old.SegmentID,
		MediaType: old.MediaType,
		Status:    db.MediaStatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.media[m.ID] = m
	return clone(m), nil
}

func (s *MemStore) UpdateMediaFileStatus(ctx context.Context, id uuid.UUID, status db.MediaStatus, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateMediaFileStatus:" + string(status)); err != nil {
		return err
	}
	m, ok := s.media[id]
	if !ok {
		return missing("media file")
	}
	m.Status = status
	m.ErrorMessage = errorMessage
	m.UpdatedAt = s.now()
	s.MediaLog = append(s.MediaLog, string(m.MediaType)+":"+string(status))
	return nil
}

func (s *MemStore) CompleteMediaFile(ctx context.Context, arg db.CompleteMediaFileParams) (*db.MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CompleteMediaFile"); err != nil {
		return nil, err
	}
	m, ok := s.media[arg.ID]
	if !ok {
		return nil, missing("media file")
	}
	m.Status = db.MediaStatusDone
	m.BlobKey = arg.BlobKey
	m.BlobURL = arg.BlobURL
	m.MimeType = arg.MimeType
	m.ExternalURL = arg.ExternalURL
	m.ErrorMessage = nil
	m.UpdatedAt = s.now()
	s.MediaLog = append(s.MediaLog, string(m.MediaType)+":"+string(db.MediaStatusDone))
	return clone(m), nil
}

func (s *MemStore) ListMediaFilesBySegment(ctx context.Context, segmentID uuid.UUID) ([]*db.MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mediaWhere(func(m *db.MediaFile) bool { return m.SegmentID == segmentID }), nil
}

func (s *MemStore) ListMediaFilesByScript(ctx context.Context, scriptID uuid.UUID) ([]*db.MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.mediaWhere(func(m *db.MediaFile) bool {
		seg, ok := s.segments[m.SegmentID]
		return ok && seg.ScriptID == scriptID
	})
	sort.SliceStable(out, func(i, j int) bool {
		return s.segments[out[i].SegmentID].Order < s.segments[out[j].SegmentID].Order
	})
	return out, nil
}

func (s *MemStore) mediaWhere(keep func(*db.MediaFile) bool) []*db.MediaFile {
	out := []*db.MediaFile{}
	for _, m := range s.media {
		if keep(m) {
			out = append(out, clone(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemStore) AttachMediaFileToVideoJob(ctx context.Context, mediaFileID, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("AttachMediaFileToVideoJob"); err != nil {
		return err
	}
	m, ok := s.media[mediaFileID]
	if !ok {
		return missing("media file")
	}
	if _, ok := s.jobs[jobID]; !ok {
		return missing("video job")
	}
	m.VideoJobID = &jobID
	m.Status = db.MediaStatusGeneratingVideo
	m.ExternalURL, m.BlobKey, m.BlobURL, m.MimeType, m.ErrorMessage = nil, nil, nil, nil, nil
	m.UpdatedAt = s.now()
	return nil
}

func (s *MemStore) ListMediaFilesByVideoJob(ctx context.Context, jobID uuid.UUID) ([]*db.MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mediaWhere(func(m *db.MediaFile) bool { return m.VideoJobID != nil && *m.VideoJobID == jobID }), nil
}

// Video jobs

func (s *MemStore) InsertVideoJob(ctx context.Context, arg db.InsertVideoJobParams) (*db.VideoJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertVideoJob"); err != nil {
		return nil, err
	}
	for _, j := range s.jobs {
		if j.TaskID == arg.TaskID {
			return nil, fmt.Errorf("duplicate task id %q", arg.TaskID)
		}
	}
	now := s.now()
	j := &db.VideoJob{
		ID:        uuid.New(),
		TaskID:    arg.TaskID,
		Model:     arg.Model,
		Prompt:    arg.Prompt,
		State:     db.VideoJobStateWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[j.ID] = j
	return clone(j), nil
}

func (s *MemStore) GetVideoJob(ctx context.Context, id uuid.UUID) (*db.VideoJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, missing("video job")
	}
	return clone(j), nil
}

func (s *MemStore) GetVideoJobByTaskID(ctx context.Context, taskID string) (*db.VideoJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.TaskID == taskID {
			return clone(j), nil
		}
	}
	return nil, missing("video job")
}

func (s *MemStore) ListWaitingVideoJobs(ctx context.Context) ([]*db.VideoJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListWaitingVideoJobs"); err != nil {
		return nil, err
	}
	out := []*db.VideoJob{}
	for _, j := range s.jobs {
		if j.State == db.VideoJobStateWaiting {
			out = append(out, clone(j))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) UpdateVideoJobAttempts(ctx context.Context, id uuid.UUID, attempts int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateVideoJobAttempts"); err != nil {
		return err
	}
	if j, ok := s.jobs[id]; ok && j.State == db.VideoJobStateWaiting {
		j.Attempts = attempts
		j.UpdatedAt = s.now()
	}
	return nil
}

func (s *MemStore) FinishVideoJob(ctx context.Context, arg db.FinishVideoJobParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FinishVideoJob"); err != nil {
		return false, err
	}
	j, ok := s.jobs[arg.ID]
	if !ok || j.State != db.VideoJobStateWaiting {
		return false, nil
	}
	now := s.now()
	j.State = arg.State
	j.ResultURL = arg.ResultURL
	j.FailMessage = arg.FailMessage
	j.UpdatedAt = now
	j.FinishedAt = &now
	return true, nil
}

func (s *MemStore) ResolveMediaFilesForJob(ctx context.Context, arg db.ResolveMediaFilesForJobParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ResolveMediaFilesForJob"); err != nil {
		return 0, err
	}
	var n int64
	for _, m := range s.media {
		if m.VideoJobID == nil || *m.VideoJobID != arg.VideoJobID || m.Status != db.MediaStatusGeneratingVideo {
			continue
		}
		m.Status = arg.Status
		m.ExternalURL = arg.ExternalURL
		m.ErrorMessage = arg.ErrorMessage
		m.UpdatedAt = s.now()
		n++
	}
	return n, nil
}

// Helpers for assertions.

// MediaFor returns the current row for (segment, type) or nil.
func (s *MemStore) MediaFor(segmentID uuid.UUID, t db.MediaType) *db.MediaFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.media {
		if m.SegmentID == segmentID && m.MediaType == t {
			return clone(m)
		}
	}
	return nil
}

// MediaCount is the number of media rows stored.
func (s *MemStore) MediaCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.media)
}

// Job returns the video job with taskID or nil.
func (s *MemStore) Job(taskID string) *db.VideoJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.TaskID == taskID {
			return clone(j)
		}
	}
	return nil
}

// Statuses returns a copy of StatusLog.
func (s *MemStore) Statuses() []db.AnalysisStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.StatusLog)
}
