package db

import (
	"context"

	"github.com/google/uuid"
)

type Querier interface {
	InsertAnalysis(ctx context.Context, status AnalysisStatus) (*Analysis, error)
	GetAnalysis(ctx context.Context, id uuid.UUID) (*Analysis, error)
	ListAnalyses(ctx context.Context, limit int32) ([]*Analysis, error)
	ListAnalysesByStatus(ctx context.Context, status AnalysisStatus, limit int32) ([]*Analysis, error)
	UpdateAnalysisStatus(ctx context.Context, id uuid.UUID, status AnalysisStatus, errorMessage *string) error
	CompleteAnalysis(ctx context.Context, arg CompleteAnalysisParams) error
	InsertAnalysisSource(ctx context.Context, arg InsertAnalysisSourceParams) (*AnalysisSource, error)
	ListAnalysisSources(ctx context.Context, analysisID uuid.UUID) ([]*AnalysisSource, error)

	InsertScript(ctx context.Context, analysisID uuid.UUID, topic string) (*Script, error)
	GetScript(ctx context.Context, id uuid.UUID) (*Script, error)
	ListScriptsByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]*Script, error)
	InsertScriptSegment(ctx context.Context, arg InsertScriptSegmentParams) (*ScriptSegment, error)
	ListScriptSegments(ctx context.Context, scriptID uuid.UUID) ([]*ScriptSegment, error)
	GetScriptSegment(ctx context.Context, scriptID, segmentID uuid.UUID) (*ScriptSegment, error)

	GetOrCreateMediaFile(ctx context.Context, segmentID uuid.UUID, mediaType MediaType) (*MediaFile, error)
	ResetMediaFile(ctx context.Context, id uuid.UUID) (*MediaFile, error)
	UpdateMediaFileStatus(ctx context.Context, id uuid.UUID, status MediaStatus, errorMessage *string) error
	CompleteMediaFile(ctx context.Context, arg CompleteMediaFileParams) (*MediaFile, error)
	ListMediaFilesBySegment(ctx context.Context, segmentID uuid.UUID) ([]*MediaFile, error)
	ListMediaFilesByScript(ctx context.Context, scriptID uuid.UUID) ([]*MediaFile, error)
	AttachMediaFileToVideoJob(ctx context.Context, mediaFileID, jobID uuid.UUID) error
	ListMediaFilesByVideoJob(ctx context.Context, jobID uuid.UUID) ([]*MediaFile, error)

	InsertVideoJob(ctx context.Context, arg InsertVideoJobParams) (*VideoJob, error)
	GetVideoJob(ctx context.Context, id uuid.UUID) (*VideoJob, error)
	GetVideoJobByTaskID(ctx context.Context, taskID string) (*VideoJob, error)
	ListWaitingVideoJobs(ctx context.Context) ([]*VideoJob, error)
	UpdateVideoJobAttempts(ctx context.Context, id uuid.UUID, attempts int32) error
	FinishVideoJob(ctx context.Context, arg FinishVideoJobParams) (bool, error)
	ResolveMediaFilesForJob(ctx context.Context, arg ResolveMediaFilesForJobParams) (int64, error)
}

var _ Querier = (*Queries)(nil)

// Store is a Querier that can also run a function inside one transaction.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}
