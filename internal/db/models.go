package db

import (
	"time"

	"github.com/google/uuid"
)

type AnalysisStatus string

const (
	AnalysisStatusIdle         AnalysisStatus = "idle"
	AnalysisStatusProcessing   AnalysisStatus = "processing"
	AnalysisStatusDownloading  AnalysisStatus = "downloading"
	AnalysisStatusTranscribing AnalysisStatus = "transcribing"
	AnalysisStatusAnalyzing    AnalysisStatus = "analyzing"
	AnalysisStatusReady        AnalysisStatus = "ready"
	AnalysisStatusError        AnalysisStatus = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisStatusReady || s == AnalysisStatusError
}

type SourceKind string

const (
	SourceKindURL  SourceKind = "url"
	SourceKindFile SourceKind = "file"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// MediaTypes is the generation order of the synchronous media path.
var MediaTypes = []MediaType{MediaTypeImage, MediaTypeVideo, MediaTypeAudio}

// GeneratingStatus is the in-flight status for a kind.
func (t MediaType) GeneratingStatus() MediaStatus {
	switch t {
	case MediaTypeImage:
		return MediaStatusGeneratingImage
	case MediaTypeVideo:
		return MediaStatusGeneratingVideo
	default:
		return MediaStatusGeneratingAudio
	}
}

type MediaStatus string

const (
	MediaStatusIdle            MediaStatus = "idle"
	MediaStatusGeneratingImage MediaStatus = "generating_image"
	MediaStatusGeneratingVideo MediaStatus = "generating_video"
	MediaStatusGeneratingAudio MediaStatus = "generating_audio"
	MediaStatusDone            MediaStatus = "done"
	MediaStatusError           MediaStatus = "error"
	MediaStatusTimedOut        MediaStatus = "timed_out"
)

// Failed reports whether the row ended without an asset.
func (s MediaStatus) Failed() bool {
	return s == MediaStatusError || s == MediaStatusTimedOut
}

type VideoJobState string

const (
	VideoJobStateWaiting  VideoJobState = "waiting"
	VideoJobStateSuccess  VideoJobState = "success"
	VideoJobStateFail     VideoJobState = "fail"
	VideoJobStateTimedOut VideoJobState = "timed_out"
)

type TranscriptSegment struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
}

type StructureSegment struct {
	Segment     string `json:"segment"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
}

type StylePassport struct {
	Structure     []StructureSegment `json:"structure"`
	SpeechRateWPM float64            `json:"speech_rate_wpm"`
	Catchphrases  []string           `json:"catchphrases"`
	Fillers       []string           `json:"fillers"`
	Sentiment     string             `json:"sentiment"`
	ToneTags      []string           `json:"tone_tags"`
	VisualContext []string           `json:"visual_context"`
}

type Pattern struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Impact           string   `json:"impact"`
	EvidenceSegments []string `json:"evidence_segments"`
}

type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

type Analysis struct {
	ID               uuid.UUID
	Status           AnalysisStatus
	Transcript       JSONList[TranscriptSegment]
	StylePassport    *StylePassport
	Patterns         JSONList[Pattern]
	GroundingSources JSONList[GroundingSource]
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type AnalysisSource struct {
	ID              uuid.UUID
	AnalysisID      uuid.UUID
	Kind            SourceKind
	Label           string
	URL             *string
	BlobKey         *string
	BlobURL         *string
	MimeType        *string
	Title           *string
	DurationSeconds *float64
	CreatedAt       time.Time
}

type Script struct {
	ID         uuid.UUID
	AnalysisID uuid.UUID
	Topic      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ScriptSegment struct {
	ID        uuid.UUID
	ScriptID  uuid.UUID
	Timeframe string
	Visual    string
	Audio     string
	Order     int32
	CreatedAt time.Time
}

type VideoJob struct {
	ID          uuid.UUID
	TaskID      string
	Model       string
	Prompt      string
	State       VideoJobState
	ResultURL   *string
	FailMessage *string
	Attempts    int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FinishedAt  *time.Time
}

type MediaFile struct {
	ID           uuid.UUID
	SegmentID    uuid.UUID
	MediaType    MediaType
	Status       MediaStatus
	BlobKey      *string
	BlobURL      *string
	MimeType     *string
	ExternalURL  *string
	VideoJobID   *uuid.UUID
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
