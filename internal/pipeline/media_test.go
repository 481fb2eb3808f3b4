package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/db"
)

func TestGenerateMedia_RunsAllStages(t *testing.T) {
	f := newFixture()
	s := createScript(t, f)
	seg := s.Segments[0]

	v, err := f.o.GenerateMedia(context.Background(), s.ID, seg.ID)
	require.NoError(t, err)
	require.Equal(t, db.MediaStatusDone, v.Media.Status)
	require.Equal(t, "/media/segments/"+seg.ID.String()+"/image.png", v.Media.ImageURL)
	require.Equal(t, "https://veo.example/v.mp4", v.Media.VideoURL)
	require.Equal(t, "/media/segments/"+seg.ID.String()+"/audio.wav", v.Media.AudioURL)

	require.Equal(t, []string{
		"image:close-up of a mug",
		"video:close-up of a mug | Coffee first.",
		"speech:Coffee first.",
	}, f.media.calls)
	require.NotNil(t, f.media.videoStill)
	require.Equal(t, []string{
		"image:generating_image", "image:done",
		"video:generating_video", "video:done",
		"audio:generating_audio", "audio:done",
	}, f.store.MediaLog)
}

func TestGenerateMedia_DoneIsIdempotent(t *testing.T) {
	f := newFixture()
	s := createScript(t, f)
	seg := s.Segments[1]

	first, err := f.o.GenerateMedia(context.Background(), s.ID, seg.ID)
	require.NoError(t, err)
	calls := len(f.media.calls)
	rows := f.store.MediaCount()

	second, err := f.o.GenerateMedia(context.Background(), s.ID, seg.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, f.media.calls, calls)
	require.Equal(t, rows, f.store.MediaCount())
}

func TestGenerateMedia_FailureStopsAndResumes(t *testing.T) {
	f := newFixture()
	s := createScript(t, f)
	seg := s.Segments[0]
	f.media.videoErr = &apperr.ProviderError{Provider: "gemini", Op: "generate video", Message: "quota"}

	_, err := f.o.GenerateMedia(context.Background(), s.ID, seg.ID)
	require.ErrorIs(t, err, apperr.ErrProvider)
	require.Equal(t, 500, apperr.HTTPStatus(err))

	require.Equal(t, db.MediaStatusDone, f.store.MediaFor(seg.ID, db.MediaTypeImage).Status)
	video := f.store.MediaFor(seg.ID, db.MediaTypeVideo)
	require.Equal(t, db.MediaStatusError, video.Status)
	require.Contains(t, *video.ErrorMessage, "quota")
	require.Equal(t, db.MediaStatusIdle, f.store.MediaFor(seg.ID, db.MediaTypeAudio).Status)
	require.NotContains(t, f.media.calls, "speech:Coffee first.")

	got, err := f.o.GetScript(context.Background(), s.ID)
	require.NoError(t, err)
	require.Equal(t, db.MediaStatusError, got.Segments[0].Media.Status)
	require.NotEmpty(t, got.Segments[0].Media.ImageURL)

	// Rerun keeps the image and restarts video from a fresh row.
	f.media.videoErr = nil
	f.media.calls = nil
	f.media.videoStill = nil
	v, err := f.o.GenerateMedia(context.Background(), s.ID, seg.ID)
	require.NoError(t, err)
	require.Equal(t, db.MediaStatusDone, v.Media.Status)
	require.Equal(t, []string{"video:close-up of a mug | Coffee first.", "speech:Coffee first."}, f.media.calls)
	require.Equal(t, []byte("png-bytes"), f.media.videoStill.Data)
	require.NotEqual(t, video.ID, f.store.MediaFor(seg.ID, db.MediaTypeVideo).ID)
}

func TestGenerateMedia_BlobFailureMarksError(t *testing.T) {
	f := newFixture()
	s := createScript(t, f)
	seg := s.Segments[2]
	f.blobs.err = errors.New("read-only file system")

	_, err := f.o.GenerateMedia(context.Background(), s.ID, seg.ID)
	require.ErrorContains(t, err, "read-only file system")
	require.Equal(t, db.MediaStatusError, f.store.MediaFor(seg.ID, db.MediaTypeImage).Status)
	require.Len(t, f.media.calls, 1)
}

func TestGenerateMedia_ForeignSegment(t *testing.T) {
	f := newFixture()
	s := createScript(t, f)

	_, err := f.o.GenerateMedia(context.Background(), s.ID, uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Zero(t, f.store.MediaCount())
}
