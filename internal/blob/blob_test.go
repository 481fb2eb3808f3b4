package blob

import (
	"context"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	k, err := CleanKey("media/images/a.png")
	require.NoError(t, err)
	require.Equal(t, "media/images/a.png", k)

	k, err = CleanKey("../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, "etc/passwd", k)

	k, err = CleanKey(`media\audio\a.wav`)
	require.NoError(t, err)
	require.Equal(t, "media/audio/a.wav", k)

	_, err = CleanKey("  ")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = CleanKey("/")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStore_PutWritesUnderRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root, "/media/")
	require.NoError(t, err)

	obj, err := s.Put(context.Background(), "../media/images/image_1.png", []byte("png"), "image/png")
	require.NoError(t, err)
	require.Equal(t, "media/images/image_1.png", obj.Key)
	require.Equal(t, "/media/media/images/image_1.png", obj.URL)
	require.EqualValues(t, 3, obj.Size)

	b, err := os.ReadFile(filepath.Join(root, "media", "images", "image_1.png"))
	require.NoError(t, err)
	require.Equal(t, "png", string(b))

	p, err := s.Path(obj.Key)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "media", "images", "image_1.png"), p)
	require.Equal(t, obj.URL, s.URL(obj.Key))
}

func TestLocalStore_PutOverwrites(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "http://cdn.local")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "a.wav", []byte("one"), "audio/wav")
	require.NoError(t, err)
	obj, err := s.Put(context.Background(), "a.wav", []byte("two!"), "audio/wav")
	require.NoError(t, err)
	require.Equal(t, "http://cdn.local/a.wav", obj.URL)

	p, _ := s.Path("a.wav")
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "two!", string(b))
}

func TestLocalStore_PutHonoursContext(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, "x", []byte("y"), "")
	require.ErrorIs(t, err, context.Canceled)
}

func TestLocalStore_Get(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "segments/1/image.png", []byte("png"), "image/png")
	require.NoError(t, err)

	b, err := s.Get(context.Background(), "/segments/1/image.png")
	require.NoError(t, err)
	require.Equal(t, "png", string(b))

	_, err = s.Get(context.Background(), "segments/2/image.png")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLocalStore_URLEscapesTitles(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)

	obj, err := s.Put(context.Background(), "sources/x/1/My clip #shorts 100%.mp4", []byte("mp4"), "video/mp4")
	require.NoError(t, err)
	require.Equal(t, "sources/x/1/My clip #shorts 100%.mp4", obj.Key)
	require.Equal(t, "/media/sources/x/1/My%20clip%20%23shorts%20100%25.mp4", obj.URL)
	require.Equal(t, obj.URL, s.URL(obj.Key))

	u, err := url.Parse(obj.URL)
	require.NoError(t, err)
	require.Empty(t, u.Fragment)
	require.Equal(t, "/media/sources/x/1/My clip #shorts 100%.mp4", u.Path)

	b, err := s.Get(context.Background(), obj.Key)
	require.NoError(t, err)
	require.Equal(t, "mp4", string(b))
}
