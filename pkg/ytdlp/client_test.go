package ytdlp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInfo_ParsesJSON(t *testing.T) {
	c := New()
	var gotArgs []string
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotArgs = args
		return []byte(`{"id":"abc","title":"hello","webpage_url":"https://example.com","duration":12.5,"ext":"mp4"}`), nil, nil
	}

	info, err := c.GetInfo(context.Background(), "https://example.com/watch?v=abc")
	require.NoError(t, err)
	require.Equal(t, "abc", info.ID)
	require.Equal(t, "hello", info.Title)
	require.Equal(t, 12.5, info.Duration)
	require.Equal(t, "mp4", info.Ext)
	require.Contains(t, gotArgs, "--no-playlist")
	require.Contains(t, gotArgs, "--skip-download")
}

func TestGetInfo_WrapsExecError(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte("out"), []byte("err"), errors.New("boom")
	}

	_, err := c.GetInfo(context.Background(), "https://example.com")
	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "err", ee.Stderr)
	require.Equal(t, ReasonUnknown, ee.Reason())
}

func TestGetInfo_BadJSON(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte("not json"), nil, nil
	}

	_, err := c.GetInfo(context.Background(), "https://example.com")
	require.Error(t, err)

	_, err = c.GetInfo(context.Background(), "")
	require.Error(t, err)
}

func TestVersion_TrimsOutput(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte("2025.01.01\n"), nil, nil
	}

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2025.01.01", v)
}

func TestUpdate_PassesFlag(t *testing.T) {
	c := &Client{}
	var gotName string
	var gotArgs []string
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotName, gotArgs = name, args
		return nil, nil, nil
	}

	require.NoError(t, c.Update(context.Background()))
	require.Equal(t, "yt-dlp", gotName)
	require.Equal(t, []string{"-U"}, gotArgs)
}
