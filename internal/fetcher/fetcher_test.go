package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/pkg/ytdlp"
)

type fakeDownloader struct {
	info       *ytdlp.Info
	infoErr    error
	ext        string
	body       []byte
	dlErr      error
	gotFormat  string
	gotDestDir string
}

func (d *fakeDownloader) GetInfo(ctx context.Context, url string, extraArgs ...string) (*ytdlp.Info, error) {
	return d.info, d.infoErr
}

func (d *fakeDownloader) Download(ctx context.Context, url, destDir string, opts ytdlp.DownloadOptions, extraArgs ...string) (string, error) {
	d.gotFormat = opts.Format
	d.gotDestDir = destDir
	if d.dlErr != nil {
		return "", d.dlErr
	}
	p := filepath.Join(destDir, "media"+d.ext)
	if err := os.WriteFile(p, d.body, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func newTestFetcher(t *testing.T, d *fakeDownloader, opts Options) (*Fetcher, *string) {
	t.Helper()
	opts.TempRoot = t.TempDir()
	f := New(opts)
	var cookies string
	f.newDownloader = func(c string) downloader {
		cookies = c
		return d
	}
	return f, &cookies
}

func TestFetch_ReadsFileAndCleansUp(t *testing.T) {
	d := &fakeDownloader{
		info: &ytdlp.Info{Title: `My "best" video?`, Duration: 31},
		ext:  ".webm",
		body: []byte("webm-bytes"),
	}
	f, _ := newTestFetcher(t, d, Options{})

	m, err := f.Fetch(context.Background(), "https://www.tiktok.com/@u/video/1")
	require.NoError(t, err)
	require.Equal(t, []byte("webm-bytes"), m.Data)
	require.Equal(t, "video/webm", m.MimeType)
	require.Equal(t, "My best video.webm", m.Filename)
	require.Equal(t, PlatformTikTok, m.Platform)
	require.Equal(t, 31.0, m.Duration)
	require.Equal(t, "best[ext=mp4]/best", d.gotFormat)

	_, err = os.Stat(d.gotDestDir)
	require.True(t, os.IsNotExist(err), "temp dir must be removed")
}

func TestFetch_DownloadFailureCleansUp(t *testing.T) {
	d := &fakeDownloader{
		info:  &ytdlp.Info{Title: "x"},
		dlErr: errors.New("ERROR: Private video"),
	}
	f, _ := newTestFetcher(t, d, Options{})

	_, err := f.Fetch(context.Background(), "https://youtu.be/abc")
	require.ErrorIs(t, err, apperr.ErrDownloadFailed)
	require.Contains(t, err.Error(), "Private video")

	_, statErr := os.Stat(d.gotDestDir)
	require.True(t, os.IsNotExist(statErr))
}

func TestFetch_InfoFailure(t *testing.T) {
	d := &fakeDownloader{infoErr: errors.New("unavailable")}
	f, _ := newTestFetcher(t, d, Options{})
	_, err := f.Fetch(context.Background(), "https://youtu.be/abc")
	require.ErrorIs(t, err, apperr.ErrDownloadFailed)
}

func TestFetch_Unsupported(t *testing.T) {
	f, _ := newTestFetcher(t, &fakeDownloader{}, Options{})
	require.False(t, f.Supports("https://vimeo.com/1"))
	_, err := f.Fetch(context.Background(), "https://vimeo.com/1")
	require.ErrorIs(t, err, apperr.ErrUnsupportedSource)
}

func TestFetch_SizeLimit(t *testing.T) {
	d := &fakeDownloader{info: &ytdlp.Info{Title: "big"}, ext: ".mp4", body: make([]byte, 2048)}
	f, _ := newTestFetcher(t, d, Options{MaxBytes: 1024})
	_, err := f.Fetch(context.Background(), "https://youtu.be/abc")
	require.ErrorIs(t, err, apperr.ErrDownloadFailed)
	require.Contains(t, err.Error(), "limit")
}

func TestFetch_CookiesPerPlatform(t *testing.T) {
	dir := t.TempDir()
	general := filepath.Join(dir, "cookies.txt")
	insta := filepath.Join(dir, "instagram.txt")
	require.NoError(t, os.WriteFile(general, []byte("general"), 0o600))
	require.NoError(t, os.WriteFile(insta, []byte("insta"), 0o600))

	d := &fakeDownloader{info: &ytdlp.Info{Title: "t"}, ext: ".mp4", body: []byte("v")}
	f, cookies := newTestFetcher(t, d, Options{CookiesFile: general, InstagramCookiesFile: insta})

	_, err := f.Fetch(context.Background(), "https://www.instagram.com/reel/x/")
	require.NoError(t, err)
	require.Equal(t, "insta", *cookies)

	_, err = f.Fetch(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	require.Equal(t, "general", *cookies)

	f.opts.CookiesFile = filepath.Join(dir, "missing.txt")
	_, err = f.Fetch(context.Background(), "https://vm.tiktok.com/x")
	require.NoError(t, err)
	require.Equal(t, "", *cookies)
}

func TestMimeTypeForExt(t *testing.T) {
	require.Equal(t, "video/mp4", MimeTypeForExt(".mp4"))
	require.Equal(t, "video/x-matroska", MimeTypeForExt(".MKV"))
	require.Equal(t, "audio/mp4", MimeTypeForExt(".m4a"))
	require.Equal(t, "audio/mpeg", MimeTypeForExt(".mp3"))
	require.Equal(t, "video/mp4", MimeTypeForExt(".flv"))
}

func TestFetch_ClassifiesYtdlpFailure(t *testing.T) {
	d := &fakeDownloader{infoErr: &ytdlp.ExecError{
		Cmd:      "yt-dlp",
		ExitCode: 1,
		Stderr:   "ERROR: [youtube] abc: Sign in to confirm you're not a bot",
	}}
	f, _ := newTestFetcher(t, d, Options{})

	_, err := f.Fetch(context.Background(), "https://youtu.be/abc")
	require.ErrorIs(t, err, apperr.ErrDownloadFailed)
	require.ErrorContains(t, err, "login_required: yt-dlp exited with status 1")

	var ee *ytdlp.ExecError
	require.ErrorAs(t, err, &ee)
}
