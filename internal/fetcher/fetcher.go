// Package fetcher downloads reference videos from supported platforms.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/pkg/utils/filename"
	"thirdcoast.systems/contentdna/pkg/ytdlp"
)

// Media is a downloaded file held in memory.
type Media struct {
	Data     []byte
	Title    string
	Filename string
	MimeType string
	Duration float64
	Platform Platform
}

type Options struct {
	YtdlpPath            string
	CookiesFile          string
	InstagramCookiesFile string
	// MaxBytes rejects larger downloads. Zero disables the check.
	MaxBytes uint64
	// TempRoot is the parent of per-download temp dirs. Empty means os.TempDir().
	TempRoot string
}

type downloader interface {
	GetInfo(ctx context.Context, url string, extraArgs ...string) (*ytdlp.Info, error)
	Download(ctx context.Context, url string, destDir string, opts ytdlp.DownloadOptions, extraArgs ...string) (string, error)
}

type Fetcher struct {
	opts          Options
	newDownloader func(cookies string) downloader
}

func New(opts Options) *Fetcher {
	f := &Fetcher{opts: opts}
	f.newDownloader = func(cookies string) downloader {
		c := ytdlp.New()
		if opts.YtdlpPath != "" {
			c.Path = opts.YtdlpPath
		}
		c.Cookies = cookies
		c.LogCallback = func(stream, line string) {
			slog.Debug("yt-dlp", "stream", stream, "line", line)
		}
		return c
	}
	return f
}

// SelfUpdate runs yt-dlp -U and logs the version before and after.
func (f *Fetcher) SelfUpdate(ctx context.Context) error {
	c := ytdlp.New()
	if f.opts.YtdlpPath != "" {
		c.Path = f.opts.YtdlpPath
	}
	before, _ := c.Version(ctx)
	if err := c.Update(ctx); err != nil {
		return err
	}
	after, err := c.Version(ctx)
	if err != nil {
		return err
	}
	slog.Info("yt-dlp updated", "from", before, "to", after)
	return nil
}

// Supports reports whether rawURL is on a platform the fetcher handles.
func (f *Fetcher) Supports(rawURL string) bool {
	_, ok := Detect(rawURL)
	return ok
}

// Fetch downloads rawURL into a scratch directory, reads it into memory and
// removes the directory before returning.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Media, error) {
	platform, ok := Detect(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnsupportedSource, rawURL)
	}

	tmpDir, err := os.MkdirTemp(f.opts.TempRoot, "contentdna-fetch-*")
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDownloadFailed, fmt.Errorf("create temp dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			slog.Warn("failed to remove fetch temp dir", "dir", tmpDir, "error", err)
		}
	}()

	start := time.Now()
	dl := f.newDownloader(f.cookiesFor(platform))

	info, err := dl.GetInfo(ctx, rawURL)
	if err != nil {
		return nil, downloadErr(err)
	}

	path, err := dl.Download(ctx, rawURL, tmpDir, ytdlp.DownloadOptions{
		Format:      platform.Format(),
		MergeFormat: "mp4",
	})
	if err != nil {
		return nil, downloadErr(err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDownloadFailed, err)
	}
	if f.opts.MaxBytes > 0 && uint64(st.Size()) > f.opts.MaxBytes {
		return nil, apperr.Wrap(apperr.ErrDownloadFailed, fmt.Errorf("file is %s, limit is %s",
			humanize.Bytes(uint64(st.Size())), humanize.Bytes(f.opts.MaxBytes)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDownloadFailed, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	media := &Media{
		Data:     data,
		Title:    info.Title,
		Filename: filename.WithExt(info.Title, ext, "video"),
		MimeType: MimeTypeForExt(ext),
		Duration: info.Duration,
		Platform: platform,
	}

	slog.Info("Fetched reference video",
		"platform", platform,
		"title", info.Title,
		"size", humanize.Bytes(uint64(len(data))),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return media, nil
}

// downloadErr prefixes yt-dlp failures with their classified reason.
func downloadErr(err error) error {
	var ee *ytdlp.ExecError
	if errors.As(err, &ee) {
		if r := ee.Reason(); r != ytdlp.ReasonUnknown {
			err = fmt.Errorf("%s: %w", r, err)
		}
	}
	return apperr.Wrap(apperr.ErrDownloadFailed, err)
}

// cookiesFor reads the cookies file configured for p. Missing files are ignored.
func (f *Fetcher) cookiesFor(p Platform) string {
	path := f.opts.CookiesFile
	if p == PlatformInstagram {
		path = f.opts.InstagramCookiesFile
	}
	if path == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to read cookies file", "platform", p, "path", path, "error", err)
		}
		return ""
	}
	return string(b)
}

var mimeByExt = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
}

// MimeTypeForExt maps a file extension to a MIME type, defaulting to video/mp4.
func MimeTypeForExt(ext string) string {
	if m, ok := mimeByExt[strings.ToLower(ext)]; ok {
		return m
	}
	return "video/mp4"
}
