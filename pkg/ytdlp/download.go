package ytdlp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var fragmentRe = regexp.MustCompile(`^f\d+\.`)

// DownloadOptions controls a single-file download.
type DownloadOptions struct {
	// Format is passed to --format. Empty lets yt-dlp choose.
	Format string
	// BaseName is the output file name without extension. Defaults to "media".
	BaseName string
	// MergeFormat is passed to --merge-output-format when Format merges streams.
	MergeFormat string
}

// Download fetches one media file into destDir and returns its path.
// Playlists are not expanded.
func (c *Client) Download(ctx context.Context, url string, destDir string, opts DownloadOptions, extraArgs ...string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("ytdlp: url is required")
	}
	if strings.TrimSpace(destDir) == "" {
		return "", fmt.Errorf("ytdlp: destDir is required")
	}

	base := opts.BaseName
	if base == "" {
		base = "media"
	}
	tmpl := filepath.Join(destDir, base+".%(ext)s")

	args := []string{
		"-o", tmpl,
		"--no-playlist",
		"--no-part",
		"--no-colors",
		"--no-warnings",
	}
	if opts.Format != "" {
		args = append(args, "--format", opts.Format)
	}
	if opts.MergeFormat != "" {
		args = append(args, "--merge-output-format", opts.MergeFormat)
	}
	args = append(args, extraArgs...)
	args = append(args, url)

	if _, err := c.run(ctx, args...); err != nil {
		return "", err
	}

	return findOutput(destDir, base)
}

// findOutput locates the file yt-dlp produced for base, skipping sidecars and
// intermediate fragments.
func findOutput(dir, base string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		name := filepath.Base(m)
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		if fragmentRe.MatchString(strings.TrimPrefix(name, base+".")) {
			// unmerged format fragment, e.g. media.f137.mp4
			continue
		}
		if st, err := os.Stat(m); err == nil && st.Mode().IsRegular() {
			return m, nil
		}
	}
	return "", fmt.Errorf("ytdlp: no output file found in %s", dir)
}
