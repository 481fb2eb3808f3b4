// Package ytdlp wraps the yt-dlp command line tool.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

type Client struct {
	// Path to the yt-dlp executable. Empty means "yt-dlp" on PATH.
	Path string

	// Cookies is cookies.txt content. Each command gets its own temp copy,
	// removed when the command exits.
	Cookies string

	// LogCallback receives every non-empty output line as it is written.
	LogCallback func(stream string, line string)

	execFn func(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

func New() *Client {
	return &Client{Path: "yt-dlp"}
}

// PathOrDefault returns the configured path or "yt-dlp" if unset.
func (c *Client) PathOrDefault() string {
	if strings.TrimSpace(c.Path) == "" {
		return "yt-dlp"
	}
	return c.Path
}

func (c *Client) exec(ctx context.Context, args ...string) ([]byte, []byte, error) {
	name := c.PathOrDefault()

	full := make([]string, 0, len(args)+3)
	if c.LogCallback != nil {
		full = append(full, "--newline")
	}
	if c.Cookies != "" {
		path, err := writeCookies(c.Cookies)
		if err != nil {
			return nil, nil, fmt.Errorf("ytdlp: write cookies: %w", err)
		}
		defer os.Remove(path)
		full = append(full, "--cookies", path)
	}
	full = append(full, args...)

	if c.execFn != nil {
		return c.execFn(ctx, name, full...)
	}

	slog.Debug("ytdlp: executing command", "cmd", name, "args", redactCookies(full))
	cmd := exec.CommandContext(ctx, name, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if c.LogCallback != nil {
		cmd.Stdout = &lineWriter{stream: "stdout", emit: c.LogCallback, copy: &stdout}
		cmd.Stderr = &lineWriter{stream: "stderr", emit: c.LogCallback, copy: &stderr}
	}
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// run executes args and turns a failed exit into an *ExecError.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	stdout, stderr, err := c.exec(ctx, args...)
	if err != nil {
		return nil, newExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}
	return stdout, nil
}

// Version returns `yt-dlp --version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Update runs `yt-dlp -U`.
func (c *Client) Update(ctx context.Context) error {
	_, err := c.run(ctx, "-U")
	return err
}

// Info holds the metadata fields the fetcher reads from --dump-single-json.
type Info struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Extractor string  `json:"extractor"`
	Duration  float64 `json:"duration"`
	Ext       string  `json:"ext"`
}

// GetInfo reads metadata for url without downloading it.
func (c *Client) GetInfo(ctx context.Context, url string, extraArgs ...string) (*Info, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("ytdlp: url is required")
	}

	args := append([]string{"--dump-single-json", "--skip-download", "--no-playlist", "--no-warnings"}, extraArgs...)
	out, err := c.run(ctx, append(args, url)...)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(bytes.TrimSpace(out), &info); err != nil {
		return nil, fmt.Errorf("ytdlp: parse json: %w", err)
	}
	return &info, nil
}

// lineWriter forwards complete lines to emit and keeps a raw copy.
// yt-dlp redraws progress with \r, so \r and \n both end a line.
type lineWriter struct {
	stream  string
	emit    func(stream, line string)
	copy    *bytes.Buffer
	pending []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.copy.Write(p)
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexAny(w.pending, "\r\n")
		if i < 0 {
			return len(p), nil
		}
		line := strings.TrimSpace(string(w.pending[:i]))
		w.pending = w.pending[i+1:]
		if line != "" {
			w.emit(w.stream, line)
		}
	}
}

func writeCookies(content string) (string, error) {
	f, err := os.CreateTemp("", "ytdlp-cookies-*.txt")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func redactCookies(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i+1 < len(out); i++ {
		if out[i] == "--cookies" {
			out[i+1] = "<redacted>"
		}
	}
	return out
}
