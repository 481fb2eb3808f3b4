package ytdlp

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Reason is a coarse classification of a yt-dlp failure.
type Reason string

const (
	ReasonUnknown       Reason = "unknown"
	ReasonLoginRequired Reason = "login_required"
	ReasonPrivate       Reason = "private"
	ReasonUnavailable   Reason = "unavailable"
	ReasonUnsupported   Reason = "unsupported_url"
	ReasonRateLimited   Reason = "rate_limited"
)

// Matched in order against lower-cased stderr.
var reasonMarkers = []struct {
	marker string
	reason Reason
}{
	{"sign in to confirm", ReasonLoginRequired},
	{"login required", ReasonLoginRequired},
	{"requested content is not available", ReasonLoginRequired},
	{"private video", ReasonPrivate},
	{"this video is private", ReasonPrivate},
	{"unsupported url", ReasonUnsupported},
	{"http error 429", ReasonRateLimited},
	{"video unavailable", ReasonUnavailable},
	{"has been removed", ReasonUnavailable},
}

// ExecError is a failed yt-dlp invocation.
type ExecError struct {
	Cmd      string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error
}

func newExecError(cmd string, args []string, stdout, stderr []byte, cause error) *ExecError {
	code := 0
	var ee *exec.ExitError
	if errors.As(cause, &ee) {
		code = ee.ExitCode()
	}
	return &ExecError{
		Cmd:      cmd,
		Args:     args,
		ExitCode: code,
		Stdout:   strings.TrimSpace(string(stdout)),
		Stderr:   strings.TrimSpace(string(stderr)),
		Cause:    cause,
	}
}

func (e *ExecError) Error() string {
	detail := lastLine(e.Stderr)
	if detail == "" && e.Cause != nil {
		detail = e.Cause.Error()
	}
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s exited with status %d: %s", e.Cmd, e.ExitCode, detail)
	}
	return fmt.Sprintf("%s failed: %s", e.Cmd, detail)
}

func (e *ExecError) Unwrap() error { return e.Cause }

// Reason classifies the failure from stderr.
func (e *ExecError) Reason() Reason {
	s := strings.ToLower(e.Stderr)
	for _, m := range reasonMarkers {
		if strings.Contains(s, m.marker) {
			return m.reason
		}
	}
	return ReasonUnknown
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
