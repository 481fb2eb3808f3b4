// Package apperr defines the error kinds shared by the pipeline components
// and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrDownloadFailed    = errors.New("download failed")
	ErrProvider          = errors.New("provider error")
	ErrAnalysisEmpty     = errors.New("analysis returned no transcript and no tone tags")
	ErrInvalidOption     = errors.New("invalid option")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
)

// ProviderError describes a failed call to an external generation provider.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// Wrap tags err with kind while keeping the original message readable.
// It returns nil when err is nil.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, err: err}
}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string   { return e.kind.Error() + ": " + e.err.Error() }
func (e *kindError) Unwrap() []error { return []error{e.kind, e.err} }

// HTTPStatus maps an error onto the status code the REST surface reports.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnsupportedSource),
		errors.Is(err, ErrDownloadFailed),
		errors.Is(err, ErrInvalidOption),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
