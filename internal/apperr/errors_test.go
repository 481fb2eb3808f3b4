package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProviderError_MessageAndKind(t *testing.T) {
	err := &ProviderError{Provider: "kie", Op: "create task", StatusCode: 500, Message: "internal"}
	require.Equal(t, "kie: create task: HTTP 500: internal", err.Error())
	require.ErrorIs(t, err, ErrProvider)

	wrapped := fmt.Errorf("submit: %w", err)
	var pe *ProviderError
	require.ErrorAs(t, wrapped, &pe)
	require.Equal(t, 500, pe.StatusCode)
}

func TestWrap_KeepsBothChains(t *testing.T) {
	cause := errors.New("yt-dlp exited 1")
	err := Wrap(ErrDownloadFailed, cause)
	require.ErrorIs(t, err, ErrDownloadFailed)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "download failed: yt-dlp exited 1", err.Error())

	require.Nil(t, Wrap(ErrDownloadFailed, nil))
	require.Same(t, err, Wrap(ErrDownloadFailed, err))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("script: %w", ErrNotFound), http.StatusNotFound},
		{Wrap(ErrDownloadFailed, errors.New("x")), http.StatusBadRequest},
		{ErrUnsupportedSource, http.StatusBadRequest},
		{ErrInvalidOption, http.StatusBadRequest},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrAnalysisEmpty, http.StatusInternalServerError},
		{&ProviderError{Provider: "gemini"}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, HTTPStatus(tc.err), "%v", tc.err)
	}
}
