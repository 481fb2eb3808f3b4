package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/contentdna/internal/apperr"
)

func TestParseExportFormat(t *testing.T) {
	for in, want := range map[string]ExportFormat{"": ExportHTML, "HTML": ExportHTML, "md": ExportMarkdown, "markdown": ExportMarkdown} {
		got, err := ParseExportFormat(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
	_, err := ParseExportFormat("pdf")
	require.ErrorIs(t, err, apperr.ErrInvalidOption)
}

func TestExportScript_Markdown(t *testing.T) {
	f := newFixture()
	s := createScript(t, f)

	doc, err := f.o.ExportScript(context.Background(), s.ID, ExportMarkdown)
	require.NoError(t, err)
	require.Equal(t, "text/markdown; charset=utf-8", doc.ContentType)
	require.Equal(t, "script_Morning coffee hacks.md", doc.Filename)

	body := string(doc.Body)
	require.True(t, strings.HasPrefix(body, "# Video script\n"))
	require.Contains(t, body, "**Topic:** Morning coffee hacks")
	require.Contains(t, body, "## Segment 1 • 0-3s")
	require.Contains(t, body, "## Segment 3 • 8-12s")
	require.Less(t, strings.Index(body, "Segment 1"), strings.Index(body, "Segment 2"))
	require.Contains(t, body, "### Visual plan\n\nclose-up of a mug")
	require.Contains(t, body, "### Narration\n\nCoffee first.")
}

func TestExportScript_HTMLIsSanitized(t *testing.T) {
	f := newFixture()
	f.scripts.drafts[0].Visual = `<script>alert("x")</script> mug`
	s := createScript(t, f)

	doc, err := f.o.ExportScript(context.Background(), s.ID, ExportHTML)
	require.NoError(t, err)
	require.Equal(t, "text/html; charset=utf-8", doc.ContentType)
	require.True(t, strings.HasSuffix(doc.Filename, ".html"))

	body := string(doc.Body)
	require.Contains(t, body, "<title>Morning coffee hacks</title>")
	require.Contains(t, body, "<h1")
	require.NotContains(t, body, "<script>")
	require.Contains(t, body, "mug")
}

func TestExportScript_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.o.ExportScript(context.Background(), uuid.New(), ExportHTML)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
