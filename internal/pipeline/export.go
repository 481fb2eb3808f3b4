package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/pkg/utils/filename"
	"thirdcoast.systems/contentdna/pkg/utils/markdown"
)

type ExportFormat string

const (
	ExportMarkdown ExportFormat = "md"
	ExportHTML     ExportFormat = "html"
)

// ParseExportFormat accepts md, markdown and html. Empty means html.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return ExportHTML, nil
	case "md", "markdown":
		return ExportMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", apperr.ErrInvalidOption, s)
	}
}

// Document is a rendered script export.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

var htmlPage = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; line-height: 1.5; }
h2 { border-bottom: 1px solid #ddd; padding-bottom: .25rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// ScriptMarkdown builds the export document of a script.
func ScriptMarkdown(s *ScriptView) *markdown.Markdown {
	var b markdown.Builder
	b.Heading(1, "Video script").
		Field("Topic", s.Topic).
		Field("Created", s.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	for i, seg := range s.Segments {
		b.Rule().
			Heading(2, fmt.Sprintf("Segment %d • %s", i+1, seg.Timeframe)).
			Heading(3, "Visual plan").
			Paragraph(seg.Visual).
			Heading(3, "Narration").
			Paragraph(seg.Audio)
	}
	return b.Markdown()
}

// ExportScript renders a script as markdown or sanitized HTML.
func (o *Orchestrator) ExportScript(ctx context.Context, id uuid.UUID, format ExportFormat) (*Document, error) {
	s, err := o.GetScript(ctx, id)
	if err != nil {
		return nil, err
	}
	md := ScriptMarkdown(s)
	base := filename.Sanitize("script_"+s.Topic, 80)

	switch format {
	case ExportMarkdown:
		return &Document{
			Filename:    filename.WithExt(base, ".md", "script"),
			ContentType: "text/markdown; charset=utf-8",
			Body:        []byte(md.Source),
		}, nil
	case ExportHTML:
		var buf bytes.Buffer
		err := htmlPage.Execute(&buf, map[string]any{
			"Title": s.Topic,
			"Body":  md.Render(),
		})
		if err != nil {
			return nil, fmt.Errorf("render export: %w", err)
		}
		return &Document{
			Filename:    filename.WithExt(base, ".html", "script"),
			ContentType: "text/html; charset=utf-8",
			Body:        buf.Bytes(),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", apperr.ErrInvalidOption, format)
	}
}
