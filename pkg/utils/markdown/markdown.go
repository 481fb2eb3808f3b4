// Package markdown builds markdown documents and renders them to sanitized HTML.
package markdown

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// Markdown wraps markdown source code and provides methods to render it.
type Markdown struct {
	// Source is the markdown source code.
	Source string
	// renderedHTML caches the sanitized HTML rendered from Source.
	renderedHTML *template.HTML
	// renderedText caches the plain text rendered from Source.
	renderedText *template.HTML
}

var (
	bfRenderer = blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.Safelink | blackfriday.NofollowLinks | blackfriday.HrefTargetBlank | blackfriday.Smartypants | blackfriday.SmartypantsFractions | blackfriday.SmartypantsDashes | blackfriday.SmartypantsLatexDashes | blackfriday.SmartypantsAngledQuotes | blackfriday.SmartypantsQuotesNBSP,
	})
	bfExtensions = blackfriday.NoIntraEmphasis | blackfriday.Tables | blackfriday.FencedCode | blackfriday.Autolink | blackfriday.Strikethrough | blackfriday.SpaceHeadings | blackfriday.NoEmptyLineBeforeBlock | blackfriday.HeadingIDs | blackfriday.AutoHeadingIDs | blackfriday.DefinitionLists
	policy       = bluemonday.UGCPolicy()
)

func New(source string) *Markdown {
	return &Markdown{Source: source}
}

// Render converts the Markdown Source into sanitized HTML.
func (m *Markdown) Render() template.HTML {
	if m.renderedHTML != nil {
		return *m.renderedHTML
	}

	unsafe := blackfriday.Run([]byte(m.Source),
		blackfriday.WithRenderer(bfRenderer),
		blackfriday.WithExtensions(bfExtensions),
	)
	safe := policy.SanitizeBytes(unsafe)
	html := template.HTML(bytes.TrimSpace(safe))
	m.renderedHTML = &html
	return html
}

func (m *Markdown) PlainText() template.HTML {
	if m.renderedText != nil {
		return *m.renderedText
	}

	// Use bluemonday to remove all tags from the output HTML.
	unsafe := blackfriday.Run([]byte(m.Source),
		blackfriday.WithRenderer(bfRenderer),
		blackfriday.WithExtensions(bfExtensions),
	)

	safe := bytes.TrimSpace(bluemonday.StrictPolicy().SanitizeBytes(unsafe))
	h := template.HTML(safe)
	m.renderedText = &h

	return *m.renderedText
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
	"<", `\<`,
	">", `\>`,
	"|", `\|`,
)

// Escape makes user text safe to splice into markdown inline content.
// Newlines are folded into spaces.
func Escape(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return escaper.Replace(s)
}

// Builder accumulates a markdown document. All text passed in is escaped.
type Builder struct {
	b strings.Builder
}

func (d *Builder) Heading(level int, text string) *Builder {
	level = min(max(level, 1), 6)
	fmt.Fprintf(&d.b, "%s %s\n\n", strings.Repeat("#", level), Escape(text))
	return d
}

func (d *Builder) Paragraph(text string) *Builder {
	if t := Escape(text); t != "" {
		d.b.WriteString(t)
		d.b.WriteString("\n\n")
	}
	return d
}

// Field writes a bold label followed by its value.
func (d *Builder) Field(label, value string) *Builder {
	fmt.Fprintf(&d.b, "**%s:** %s\n\n", Escape(label), Escape(value))
	return d
}

func (d *Builder) Rule() *Builder {
	d.b.WriteString("---\n\n")
	return d
}

func (d *Builder) Markdown() *Markdown {
	return New(strings.TrimSpace(d.b.String()) + "\n")
}
