package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Empty(t *testing.T) {
	md := New("")
	require.Equal(t, "", md.Source)
	require.Equal(t, "", strings.TrimSpace(string(md.Render())))
}

func TestMarkdown_Render_Sanitizes(t *testing.T) {
	md := New("hello <script>alert(1)</script> **world**")

	html := string(md.Render())
	require.NotContains(t, strings.ToLower(html), "<script")
	require.Contains(t, html, "world")

	// caching path
	html2 := string(md.Render())
	require.Equal(t, html, html2)
}

func TestMarkdown_PlainText(t *testing.T) {
	md := New("hello **world**")

	text := string(md.PlainText())
	require.Contains(t, text, "hello")
	require.Contains(t, text, "world")
	require.NotContains(t, text, "<strong>")
}

func TestEscape(t *testing.T) {
	require.Equal(t, `\*bold\* \_x\_ \#1`, Escape("*bold* _x_ #1"))
	require.Equal(t, "two lines", Escape("two\n  lines"))
}

func TestBuilder(t *testing.T) {
	var b Builder
	md := b.Heading(1, "Coffee *hacks*").
		Heading(9, "Segment 1").
		Field("Visual plan", "close-up <b>").
		Paragraph("  ").
		Paragraph("Morning starts here").
		Rule().
		Markdown()

	require.Equal(t, "# Coffee \\*hacks\\*\n\n"+
		"###### Segment 1\n\n"+
		"**Visual plan:** close-up \\<b\\>\n\n"+
		"Morning starts here\n\n"+
		"---\n", md.Source)

	html := string(md.Render())
	require.Contains(t, html, "Coffee *hacks*")
	require.Contains(t, html, "<strong>Visual plan:</strong>")
	require.NotContains(t, html, "<b>")
}
