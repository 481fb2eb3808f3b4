package ytdlp

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineWriter_EmitsCompleteLines(t *testing.T) {
	var raw bytes.Buffer
	var lines []string
	w := &lineWriter{
		stream: "stderr",
		emit:   func(stream, line string) { lines = append(lines, stream+":"+line) },
		copy:   &raw,
	}

	_, err := w.Write([]byte("[download]  10%\r[download]  55%\r\nERROR: boom"))
	require.NoError(t, err)
	require.Equal(t, []string{"stderr:[download]  10%", "stderr:[download]  55%"}, lines)

	_, err = w.Write([]byte("\n"))
	require.NoError(t, err)
	require.Equal(t, "stderr:ERROR: boom", lines[len(lines)-1])
	require.Equal(t, "[download]  10%\r[download]  55%\r\nERROR: boom\n", raw.String())
}

func TestWriteCookies(t *testing.T) {
	path, err := writeCookies("# Netscape HTTP Cookie File\n")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "# Netscape HTTP Cookie File\n", string(b))
}

func TestRedactCookies(t *testing.T) {
	in := []string{"--newline", "--cookies", "/tmp/c.txt", "https://youtu.be/x"}
	out := redactCookies(in)
	require.Equal(t, []string{"--newline", "--cookies", "<redacted>", "https://youtu.be/x"}, out)
	require.Equal(t, "/tmp/c.txt", in[2])
}

func TestExecError(t *testing.T) {
	tests := []struct {
		stderr string
		reason Reason
	}{
		{"ERROR: [youtube] abc: Sign in to confirm you're not a bot", ReasonLoginRequired},
		{"ERROR: [youtube] abc: Private video. Sign in if you've been granted access", ReasonPrivate},
		{"ERROR: [instagram] xyz: This video is private", ReasonPrivate},
		{"ERROR: Unsupported URL: https://example.com", ReasonUnsupported},
		{"ERROR: unable to download webpage: HTTP Error 429: Too Many Requests", ReasonRateLimited},
		{"ERROR: [youtube] abc: Video unavailable", ReasonUnavailable},
		{"ERROR: something else", ReasonUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			e := newExecError("yt-dlp", []string{"-U"}, nil, []byte("WARNING: x\n"+tt.stderr+"\n"), errors.New("exit status 1"))
			require.Equal(t, tt.reason, e.Reason())
			require.Contains(t, e.Error(), tt.stderr)
		})
	}
}

func TestExecError_FallsBackToCause(t *testing.T) {
	e := newExecError("yt-dlp", nil, []byte(" out "), nil, errors.New("executable file not found"))
	require.Equal(t, "out", e.Stdout)
	require.Equal(t, "yt-dlp failed: executable file not found", e.Error())
	require.ErrorContains(t, errors.Unwrap(e), "not found")
}
