package scriptgen

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/pkg/retry"
)

func TestPrompt(t *testing.T) {
	p, err := Prompt("морской котик", db.StylePassport{Sentiment: "upbeat", ToneTags: []string{"energetic"}},
		[]db.Pattern{{Name: "Hook question", Description: "ignored"}, {Name: "Zoom cut"}})
	require.NoError(t, err)
	require.Contains(t, p, `"морской котик"`)
	require.Contains(t, p, `"sentiment":"upbeat"`)
	require.Contains(t, p, `["Hook question","Zoom cut"]`)
	require.NotContains(t, p, "ignored")
}

func TestClean(t *testing.T) {
	got := Clean([]SegmentDraft{
		{Timeframe: " 0-3s ", Visual: "close-up", Audio: "Hi"},
		{},
		{Timeframe: "  ", Visual: "", Audio: " "},
		{Audio: "only narration"},
	})
	require.Equal(t, []SegmentDraft{
		{Timeframe: "0-3s", Visual: "close-up", Audio: "Hi"},
		{Audio: "only narration"},
	}, got)
}

func TestDecodeSegments(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []SegmentDraft
	}{
		{name: "bare array", reply: `[{"timeframe":"0-3s","visual":"v","audio":"a"}]`, want: []SegmentDraft{{Timeframe: "0-3s", Visual: "v", Audio: "a"}}},
		{name: "wrapped", reply: `{"segments":[{"timeframe":"1","visual":"v","audio":"a"}]}`, want: []SegmentDraft{{Timeframe: "1", Visual: "v", Audio: "a"}}},
		{name: "fenced", reply: "```json\n{\"segments\":[{\"timeframe\":\"2\"}]}\n```", want: []SegmentDraft{{Timeframe: "2"}}},
		{name: "prose around", reply: `Sure! [{"timeframe":"3"}] hope it helps`, want: []SegmentDraft{{Timeframe: "3"}}},
		{name: "garbage", reply: `no json here`, want: nil},
		{name: "empty", reply: ``, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, decodeSegments(tt.reply))
		})
	}
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var req struct {
		Model          string `json:"model"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		content, _ := json.Marshal(`{"segments":[{"timeframe":"0-5s","visual":"hero shot","audio":"Hello"},{"timeframe":"","visual":"","audio":""}]}`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":`+string(content)+`},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	noRetry := retry.Policy{}
	g := NewOpenAIGenerator(OpenAIOptions{APIKey: "key", BaseURL: srv.URL + "/", Model: "deepseek/deepseek-chat", Retry: &noRetry})
	got, err := g.Generate(context.Background(), "coffee", db.StylePassport{}, nil)
	require.NoError(t, err)
	require.Equal(t, []SegmentDraft{{Timeframe: "0-5s", Visual: "hero shot", Audio: "Hello"}}, got)

	require.Equal(t, "deepseek/deepseek-chat", req.Model)
	require.Equal(t, "json_object", req.ResponseFormat.Type)
	require.Len(t, req.Messages, 2)
	require.Equal(t, "system", req.Messages[0].Role)
	require.Contains(t, req.Messages[1].Content, `"coffee"`)
}

func TestOpenAIGenerator_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"auth"}}`)
	}))
	defer srv.Close()

	noRetry := retry.Policy{}
	g := NewOpenAIGenerator(OpenAIOptions{APIKey: "key", BaseURL: srv.URL, Model: "m", Retry: &noRetry})
	_, err := g.Generate(context.Background(), "coffee", db.StylePassport{}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "openai: generate script")
}
