// Package jsonrecover decodes JSON out of free-form model replies.
//
// Replies are tried as-is (after stripping markdown code fences), then by the
// first {...} or [...] span found in the text, and finally replaced by the
// caller's fallback value.
package jsonrecover

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Stage reports which strategy produced the decoded value.
type Stage string

const (
	StageDirect   Stage = "direct"
	StageSpan     Stage = "span"
	StageFallback Stage = "fallback"
)

var (
	objectSpanRe = regexp.MustCompile(`\{[\s\S]*\}`)
	arraySpanRe  = regexp.MustCompile(`\[[\s\S]*\]`)
	fenceOpenRe  = regexp.MustCompile("(?i)```(?:json)?[ \t]*\r?\n?")
)

// StripFences removes markdown code fence markers and surrounding whitespace.
func StripFences(text string) string {
	s := fenceOpenRe.ReplaceAllString(text, "")
	return strings.TrimSpace(s)
}

// Decode parses text into a T. It never fails: when nothing in text decodes
// into T the fallback is returned with StageFallback.
func Decode[T any](text string, fallback T) (T, Stage) {
	cleaned := StripFences(text)
	if v, ok := unmarshal[T](cleaned); ok {
		return v, StageDirect
	}

	if span := firstSpan(cleaned); span != "" {
		if v, ok := unmarshal[T](span); ok {
			return v, StageSpan
		}
	}

	return fallback, StageFallback
}

// firstSpan returns the greedy {...} or [...] match that starts earliest.
func firstSpan(s string) string {
	obj := objectSpanRe.FindStringIndex(s)
	arr := arraySpanRe.FindStringIndex(s)
	switch {
	case obj == nil && arr == nil:
		return ""
	case obj == nil:
		return s[arr[0]:arr[1]]
	case arr == nil:
		return s[obj[0]:obj[1]]
	case arr[0] < obj[0]:
		return s[arr[0]:arr[1]]
	default:
		return s[obj[0]:obj[1]]
	}
}

func unmarshal[T any](s string) (T, bool) {
	var v T
	if s == "" {
		return v, false
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}
