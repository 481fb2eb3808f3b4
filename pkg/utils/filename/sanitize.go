// Package filename provides utilities for sanitizing strings into safe filenames.
package filename

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLen is the character cap applied when Sanitize is called with maxLen <= 0.
const DefaultMaxLen = 200

// invalidCharsRe matches characters not safe for filenames across all major OSes.
var invalidCharsRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// Sanitize removes characters that are illegal in filenames, NFC-normalizes
// the rest, truncates to maxLen characters and trims surrounding whitespace.
// Titles keep their spaces and punctuation.
func Sanitize(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	s := norm.NFC.String(name)
	s = invalidCharsRe.ReplaceAllString(s, "")

	if utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen])
	}

	return strings.TrimSpace(s)
}

// WithExt sanitizes base and appends ext, using fallback when base sanitizes to empty.
func WithExt(base, ext, fallback string) string {
	b := Sanitize(base, DefaultMaxLen)
	if b == "" {
		b = fallback
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return b + ext
}
