// package language resolves the language the providers are asked to write in.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Name turns a BCP 47 tag such as "ru" or "pt-BR" into its English name.
// Anything that does not parse as a tag, such as "Russian", is returned
// trimmed and unchanged.
func Name(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	tag, err := language.Parse(s)
	if err != nil || tag == language.Und {
		return s
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return s
	}
	return name
}

// Tag parses s as a BCP 47 tag. Names like "Russian" give language.Und.
func Tag(s string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return language.Und
	}
	return tag
}
