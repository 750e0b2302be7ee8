package utils

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// StripTags removes every tag from input and returns plain, unescaped text.
func StripTags(input string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(strings.TrimSpace(input))))
}

// SanitizeText strips every tag from input so it can be embedded in generated markup.
// Quotes are escaped as well because captions end up inside attribute values.
func SanitizeText(input string) string {
	return html.EscapeString(StripTags(input))
}

// TruncateRunes cuts s to at most n characters without splitting a rune.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
