// Package locale maps free-form locale hints onto the languages the service
// writes output in.
package locale

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var (
	supported = []language.Tag{language.English, language.Indonesian}
	matcher   = language.NewMatcher(supported)
)

// Default is the code used when nothing matches.
const Default = "en"

// Tag returns the supported tag closest to raw. raw may be a bare code, a
// BCP 47 tag, or an Accept-Language header value.
func Tag(raw string) language.Tag {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return supported[0]
	}
	_, index := language.MatchStrings(matcher, raw)
	return supported[index]
}

// Normalize returns the two-letter code of the closest supported language.
func Normalize(raw string) string {
	base, _ := Tag(raw).Base()
	return base.String()
}

// Supported reports whether raw names a supported language outright rather
// than falling back to the default.
func Supported(raw string) bool {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	_, _, confidence := matcher.Match(tag)
	return confidence >= language.High
}

// DisplayName returns the English name of the language, e.g. "Indonesian".
func DisplayName(raw string) string {
	return display.English.Languages().Name(Tag(raw))
}

// Title title-cases text using the casing rules of the locale.
func Title(raw, text string) string {
	return cases.Title(Tag(raw)).String(text)
}
