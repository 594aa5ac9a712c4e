// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package naming normalizes the user supplied names and urls of declared elements.
package naming

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var separatorLetter = regexp.MustCompile(`[-_][a-zA-Z]`)

// CamelCase upper cases any letter following a '-' or '_' separator,
// drops the separator and lower cases the first character.
func CamelCase(s string) string {
	s = separatorLetter.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ToUpper(m[1:])
	})
	if s == "" {
		return s
	}

	r := []rune(s)
	if isWord(r[0]) {
		r[0] = unicode.ToLower(r[0])
	}
	return string(r)
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// CleanURL trims surrounding whitespace and slashes.
func CleanURL(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})
}

var (
	slugUnwanted = regexp.MustCompile(`[^a-z0-9 ]`)
	slugSpaces   = regexp.MustCompile(`\s+`)
)

// Slugify strips diacritics, lower cases and joins the remaining
// alphanumeric words with sep.
func Slugify(s, sep string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	stripped = strings.TrimSpace(strings.ToLower(stripped))
	stripped = slugUnwanted.ReplaceAllString(stripped, "")
	return slugSpaces.ReplaceAllString(stripped, sep)
}
