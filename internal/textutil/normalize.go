// Package textutil sanitizes raw message text before storage.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	multiSpaceRE    = regexp.MustCompile(`[ ]{2,}`)
	spaceBeforeNLRE = regexp.MustCompile(`[ ]+\n`)
)

// Normalize sanitizes raw message text. Steps, in order: NFC canonical
// composition; newline and tab unification; removal of control characters
// except newline and tab (format characters such as zero-width joiners are
// kept, some scripts and emoji need them to render); whitespace cleanup.
// Normalize never fails and is idempotent.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	s := norm.NFC.String(raw)

	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\t", " ")

	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	s = multiSpaceRE.ReplaceAllString(s, " ")
	s = spaceBeforeNLRE.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
