package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	horizontalSpaceRe = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
	spaceAroundNLRe   = regexp.MustCompile(` *\n *`)
	excessNewlinesRe  = regexp.MustCompile(`\n{3,}`)
)

// Normalize canonicalizes extracted text: NFC composition, control
// characters removed (newlines kept), horizontal whitespace collapsed to a
// single space, at most one blank line between blocks, trimmed.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t' || r == '\r':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	s = horizontalSpaceRe.ReplaceAllString(s, " ")
	s = spaceAroundNLRe.ReplaceAllString(s, "\n")
	s = excessNewlinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// collapseSpaces flattens all whitespace, newlines included, to single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
