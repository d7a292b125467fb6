package rewrite

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	fenceRe          = regexp.MustCompile("(?s)^```(?:markdown|md)?[ \t]*\n(.*?)\n?```$")
	referenceTitleRe = regexp.MustCompile(`(?i)^(references?|sources?|citations?|further reading)\s*:?$`)
)

// Clean strips a wrapping code fence and cuts a trailing references section
// from generated markdown.
func Clean(md string) string {
	md = strings.TrimSpace(md)
	if m := fenceRe.FindStringSubmatch(md); m != nil {
		md = strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(md[:referencesOffset(md)])
}

// referencesOffset returns the byte offset of the first top-level heading
// titled like a references section, or len(md) when there is none.
func referencesOffset(md string) int {
	source := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		title := strings.Trim(strings.TrimSpace(string(h.Lines().Value(source))), "*_ ")
		if !referenceTitleRe.MatchString(title) {
			continue
		}
		start := h.Lines().At(0).Start
		if i := strings.LastIndexByte(md[:start], '\n'); i >= 0 {
			return i + 1
		}
		return 0
	}
	return len(md)
}
