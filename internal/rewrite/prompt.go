package rewrite

import (
	"fmt"
	"strings"

	"github.com/sells-group/article-enhancer/internal/model"
)

// DefaultReferenceChars bounds how much of each reference is quoted.
const DefaultReferenceChars = 2000

// BuildPrompt assembles the single rewrite prompt. Reference content is cut
// to refChars runes.
func BuildPrompt(title, content string, refs []model.ExtractedContent, refChars int) string {
	if refChars <= 0 {
		refChars = DefaultReferenceChars
	}

	var sb strings.Builder
	sb.WriteString("You are an editor improving a blog article.\n\n")
	sb.WriteString("ORIGINAL ARTICLE\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n\n%s\n\n", title, content))

	if len(refs) > 0 {
		sb.WriteString("REFERENCE ARTICLES (top ranked pages on the same topic)\n\n")
		for i, r := range refs {
			sb.WriteString(fmt.Sprintf("Reference %d\nTitle: %s\nURL: %s\n%s\n\n", i+1, r.Title, r.URL, truncateRunes(r.Content, refChars)))
		}
	}

	sb.WriteString("INSTRUCTIONS\n")
	if len(refs) > 0 {
		sb.WriteString("- Match the structure and formatting style of the reference articles: headings, section length, lists.\n")
	}
	sb.WriteString("- Improve clarity, depth and flow of the original article.\n")
	sb.WriteString("- Keep the original's facts and meaning. Do not invent facts, numbers or quotes.\n")
	sb.WriteString("- Output the article body in Markdown only.\n")
	sb.WriteString("- Do not add any commentary about the rewrite.\n")
	sb.WriteString("- Do not include a references, sources or citations section.\n")
	return sb.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
