package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "## Intro\n\nText.", "## Intro\n\nText."},
		{"fenced", "```markdown\n## Intro\n\nText.\n```", "## Intro\n\nText."},
		{"bare fence", "```\nText.\n```", "Text."},
		{"references section", "Text.\n\n## References\n\n1. https://a.example.com", "Text."},
		{"sources with colon", "Text.\n\n### Sources:\n- x", "Text."},
		{"bold heading", "Text.\n\n## **Citations**\n- x", "Text."},
		{"word in body kept", "See the references below for more.\n\n## Next steps\n\nDo it.", "See the references below for more.\n\n## Next steps\n\nDo it."},
		{"heading about references kept", "## References in APA style\n\nHow to cite.", "## References in APA style\n\nHow to cite."},
		{"only references", "# References\n- x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}
