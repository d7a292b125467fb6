package rewrite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/article-enhancer/internal/config"
	"github.com/sells-group/article-enhancer/internal/model"
	"github.com/sells-group/article-enhancer/pkg/anthropic"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *mockGenerator) Backend() Backend { return "mock" }

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func TestRewrite_WithReferences(t *testing.T) {
	refs := []model.ExtractedContent{
		{Title: "Ref A", URL: "https://a.example.com", Content: strings.Repeat("a", 2500)},
		{Title: "Ref B", URL: "https://b.example.com", Content: "short b"},
	}
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Title: Chatbots 101") &&
			strings.Contains(p, "URL: https://a.example.com") &&
			strings.Contains(p, strings.Repeat("a", 2000)) &&
			!strings.Contains(p, strings.Repeat("a", 2001)) &&
			strings.Index(p, "Ref A") < strings.Index(p, "Ref B")
	})).Return("## Intro\n\nBetter text.\n\n## References\n\n- https://made-up.example.com", nil)

	got, err := New(gen).Rewrite(context.Background(), "Chatbots 101", "Original body.", refs)
	require.NoError(t, err)
	assert.Equal(t, "## Intro\n\nBetter text.", got.UpdatedContent)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, got.References)
	gen.AssertExpectations(t)
}

func TestRewrite_NoReferences(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return !strings.Contains(p, "REFERENCE ARTICLES")
	})).Return("Improved.", nil)

	got, err := New(gen).Rewrite(context.Background(), "T", "C", nil)
	require.NoError(t, err)
	assert.Equal(t, "Improved.", got.UpdatedContent)
	assert.NotNil(t, got.References)
	assert.Empty(t, got.References)
}

func TestRewrite_GeneratorError(t *testing.T) {
	gen := &mockGenerator{}
	rle := &RateLimitExhaustedError{Attempts: 5, Err: errors.New("429")}
	gen.On("Generate", mock.Anything, mock.Anything).Return("", rle)

	_, err := New(gen).Rewrite(context.Background(), "T", "C", nil)
	assert.ErrorIs(t, err, rle)
}

func TestRewrite_EmptyAfterCleanup(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("## Sources\n\n- x", nil)

	_, err := New(gen).Rewrite(context.Background(), "T", "C", nil)
	assert.Error(t, err)
}

func TestRewrite_NotConfigured(t *testing.T) {
	_, err := New(nil).Rewrite(context.Background(), "T", "C", nil)
	var ce *ConfigurationError
	assert.ErrorAs(t, err, &ce)

	r := FromConfig(&config.Config{})
	require.Error(t, r.Err())
	_, err = r.Rewrite(context.Background(), "T", "C", nil)
	assert.ErrorAs(t, err, &ce)
}

func TestNewGenerator_Selection(t *testing.T) {
	gen, err := NewGenerator(config.AnthropicConfig{Key: "sk-ant", Model: "m"}, config.OpenAIConfig{Key: "sk-oai"})
	require.NoError(t, err)
	assert.Equal(t, BackendAnthropic, gen.Backend())

	gen, err = NewGenerator(config.AnthropicConfig{}, config.OpenAIConfig{Key: "sk-oai", Model: "m", CooldownSecs: 3, MaxAttempts: 2})
	require.NoError(t, err)
	require.Equal(t, BackendOpenAI, gen.Backend())
	oai := gen.(*OpenAIGenerator)
	assert.Equal(t, 2, oai.maxAttempts)
	assert.Equal(t, secs(3), oai.cooldown)

	_, err = NewGenerator(config.AnthropicConfig{}, config.OpenAIConfig{})
	var ce *ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestAnthropicGenerator(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, anthropic.MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 4096,
		Messages:  []anthropic.Message{{Role: "user", Content: "prompt"}},
	}).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "\n# Enhanced\n"}},
		Usage:   anthropic.TokenUsage{InputTokens: 10, OutputTokens: 20},
	}, nil)

	got, err := NewAnthropicGenerator(client, "claude-sonnet-4-5-20250929", 0).Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "# Enhanced", got)
	client.AssertExpectations(t)
}

func TestAnthropicGenerator_Errors(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{StopReason: "max_tokens"}, nil).Once()

	g := NewAnthropicGenerator(client, "m", 10)
	_, err := g.Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "overloaded")
	_, err = g.Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "max_tokens")
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Title", "Body", []model.ExtractedContent{{Title: "R", URL: "https://r.example.com", Content: "ééééé"}}, 3)
	assert.Contains(t, p, "Title: Title\n\nBody")
	assert.Contains(t, p, "ééé\n")
	assert.NotContains(t, p, "éééé")
	assert.Contains(t, p, "Markdown only")
	assert.Contains(t, p, "Do not include a references")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, 2000, utf8.RuneCountInString(truncateRunes(strings.Repeat("ü", 2500), 2000)))
}
