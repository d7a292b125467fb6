package rewrite

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/article-enhancer/internal/config"
	"github.com/sells-group/article-enhancer/pkg/anthropic"
)

// Backend names a rewrite backend.
type Backend string

const (
	// BackendAnthropic is the primary backend.
	BackendAnthropic Backend = "anthropic"
	// BackendOpenAI is the secondary backend.
	BackendOpenAI Backend = "openai"
)

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Backend() Backend
}

// NewGenerator resolves the backend once: Anthropic when its key is set,
// otherwise OpenAI when its key is set, otherwise a *ConfigurationError.
func NewGenerator(ac config.AnthropicConfig, oc config.OpenAIConfig) (Generator, error) {
	switch {
	case ac.Key != "":
		return NewAnthropicGenerator(anthropic.NewClient(ac.Key), ac.Model, ac.MaxTokens), nil
	case oc.Key != "":
		opts := []SecondaryOption{}
		if oc.CooldownSecs > 0 {
			opts = append(opts, WithCooldown(secs(oc.CooldownSecs)))
		}
		if oc.MaxAttempts > 0 {
			opts = append(opts, WithMaxAttempts(oc.MaxAttempts))
		}
		return NewOpenAIGenerator(newOpenAICompleter(oc.Key, oc.BaseURL), oc.Model, opts...), nil
	default:
		return nil, &ConfigurationError{Reason: "set ANTHROPIC_API_KEY or OPENAI_API_KEY"}
	}
}

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicGenerator creates an AnthropicGenerator.
func NewAnthropicGenerator(client anthropic.Client, model string, maxTokens int64) *AnthropicGenerator {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicGenerator{client: client, model: model, maxTokens: maxTokens}
}

// Backend returns BackendAnthropic.
func (g *AnthropicGenerator) Backend() Backend { return BackendAnthropic }

// Generate sends prompt as a single user message.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", eris.Wrap(err, "rewrite: anthropic generate")
	}
	resp.Usage.LogCost(g.model, "rewrite")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.Errorf("rewrite: anthropic returned no text (stop_reason=%s)", resp.StopReason)
	}
	return text, nil
}
