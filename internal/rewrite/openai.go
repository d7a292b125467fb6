package rewrite

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/resilience"
)

const (
	// DefaultCooldown is the fixed wait after a rate limit response.
	DefaultCooldown = 65 * time.Second
	// DefaultMaxAttempts is the total number of calls, first included.
	DefaultMaxAttempts = 5
)

// Completer sends one prompt to an OpenAI-compatible chat endpoint.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

type openaiCompleter struct {
	client openai.Client
}

func newOpenAICompleter(apiKey, baseURL string) Completer {
	// The SDK's own retries are disabled; rate limits follow the generator's
	// cooldown policy.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openaiCompleter{client: openai.NewClient(opts...)}
}

func (c *openaiCompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// SecondaryOption configures an OpenAIGenerator.
type SecondaryOption func(*OpenAIGenerator)

// WithCooldown sets the wait after a rate limit response.
func WithCooldown(d time.Duration) SecondaryOption {
	return func(g *OpenAIGenerator) { g.cooldown = d }
}

// WithMaxAttempts sets the total number of calls before giving up.
func WithMaxAttempts(n int) SecondaryOption {
	return func(g *OpenAIGenerator) { g.maxAttempts = n }
}

// WithSleep replaces the cooldown wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) SecondaryOption {
	return func(g *OpenAIGenerator) { g.sleep = fn }
}

// OpenAIGenerator calls an OpenAI-compatible endpoint. Rate limit responses
// are retried after a fixed cooldown; any other error is returned at once.
type OpenAIGenerator struct {
	completer   Completer
	model       string
	cooldown    time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewOpenAIGenerator creates an OpenAIGenerator.
func NewOpenAIGenerator(c Completer, model string, opts ...SecondaryOption) *OpenAIGenerator {
	g := &OpenAIGenerator{
		completer:   c,
		model:       model,
		cooldown:    DefaultCooldown,
		maxAttempts: DefaultMaxAttempts,
		sleep:       resilience.SleepContext,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Backend returns BackendOpenAI.
func (g *OpenAIGenerator) Backend() Backend { return BackendOpenAI }

// Generate sends prompt, waiting out rate limits. After maxAttempts rate
// limited calls it returns a *RateLimitExhaustedError.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := resilience.FixedRetryConfig(g.maxAttempts, g.cooldown)
	cfg.ShouldRetry = IsRateLimited
	cfg.Sleep = g.sleep
	cfg.OnRetry = func(attempt int, err error) {
		zap.L().Warn("rewrite: rate limited, cooling down",
			zap.String("backend", string(BackendOpenAI)),
			zap.Int("attempt", attempt),
			zap.Duration("cooldown", g.cooldown),
			zap.Error(err),
		)
	}

	attempts := 0
	text, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		attempts++
		return g.completer.Complete(ctx, g.model, prompt)
	})
	if err != nil {
		if IsRateLimited(err) && attempts >= g.maxAttempts {
			return "", &RateLimitExhaustedError{Attempts: attempts, Err: err}
		}
		return "", eris.Wrap(err, "rewrite: openai generate")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", eris.New("rewrite: openai returned no text")
	}
	return text, nil
}

// IsRateLimited reports whether err signals a rate limit: an HTTP 429 from
// the API, or a message naming the condition.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resilience.IsRateLimited(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "429")
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
