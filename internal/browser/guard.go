package browser

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/resilience"
)

// GuardedFetcher routes fetches through a circuit breaker. Once the wrapped
// fetcher fails FailureThreshold times in a row, fetches fail fast with a
// *NavigationError until the reset timeout passes.
type GuardedFetcher struct {
	name string
	next Fetcher
	cb   *resilience.CircuitBreaker
}

// NewGuardedFetcher wraps next. A cancelled caller context never counts as a
// failure.
func NewGuardedFetcher(name string, next Fetcher, cfg resilience.CircuitBreakerConfig) *GuardedFetcher {
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("browser: circuit state change",
			zap.String("fetcher", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &GuardedFetcher{name: name, next: next, cb: resilience.NewCircuitBreaker(cfg)}
}

// Fetch delegates to the wrapped fetcher unless the circuit is open.
func (g *GuardedFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (string, error) {
	html, err := resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) (string, error) {
		return g.next.Fetch(ctx, url, opts)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", navError(url, err)
	}
	return html, err
}

// State returns the breaker state.
func (g *GuardedFetcher) State() resilience.CircuitState {
	return g.cb.State()
}
