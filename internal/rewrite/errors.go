package rewrite

import "fmt"

// ConfigurationError means no rewrite backend is configured.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "rewrite: not configured: " + e.Reason
}

// RateLimitExhaustedError means the secondary backend kept returning rate
// limit responses until its attempt budget ran out.
type RateLimitExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RateLimitExhaustedError) Error() string {
	return fmt.Sprintf("rewrite: rate limited after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RateLimitExhaustedError) Unwrap() error {
	return e.Err
}
