package analysis

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/genai"
)

// Client wraps a Generator with the retry policy: per-attempt timeout,
// exponential backoff, and a transient/fatal split. Fatal API errors fail
// immediately; transient ones are retried up to maxRetries times.
//
// The prompt and the credential never reach the log.
type Client struct {
	generator      Generator
	maxRetries     int
	baseDelay      time.Duration
	attemptTimeout time.Duration
	onRetry        func(context.Context)
	logger         *slog.Logger
}

// NewClient creates an analysis client around the given generator.
func NewClient(generator Generator, maxRetries int, baseDelay, attemptTimeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		generator:      generator,
		maxRetries:     maxRetries,
		baseDelay:      baseDelay,
		attemptTimeout: attemptTimeout,
		logger:         logger.With(slog.String("component", "analysis_client")),
	}
}

// OnRetry registers fn to run once per retry attempt, before the backoff
// sleep. The caller uses it to feed the retry counter without coupling the
// client to the metrics layer.
func (c *Client) OnRetry(fn func(context.Context)) {
	c.onRetry = fn
}

// Analyze runs the prompt through the generator, retrying transient
// failures. On persistent transient failure it performs exactly
// 1 + maxRetries attempts; on a fatal failure it performs exactly one.
func (c *Client) Analyze(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if c.onRetry != nil {
				c.onRetry(ctx)
			}
			delay := c.baseDelay << (attempt - 1)
			c.logger.InfoContext(ctx, "retrying analysis",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", delay))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		text, err := c.generator.GenerateText(attemptCtx, prompt)
		cancel()

		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if !isTransient(err) {
			c.logger.WarnContext(ctx, "analysis failed with fatal error",
				slog.String("error", err.Error()))
			return "", err
		}

		c.logger.WarnContext(ctx, "analysis attempt failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}

	c.logger.ErrorContext(ctx, "analysis exhausted retries",
		slog.Int("attempts", c.maxRetries+1),
		slog.String("error", lastErr.Error()))
	return "", lastErr
}

// isTransient reports whether the failure is worth retrying. Network
// errors, per-attempt deadline expiry, and 408/429/5xx API codes are
// transient; 4xx API codes such as 400/401/403 are fatal.
func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 408 || apiErr.Code == 429:
			return true
		case apiErr.Code >= 500:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Unrecognized failures are treated as transient so a flaky upstream
	// still gets its retries.
	return true
}
