package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"findecoder/internal/shared/testutil"
)

// stubGenerator returns scripted results and counts attempts.
type stubGenerator struct {
	attempts int
	results  []func() (string, error)
}

func (s *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	idx := s.attempts
	s.attempts++
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx]()
}

func succeed(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

func newTestClient(gen Generator, maxRetries int) *Client {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewClient(gen, maxRetries, time.Millisecond, time.Second, logger)
}

func TestAnalyze_SucceedsFirstAttempt(t *testing.T) {
	gen := &stubGenerator{results: []func() (string, error){succeed("insights")}}
	client := newTestClient(gen, 3)

	text, err := client.Analyze(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "insights", text)
	assert.Equal(t, 1, gen.attempts)
}

func TestAnalyze_RetriesTransientThenSucceeds(t *testing.T) {
	gen := &stubGenerator{results: []func() (string, error){
		fail(genai.APIError{Code: 503, Message: "overloaded"}),
		fail(genai.APIError{Code: 429, Message: "rate limited"}),
		succeed("eventually"),
	}}
	client := newTestClient(gen, 3)

	text, err := client.Analyze(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "eventually", text)
	assert.Equal(t, 3, gen.attempts)
}

func TestAnalyze_RetryHookFiresPerRetry(t *testing.T) {
	gen := &stubGenerator{results: []func() (string, error){
		fail(genai.APIError{Code: 503, Message: "overloaded"}),
		fail(genai.APIError{Code: 503, Message: "overloaded"}),
		succeed("eventually"),
	}}
	client := newTestClient(gen, 3)

	var retries int
	client.OnRetry(func(context.Context) { retries++ })

	_, err := client.Analyze(context.Background(), "prompt")
	require.NoError(t, err)

	// Two failed attempts mean exactly two retries.
	assert.Equal(t, 2, retries)
}

func TestAnalyze_ExhaustsRetriesOnPersistentTransient(t *testing.T) {
	upstream := genai.APIError{Code: 500, Message: "internal"}
	gen := &stubGenerator{results: []func() (string, error){fail(upstream)}}
	client := newTestClient(gen, 3)

	_, err := client.Analyze(context.Background(), "prompt")
	require.Error(t, err)

	// Exactly 1 + maxRetries attempts.
	assert.Equal(t, 4, gen.attempts)
}

func TestAnalyze_FatalFailsImmediately(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"bad request", 400},
		{"unauthorized", 401},
		{"forbidden", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{results: []func() (string, error){
				fail(genai.APIError{Code: tt.code, Message: "nope"}),
			}}
			client := newTestClient(gen, 3)

			_, err := client.Analyze(context.Background(), "prompt")
			require.Error(t, err)
			assert.Equal(t, 1, gen.attempts)
		})
	}
}

func TestAnalyze_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	gen := &stubGenerator{results: []func() (string, error){
		func() (string, error) {
			cancel()
			return "", genai.APIError{Code: 503, Message: "overloaded"}
		},
	}}
	client := newTestClient(gen, 5)

	_, err := client.Analyze(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.attempts)
}

func TestAnalyze_DeadlineExpiryIsTransient(t *testing.T) {
	gen := &stubGenerator{results: []func() (string, error){
		fail(context.DeadlineExceeded),
		succeed("after retry"),
	}}
	client := newTestClient(gen, 2)

	text, err := client.Analyze(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "after retry", text)
	assert.Equal(t, 2, gen.attempts)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"429 rate limit", genai.APIError{Code: 429}, true},
		{"408 timeout", genai.APIError{Code: 408}, true},
		{"500 internal", genai.APIError{Code: 500}, true},
		{"503 unavailable", genai.APIError{Code: 503}, true},
		{"400 bad request", genai.APIError{Code: 400}, false},
		{"401 unauthorized", genai.APIError{Code: 401}, false},
		{"403 forbidden", genai.APIError{Code: 403}, false},
		{"404 not found", genai.APIError{Code: 404}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"plain error", errors.New("dial tcp: connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, isTransient(tt.err))
		})
	}
}

func TestAnalyze_NeverLogsPromptText(t *testing.T) {
	const secretPrompt = "Statement type: Balance Sheet\nConfidentialCo assets 42"

	logger, captured := testutil.NewTestLogger()
	gen := &stubGenerator{results: []func() (string, error){
		fail(genai.APIError{Code: 503, Message: "overloaded"}),
		succeed("summary"),
	}}
	client := NewClient(gen, 3, time.Millisecond, time.Second, logger)

	_, err := client.Analyze(context.Background(), secretPrompt)
	require.NoError(t, err)

	require.NotEmpty(t, captured.Records(), "retries are logged")
	assert.False(t, captured.ContainsText("ConfidentialCo"),
		"prompt content must never reach the log")
	assert.False(t, captured.ContainsText(secretPrompt))
}
