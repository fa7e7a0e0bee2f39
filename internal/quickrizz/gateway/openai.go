package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/bdobrica/quickrizz/common/redact"
	"github.com/bdobrica/quickrizz/common/retry"
	"github.com/bdobrica/quickrizz/common/trace"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	// DefaultTimeout bounds one attempt when neither Request.Timeout nor
	// Config.Timeout is set.
	DefaultTimeout = 18 * time.Second

	// maxBodyBytes caps how much of an upstream response is read.
	maxBodyBytes = 1 << 20
	// logBodyRunes caps how much of an error body reaches the log.
	logBodyRunes = 300
)

// Config configures the OpenAI-compatible gateway.
type Config struct {
	// APIKey is the bearer token for the API.
	APIKey string

	// BaseURL overrides the API endpoint. Defaults to
	// https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model. Defaults to gpt-4o-mini.
	Model string

	// MinInterval is the minimum spacing between the starts of two
	// consecutive attempts, process-wide. Zero disables the throttle.
	MinInterval time.Duration

	// MaxAttempts is the attempt cap per call, first attempt included.
	// Defaults to 4.
	MaxAttempts int

	// BackoffBase is the delay before the first retry; it doubles per
	// attempt. Defaults to 900ms.
	BackoffBase time.Duration

	// BackoffCap caps both computed backoff and Retry-After hints.
	// Defaults to 8s.
	BackoffCap time.Duration

	// Jitter is the upper bound of the random delay added to computed
	// backoff. Defaults to 750ms; negative disables jitter.
	Jitter time.Duration

	// Timeout bounds each attempt of a request that sets no Timeout of its
	// own. Defaults to DefaultTimeout.
	Timeout time.Duration

	// MeterProvider receives the gateway metrics. Defaults to the global
	// provider.
	MeterProvider metric.MeterProvider

	// HTTPClient overrides the client used for upstream calls. Per-attempt
	// timeouts are applied through the request context, so the client
	// itself should not set a shorter Timeout.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 900 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 8 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	switch {
	case c.Jitter == 0:
		c.Jitter = 750 * time.Millisecond
	case c.Jitter < 0:
		c.Jitter = 0
	}
	return c
}

// Gateway serialises, throttles and retries calls to the generator.
// A single Gateway is created at startup and shared by every request; it is
// safe for concurrent use.
type Gateway struct {
	cfg      Config
	client   *http.Client
	slot     *semaphore.Weighted
	throttle *rate.Limiter
	metrics  *metrics
}

// New returns a Gateway for cfg.
func New(cfg Config) *Gateway {
	cfg = cfg.withDefaults()
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &Gateway{
		cfg:      cfg,
		client:   client,
		slot:     semaphore.NewWeighted(1),
		throttle: rate.NewLimiter(limit, 1),
		metrics:  newMetrics(cfg.MeterProvider),
	}
}

// Close releases idle upstream connections.
func (g *Gateway) Close() {
	g.client.CloseIdleConnections()
}

// Model returns the configured chat model.
func (g *Gateway) Model() string { return g.cfg.Model }

// --- minimal OpenAI wire types ---

type oaiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	N           int       `json:"n"`
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// throttleError marks a failed wait on the spacing limiter (cancelled
// context, or a deadline that ends before the next slot). It is never
// retried.
type throttleError struct{ err error }

func (e *throttleError) Error() string { return "gateway: throttle: " + e.err.Error() }
func (e *throttleError) Unwrap() error { return e.err }

// Generate runs one generation call and returns the completion text.
//
// The returned text is empty and the error nil when every attempt failed
// transiently. A non-nil error means a non-retryable failure or a
// cancelled ctx.
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	started := time.Now()
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.cfg.Timeout
	}

	payload, err := json.Marshal(oaiRequest{
		Model:       g.cfg.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		N:           1,
	})
	if err != nil {
		return "", fmt.Errorf("gateway: marshal request: %w", err)
	}

	if err := g.slot.Acquire(ctx, 1); err != nil {
		g.metrics.call(ctx, outcomeCancelled, started)
		return "", fmt.Errorf("gateway: wait for slot: %w", err)
	}
	defer g.slot.Release(1)

	var text string
	policy := retry.Config{
		MaxAttempts:  g.cfg.MaxAttempts,
		InitialDelay: g.cfg.BackoffBase,
		MaxDelay:     g.cfg.BackoffCap,
		Jitter:       g.cfg.Jitter,
		ShouldRetry: func(err error) bool {
			return ctx.Err() == nil && IsTransient(err)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			status := 0
			var se *StatusError
			if errors.As(err, &se) {
				status = se.Code
			}
			g.metrics.retry(ctx, status)
			slog.Warn("gateway: transient failure, backing off",
				trace.Attr(ctx),
				"attempt", attempt, "max", g.cfg.MaxAttempts,
				"status", status, "delay", delay, "err", err)
		},
	}
	err = retry.Do(ctx, policy, func(attempt int) error {
		if werr := g.throttle.Wait(ctx); werr != nil {
			return &throttleError{err: werr}
		}
		g.metrics.attempt(ctx)
		out, aerr := g.attempt(ctx, payload, timeout)
		if aerr != nil {
			return aerr
		}
		text = out
		slog.Debug("gateway: ok", trace.Attr(ctx), "attempt", attempt, "len", len(out))
		return nil
	})

	switch {
	case err == nil:
		g.metrics.call(ctx, outcomeOK, started)
		return text, nil
	case ctx.Err() != nil:
		g.metrics.call(ctx, outcomeCancelled, started)
		return "", fmt.Errorf("gateway: %w", ctx.Err())
	case errors.Is(err, retry.ErrExhausted):
		g.metrics.call(ctx, outcomeGiveUp, started)
		slog.Error("gateway: giving up after retries",
			trace.Attr(ctx), "attempts", g.cfg.MaxAttempts, "err", err)
		return "", nil
	default:
		g.metrics.call(ctx, outcomePermanent, started)
		slog.Error("gateway: non-retryable failure", trace.Attr(ctx), "err", err)
		return "", err
	}
}

// attempt performs one HTTP round trip bounded by timeout.
func (g *Gateway) attempt(ctx context.Context, payload []byte, timeout time.Duration) (string, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(actx, http.MethodPost,
		g.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", fmt.Errorf("gateway: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{
			Code:  resp.StatusCode,
			Body:  redact.Body(body, logBodyRunes, g.cfg.APIKey),
			After: parseRetryAfter(resp.Header),
		}
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(body, &oaiResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if oaiResp.Error != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrMalformedResponse, oaiResp.Error.Type,
			redact.String(oaiResp.Error.Message, g.cfg.APIKey))
	}
	if len(oaiResp.Choices) == 0 {
		return "", nil
	}
	return oaiResp.Choices[0].Message.Content, nil
}
