// Package llm implements core.TextCompleter on the Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/statsd"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultModel      = "claude-sonnet-4-20250514"
	defaultAPIVersion = "2023-06-01"
	defaultTimeout    = 45 * time.Second
	defaultMaxTokens  = 2000
	// maxErrorBody caps how much of an error response is kept in the returned error.
	maxErrorBody = 2048
)

// ErrMissingAPIKey is returned by NewAnthropicClient when no API key is configured.
var ErrMissingAPIKey = errors.New("llm api key is required")

// ErrEmptyCompletion is returned when the response carries no text blocks.
var ErrEmptyCompletion = errors.New("llm returned no text content")

// Config configures the Anthropic client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	APIVersion string
	// Temperature is used when a request leaves Temperature at zero.
	Temperature float64
	// Timeout bounds one call when the request sets none.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// AnthropicClient sends single-turn prompts to the Messages API.
type AnthropicClient struct {
	cfg     Config
	http    *http.Client
	logger  *slog.Logger
	metrics statsd.Sink
	tracer  trace.Tracer
}

var _ core.TextCompleter = (*AnthropicClient)(nil)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("llm api status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("llm api status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status suggests a later call may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// NewAnthropicClient creates a client, filling defaults for unset fields.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Per-call deadlines come from the request context.
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AnthropicClient{
		cfg:     cfg,
		http:    httpClient,
		logger:  logger.With("component", "llm", "model", cfg.Model),
		metrics: cfg.Metrics,
		tracer:  otel.Tracer("github.com/UltimateServices/Dumpsters-CRM/internal/llm"),
	}, nil
}

type messageRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends req.Prompt as a single user message and returns the concatenated text blocks.
func (c *AnthropicClient) Complete(ctx context.Context, req core.CompletionRequest) (string, error) {
	op := req.Operation
	if op == "" {
		op = "complete"
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.cfg.Temperature
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	ctx, span := c.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.operation", op),
		attribute.String("llm.model", c.cfg.Model),
		attribute.Int("llm.max_tokens", maxTokens),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqID := uuid.NewString()
	start := time.Now()

	text, resp, err := c.send(ctx, reqID, messageRequest{
		Model:       c.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
	})
	elapsed := time.Since(start)
	c.recordTiming(op, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.ErrorContext(ctx, "llm.complete.error",
			"req_id", reqID,
			"operation", op,
			"error", err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return "", err
	}

	span.SetAttributes(
		attribute.Int("llm.input_tokens", resp.Usage.InputTokens),
		attribute.Int("llm.output_tokens", resp.Usage.OutputTokens),
		attribute.String("llm.stop_reason", resp.StopReason),
	)
	if resp.StopReason == "max_tokens" {
		c.logger.WarnContext(ctx, "llm.complete.truncated",
			"req_id", reqID,
			"operation", op,
			"max_tokens", maxTokens,
		)
	}
	c.logger.InfoContext(ctx, "llm.complete.ok",
		"req_id", reqID,
		"operation", op,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"chars", len(text),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return text, nil
}

func (c *AnthropicClient) send(ctx context.Context, reqID string, body messageRequest) (string, *messageResponse, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("encode llm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(bs))
	if err != nil {
		return "", nil, fmt.Errorf("build llm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", c.cfg.APIVersion)
	httpReq.Header.Set("X-Request-Id", reqID)

	c.logger.DebugContext(ctx, "llm.http.request",
		"req_id", reqID,
		"content_length", len(bs),
		"max_tokens", body.MaxTokens,
	)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("llm http: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if cerr := Body.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "llm.http.response_body_close_error", "req_id", reqID, "error", cerr)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read llm response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return "", nil, decodeAPIError(resp.StatusCode, raw)
	}

	var out messageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", nil, fmt.Errorf("decode llm response: %w", err)
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", &out, ErrEmptyCompletion
	}
	return text, &out, nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error.Message != "" {
		apiErr.Type = er.Error.Type
		apiErr.Message = er.Error.Message
		return apiErr
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	apiErr.Message = msg
	return apiErr
}

func (c *AnthropicClient) recordTiming(op string, elapsed time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	tags := map[string]string{"operation": op, "result": result}
	c.metrics.Count("llm.request", 1, tags)
	c.metrics.Timing("llm.duration", elapsed, tags)
}
