package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/statsd"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, metrics statsd.Sink) *AnthropicClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewAnthropicClient(Config{
		APIKey:      "sk-test",
		BaseURL:     srv.URL + "/",
		Temperature: 0.7,
		Timeout:     2 * time.Second,
		HTTPClient:  srv.Client(),
		Metrics:     metrics,
	})
	require.NoError(t, err)
	return c
}

func TestNewAnthropicClient_RequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicClient(Config{APIKey: "  "})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestComplete_SendsMessagesRequest(t *testing.T) {
	var got messageRequest
	rec := &statsd.Recorder{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, defaultAPIVersion, r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [{"type":"text","text":"{\"html\":"},{"type":"tool_use"},{"type":"text","text":"\"<p>hi</p>\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`))
	}, rec)

	text, err := c.Complete(context.Background(), core.CompletionRequest{
		Prompt:    "Write the hero section. Return ONLY valid JSON:",
		MaxTokens: 3000,
		Operation: "section.hero_services",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<p>hi</p>"}`, text)

	assert.Equal(t, defaultModel, got.Model)
	assert.Equal(t, 3000, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)

	requests := rec.Named("llm.request")
	require.Len(t, requests, 1)
	assert.Equal(t, "success", requests[0].Tags["result"])
	assert.Equal(t, "section.hero_services", requests[0].Tags["operation"])
}

func TestComplete_RequestOverridesDefaults(t *testing.T) {
	var got messageRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}, nil)

	_, err := c.Complete(context.Background(), core.CompletionRequest{Prompt: "p", Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
}

func TestComplete_APIError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantType  string
		wantMsg   string
		retryable bool
	}{
		{
			name:      "structured overloaded",
			status:    529,
			body:      `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			wantType:  "overloaded_error",
			wantMsg:   "Overloaded",
			retryable: true,
		},
		{
			name:     "plain bad request",
			status:   http.StatusBadRequest,
			body:     "bad things",
			wantMsg:  "bad things",
			wantType: "",
		},
		{
			name:      "empty rate limit",
			status:    http.StatusTooManyRequests,
			wantMsg:   "Too Many Requests",
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &statsd.Recorder{}
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, rec)

			_, err := c.Complete(context.Background(), core.CompletionRequest{Prompt: "p"})
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.retryable, apiErr.Retryable())
			assert.Equal(t, "error", rec.Named("llm.request")[0].Tags["result"])
		})
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"   "}]}`))
	}, nil)

	_, err := c.Complete(context.Background(), core.CompletionRequest{Prompt: "p"})
	require.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestComplete_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":`))
	}, nil)

	_, err := c.Complete(context.Background(), core.CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode llm response")
}

func TestComplete_PerCallTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, nil)
	defer close(release)

	start := time.Now()
	_, err := c.Complete(context.Background(), core.CompletionRequest{Prompt: "p", Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}
