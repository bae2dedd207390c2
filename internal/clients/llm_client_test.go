package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *OpenAICompatibleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewOpenAICompatibleClient(LLMConfig{
		APIURL:      srv.URL + "/chat/completions",
		APIKey:      "secret",
		Model:       "deepseek-chat",
		Temperature: 0.7,
		MaxTokens:   4096,
		MaxRetries:  2,
		RetryDelay:  time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewOpenAICompatibleClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAICompatibleClient(LLMConfig{Model: "deepseek-chat"}, nil)
	assert.Error(t, err)
}

func TestDecide_SendsPromptsAndReturnsContent(t *testing.T) {
	c := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req.Model)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		assert.Equal(t, 4096, req.MaxTokens)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "sys", req.Messages[0].Content)
			assert.Equal(t, "user", req.Messages[1].Role)
			assert.Equal(t, "usr", req.Messages[1].Content)
		}

		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []choice{{Message: message{Role: "assistant", Content: `{"decision":"DO_NOTHING","symbol":"BTC"}`}}},
		})
	})

	out, err := c.Decide(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"DO_NOTHING","symbol":"BTC"}`, out)
}

func TestDecide_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []choice{{Message: message{Content: "ok"}}}})
	})

	out, err := c.Decide(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDecide_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	_, err := c.Decide(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDecide_APIErrorPayload(t *testing.T) {
	c := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"context too long","type":"invalid_request_error","code":"context_length"}}`))
	})

	_, err := c.Decide(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context too long")
}
