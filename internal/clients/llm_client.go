package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/perpagent/pkg/retrier"
	"go.uber.org/zap"
)

const (
	// DefaultLLMAPIURL DeepSeek chat completions endpoint.
	DefaultLLMAPIURL  = "https://api.deepseek.com/chat/completions"
	defaultTimeout    = 120 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// DecisionSource produces raw model text for a pair of prompts.
type DecisionSource interface {
	Decide(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLMConfig settings of an OpenAI-compatible chat endpoint.
type LLMConfig struct {
	APIURL      string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// OpenAICompatibleClient talks to any /chat/completions API (DeepSeek by default).
type OpenAICompatibleClient struct {
	http    *resty.Client
	cfg     LLMConfig
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewOpenAICompatibleClient creates a new client for OpenAI-compatible APIs.
func NewOpenAICompatibleClient(cfg LLMConfig, logger *zap.Logger) (*OpenAICompatibleClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("LLM API key is empty")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultLLMAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	c := &OpenAICompatibleClient{
		http:   httpClient,
		cfg:    cfg,
		logger: logger,
	}
	c.retrier = retrier.New(
		retrier.WithMaxRetries(cfg.MaxRetries),
		retrier.WithInitialInterval(cfg.RetryDelay),
		retrier.WithOnRetry(func(attempt int, err error) {
			c.logger.Warn("LLM request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)

	return c, nil
}

// Model returns the configured model name.
func (c *OpenAICompatibleClient) Model() string {
	return c.cfg.Model
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []choice  `json:"choices"`
	Usage   usage     `json:"usage"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Decide sends the prompts and returns the first choice content.
// Transport errors, 429 and 5xx are retried; other 4xx fail immediately.
func (c *OpenAICompatibleClient) Decide(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	content, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (string, error) {
		return c.sendRequest(ctx, reqBody)
	})
	if err != nil {
		return "", errors.Wrapf(err, "LLM request to %s failed", c.cfg.Model)
	}

	return content, nil
}

func (c *OpenAICompatibleClient) sendRequest(ctx context.Context, reqBody chatRequest) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reqBody).
		Post(c.cfg.APIURL)
	if err != nil {
		return "", errors.Wrap(err, "HTTP request failed")
	}

	status := resp.StatusCode()
	if status != http.StatusOK {
		statusErr := fmt.Errorf("LLM API returned status %d: %s", status, truncateBody(resp.String()))
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
			return "", statusErr
		}
		return "", retrier.Permanent(statusErr)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(resp.Body(), &chatResp); err != nil {
		return "", retrier.Permanent(errors.Wrap(err, "failed to unmarshal response"))
	}

	if chatResp.Error != nil {
		return "", retrier.Permanent(fmt.Errorf("LLM API error: %s (type: %s, code: %v)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code))
	}

	if len(chatResp.Choices) == 0 {
		return "", errors.New("LLM API returned no choices")
	}

	c.logger.Debug("LLM response received",
		zap.String("model", chatResp.Model),
		zap.Int("prompt_tokens", chatResp.Usage.PromptTokens),
		zap.Int("completion_tokens", chatResp.Usage.CompletionTokens))

	return chatResp.Choices[0].Message.Content, nil
}

func truncateBody(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
