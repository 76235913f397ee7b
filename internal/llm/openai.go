package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
)

// Message is a minimal chat message used by the core chat service.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Client defines the methods required by the chat service.
// Chat accepts the full message history (system + prior turns + latest user).
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ErrNotConfigured is returned when no API key was supplied.
var ErrNotConfigured = errors.New("llm client not configured")

// EmptyResponse is returned when the API answered without any choice.
const EmptyResponse = "Unable to generate response."

// Config holds what the OpenAI-compatible client needs.  BaseURL may point
// at any compatible gateway, Gemini's included.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  uint64
	// Backoff is the first retry delay; later delays follow a Fibonacci curve.
	Backoff time.Duration
}

// OpenAIClient calls a chat completion API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxRetries  uint64
	backoff     time.Duration
}

// NewOpenAIClient constructs an OpenAI-backed LLM client.  It returns
// ErrNotConfigured when cfg has no API key so callers can run without one.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	// go-openai appends "/chat/completions" verbatim.
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		oc.BaseURL = base
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		backoff:     backoff,
	}, nil
}

// Chat sends the message history to the chat completion API and returns the
// assistant's response.  Rate limits, server errors and transport failures
// are retried with Fibonacci backoff.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if c == nil || c.client == nil {
		return "", ErrNotConfigured
	}

	// Convert to OpenAI message type
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    oaMsgs,
		Temperature: c.temperature,
	}

	var resp openai.ChatCompletionResponse
	b := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err != nil && shouldRetry(err) {
			slog.Debug("chat completion failed, retrying", "model", c.model, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return EmptyResponse, nil
	}
	return resp.Choices[0].Message.Content, nil
}

// shouldRetry reports whether a failed completion may succeed when repeated.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	// Transport level failure.
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
