// Package groq is a client for the Groq OpenAI-compatible chat API.
package groq

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// ErrEmptyResponse is returned when a completion carries no content.
var ErrEmptyResponse = errors.New("empty completion")

// Client communicates with the Groq API.
type Client struct {
	http           *resty.Client
	initialBackoff time.Duration
}

// NewClient creates a Groq client with the given API key.
func NewClient(apiKey string) *Client {
	return NewClientWithBaseURL(apiKey, DefaultBaseURL)
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	h := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "talentscout").
		SetTimeout(defaultTimeout)
	return &Client{http: h, initialBackoff: initialBackoff}
}

// SetTimeout bounds each HTTP attempt.
func (c *Client) SetTimeout(d time.Duration) *Client {
	if d > 0 {
		c.http.SetTimeout(d)
	}
	return c
}

// RateLimitError is returned on HTTP 429 once retries are exhausted.
type RateLimitError struct {
	Status     int
	RetryAfter string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("rate limited (HTTP %d, retry after %s)", e.Status, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (HTTP %d)", e.Status)
}

// StatusError is returned for any other non-200 response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Chat sends a chat completion request. Rate-limited requests are retried
// with exponential backoff.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for attempt := range maxRetries {
		resp, err := c.doChat(ctx, req)
		if err == nil {
			return resp, nil
		}

		var rl *RateLimitError
		if !errors.As(err, &rl) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(c.initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) doChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, &RateLimitError{Status: resp.StatusCode(), RetryAfter: resp.Header().Get("Retry-After")}
	default:
		return nil, &StatusError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}

	body := resp.Body()
	out := &ChatResponse{
		ID:          gjson.GetBytes(body, "id").String(),
		Model:       gjson.GetBytes(body, "model").String(),
		Content:     gjson.GetBytes(body, "choices.0.message.content").String(),
		TotalTokens: int(gjson.GetBytes(body, "usage.total_tokens").Int()),
	}
	if strings.TrimSpace(out.Content) == "" {
		return nil, ErrEmptyResponse
	}
	return out, nil
}

// ListModels returns the models available to the API key.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var list ModelList
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&list).
		Get("/models")
	if err != nil {
		return nil, fmt.Errorf("requesting models: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}

	if list.Data == nil {
		return []Model{}, nil
	}
	return list.Data, nil
}
