package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"subfix/internal/stats"
)

const (
	defaultHTTPTimeout    = 240 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
)

// Failure classification sentinels. ErrTransport covers timeouts and server
// errors that survived the client's own retries; ErrMalformed covers
// responses that arrived but could not be decoded into the expected shape.
var (
	ErrTransport = errors.New("llm transport failure")
	ErrMalformed = errors.New("llm malformed output")
)

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	TimeoutSeconds  int
	MaxOutputTokens int
}

// Client wraps an OpenAI-compatible chat completion endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a chat-completion client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:          strings.TrimSpace(cfg.APIKey),
			BaseURL:         strings.TrimSpace(cfg.BaseURL),
			Model:           strings.TrimSpace(cfg.Model),
			TimeoutSeconds:  cfg.TimeoutSeconds,
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.openai.com/v1/chat/completions"
	}
	return client
}

// Complete issues a chat completion with the supplied prompts and returns the
// model's text content plus the reported token usage.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, stats.Usage, error) {
	var usage stats.Usage
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", usage, errors.New("llm complete: api key required")
	}
	if strings.TrimSpace(userPrompt) == "" {
		return "", usage, errors.New("llm complete: user prompt required")
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
	}
	if c.cfg.MaxOutputTokens > 0 {
		payload.MaxCompletionTokens = c.cfg.MaxOutputTokens
	}
	return c.completionWithRetry(ctx, payload, "llm complete")
}

// Ping verifies the API key and model are usable with a minimal request.
func (c *Client) Ping(ctx context.Context) error {
	content, _, err := c.Complete(ctx,
		"You must respond with JSON only.",
		`Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm ping: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm ping: unexpected response")
	}
	return nil
}

type chatCompletionRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         float64       `json:"temperature"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) completionWithRetry(ctx context.Context, payload chatCompletionRequest, op string) (string, stats.Usage, error) {
	attempts := c.retryAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		content, usage, err := c.sendOnce(ctx, payload, op)
		if err == nil {
			return content, usage, nil
		}

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", stats.Usage{}, err
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", stats.Usage{}, fmt.Errorf("%w: %s: %w", ErrTransport, op, sleepErr)
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return "", stats.Usage{}, fmt.Errorf("%w: %s: failed after %d attempts: %w", ErrTransport, op, attempts, lastErr)
}

func (c *Client) sendOnce(ctx context.Context, payload chatCompletionRequest, op string) (string, stats.Usage, error) {
	var usage stats.Usage
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", usage, fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", usage, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", usage, fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", usage, fmt.Errorf("%w: %s: read body: %w", ErrTransport, op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", usage, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", usage, fmt.Errorf("%w: %s: decode response: %w", ErrMalformed, op, err)
	}
	if completion.Error != nil {
		return "", usage, fmt.Errorf("%w: %s: api error: %s", ErrTransport, op, strings.TrimSpace(completion.Error.Message))
	}
	usage = stats.ParseAPIUsage(completion.Usage)

	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, usage, nil
		}
	}
	return "", usage, fmt.Errorf("%w: %s: empty content (finish_reason=%q)", ErrMalformed, op, firstFinishReason(completion))
}

func firstFinishReason(completion chatCompletionResponse) string {
	for _, choice := range completion.Choices {
		if reason := strings.TrimSpace(choice.FinishReason); reason != "" {
			return reason
		}
	}
	return ""
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	// Malformed output cannot be fixed by retrying the same request.
	if errors.Is(err, ErrMalformed) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	if errors.Is(err, ErrTransport) {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	maxDelay := c.retryMaxDelay
	if base < 0 {
		base = defaultRetryBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if base == 0 {
		return 0
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
