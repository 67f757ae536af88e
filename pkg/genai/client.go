// Package genai is the boundary to the hosted generative text endpoint: one
// prompt string in, one completion string out.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/microcosm-cc/bluemonday"
)

// Generator produces one completion per prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Client calls the Gemini generateContent REST method. It holds no cache:
// every call is one request (plus retries when configured).
type Client struct {
	client     *http.Client
	endpoint   string
	model      string
	apiKey     string
	maxRetries int
	retryWait  time.Duration
	timeout    time.Duration
	sanitizer  *bluemonday.Policy
	logger     *slog.Logger
}

var _ Generator = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient builds a client from the explicit configuration. The API key is
// taken from cfg, never from the environment.
func NewClient(cfg *models.Config, opts ...Option) *Client {
	c := &Client{
		client:     &http.Client{},
		endpoint:   strings.TrimRight(cfg.Generation.Endpoint, "/"),
		model:      cfg.Generation.Model,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.Generation.MaxRetries,
		timeout:    cfg.Generation.Timeout,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Model() string { return c.model }

// Generate sends prompt and returns the completion text. Failures are
// *models.GenerationError values.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", &models.GenerationError{Kind: models.GenAuth, Message: "no API key configured"}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var text string
	operation := func() error {
		var err error
		text, err = c.generateOnce(ctx, prompt)
		var ge *models.GenerationError
		if err != nil && errors.As(err, &ge) && !ge.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if c.maxRetries > 0 {
		exp := backoff.NewExponentialBackOff()
		if c.retryWait > 0 {
			exp.InitialInterval = c.retryWait
		}
		policy = backoff.WithMaxRetries(exp, uint64(c.maxRetries))
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("generation failed, retrying", "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return "", unwrapPermanent(err)
	}
	return text, nil
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", &models.GenerationError{Kind: models.GenTransport, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", &models.GenerationError{Kind: models.GenTransport, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &models.GenerationError{Kind: models.GenTransport, Err: fmt.Errorf("api request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &models.GenerationError{Kind: models.GenTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read api response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, body)
	}

	var apiResponse generateResponse
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", &models.GenerationError{Kind: models.GenTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode api response: %w", err)}
	}

	if reason := apiResponse.PromptFeedback.BlockReason; reason != "" {
		return "", &models.GenerationError{Kind: models.GenRejected, Message: "prompt blocked: " + reason}
	}
	if len(apiResponse.Candidates) == 0 {
		return "", &models.GenerationError{Kind: models.GenRejected, Message: "no candidates returned"}
	}

	var b strings.Builder
	for _, p := range apiResponse.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	// Strict sanitizing escapes entities, so unescape to get plain text back
	text := strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(b.String())))
	if text == "" {
		return "", &models.GenerationError{Kind: models.GenRejected, Message: "empty completion, finish reason " + apiResponse.Candidates[0].FinishReason}
	}

	c.logger.Info("generation complete", "model", c.model, "prompt_chars", len(prompt), "completion_chars", len(text), "duration", time.Since(start))
	return text, nil
}

// maxErrorMessage caps the API error text kept in a GenerationError, in runes.
const maxErrorMessage = 300

// statusError maps a non-200 response onto the generation error taxonomy.
func statusError(code int, body []byte) error {
	var apiErr apiError
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}
	if r := []rune(message); len(r) > maxErrorMessage {
		message = string(r[:maxErrorMessage])
	}

	kind := models.GenRejected
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = models.GenAuth
	case code == http.StatusTooManyRequests:
		kind = models.GenRateLimit
	case code >= 500:
		kind = models.GenTransport
	}
	return &models.GenerationError{Kind: kind, StatusCode: code, Message: message}
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	var ge *models.GenerationError
	if errors.As(err, &ge) {
		return err
	}
	// Context expiry while waiting between attempts
	return &models.GenerationError{Kind: models.GenTransport, Err: err}
}
