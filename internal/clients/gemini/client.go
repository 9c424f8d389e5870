// Package gemini provides a client for the Google Gemini API
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = float32(0.7)
	DefaultMaxTokens   = int32(100)

	// DefaultProbeTTL is how long an availability result is reused.
	DefaultProbeTTL = time.Minute
)

// ErrNoContent is returned when a response carries no text.
var ErrNoContent = errors.New("no content generated")

// Client generates short answers with a fixed system instruction.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	logger      *slog.Logger

	probe    func(ctx context.Context) error
	probeTTL time.Duration
	now      func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	available bool
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float32) ClientOption {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithMaxTokens bounds the response length
func WithMaxTokens(n int32) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProbeTTL sets how long an availability result is cached. Zero probes
// on every call.
func WithProbeTTL(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.probeTTL = d
		}
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client:      genaiClient,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      slog.Default(),
		probeTTL:    DefaultProbeTTL,
		now:         time.Now,
	}
	c.probe = c.getModel

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Available reports whether the model answered a metadata lookup within the
// probe TTL. Generate outcomes refresh the cached result too.
func (c *Client) Available(ctx context.Context) bool {
	if c == nil || c.probe == nil {
		return false
	}

	c.mu.Lock()
	if !c.checkedAt.IsZero() && c.now().Sub(c.checkedAt) < c.probeTTL {
		ok := c.available
		c.mu.Unlock()
		return ok
	}
	c.mu.Unlock()

	err := c.probe(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Gemini unavailable", "model", c.model, "error", err)
	}
	c.record(err == nil)
	return err == nil
}

func (c *Client) getModel(ctx context.Context) error {
	if c.client == nil {
		return errors.New("gemini: client not initialized")
	}
	_, err := c.client.Models.Get(ctx, c.model, nil)
	return err
}

func (c *Client) record(ok bool) {
	c.mu.Lock()
	c.available = ok
	c.checkedAt = c.now()
	c.mu.Unlock()
}

// Generate sends prompt under the given system instruction.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	c.logger.DebugContext(ctx, "Generating content", "model", c.model)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature),
		MaxOutputTokens: c.maxTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		if ctx.Err() == nil {
			c.record(false)
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	c.record(true)

	return extractTextFromResponse(result)
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoContent
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}
