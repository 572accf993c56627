// internal/llmclient/client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/mkarrick/flowpilot/internal/config"
)

// ErrDisabled is returned by the factory when no API key is configured.
// Every consumer of the client has a deterministic local fallback, so a
// disabled client is a normal operating mode, not a startup failure.
var ErrDisabled = errors.New("llm client disabled: no API key configured")

// Client is the narrow model surface the engine's adapters consume.
type Client interface {
	// GenerateText sends a system and user prompt and returns the raw
	// model text. forceJSON requests an application/json response.
	GenerateText(ctx context.Context, systemPrompt, userPrompt string, forceJSON bool) (string, error)
	// EmbedText returns an embedding vector for the given text.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// GeminiClient implements Client on top of the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	cfg     config.LLMConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Client = (*GeminiClient)(nil)

// New constructs a rate-limited Gemini client. Returns ErrDisabled when the
// configuration carries no API key.
func New(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrDisabled
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	rpm := cfg.RequestsPerMin
	if rpm <= 0 {
		rpm = 30
	}

	return &GeminiClient{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 2),
		logger:  logger.Named("llm_client.gemini"),
	}, nil
}

// GenerateText sends the prompts to the model with retries on transient
// API errors.
func (c *GeminiClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string, forceJSON bool) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait interrupted: %w", err)
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](c.cfg.Temperature),
	}
	if systemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if forceJSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var out string
	operation := func() error {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()

		start := time.Now()
		resp, err := c.client.Models.GenerateContent(callCtx, c.cfg.Model, genai.Text(userPrompt), genCfg)
		if err != nil {
			return classifyAPIError(err)
		}

		text := resp.Text()
		if text == "" {
			return backoff.Permanent(errors.New("model returned empty content"))
		}

		c.logger.Debug("LLM generation complete",
			zap.Duration("duration", time.Since(start)),
			zap.String("model", c.cfg.Model),
		)
		out = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return out, nil
}

// EmbedText computes an embedding for the given text.
func (c *GeminiClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait interrupted: %w", err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.client.Models.EmbedContent(callCtx, c.cfg.EmbeddingModel,
		genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("embedding response contained no vectors")
	}
	return resp.Embeddings[0].Values, nil
}

func (c *GeminiClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.cfg.APITimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// classifyAPIError maps API failures onto the retry policy: rate limits
// and server-side faults retry, everything else is permanent.
func classifyAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 503:
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	// Transport-level failures are worth retrying.
	return err
}
