package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/phrazzld/recipe-queue/internal/config"
	"github.com/phrazzld/recipe-queue/internal/generation"
	"google.golang.org/genai"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// contentClient is the subset of genai.Models the generator calls.
type contentClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator implements generation.Generator using the Gemini API.
type Generator struct {
	logger *slog.Logger
	client contentClient
	model  string

	temperature    float32
	maxRetries     int
	baseDelay      time.Duration
	requestTimeout time.Duration
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator validates cfg and creates a Gemini API client.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, client.Models, cfg), nil
}

func newGenerator(logger *slog.Logger, client contentClient, cfg config.LLMConfig) *Generator {
	g := &Generator{
		logger:         logger.With("component", "gemini_generator"),
		client:         client,
		model:          cfg.ModelName,
		temperature:    cfg.Temperature,
		maxRetries:     cfg.MaxRetries,
		baseDelay:      cfg.RetryDelay(),
		requestTimeout: cfg.RequestTimeout(),
	}
	if g.maxRetries < 0 {
		g.logger.Warn("invalid max retries value, using default", "max_retries", defaultMaxRetries)
		g.maxRetries = defaultMaxRetries
	}
	if g.baseDelay <= 0 {
		g.logger.Warn("invalid retry delay value, using default", "retry_delay", defaultRetryDelay)
		g.baseDelay = defaultRetryDelay
	}
	return g
}

// Generate sends prompt to the model and returns the text of the first
// candidate. Transient failures are retried with exponential backoff.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		g.logger.DebugContext(ctx, "making Gemini API call",
			"attempt", attemptNum,
			"max_attempts", g.maxRetries+1,
			"prompt_length", len(prompt))

		text, retryable, err := g.call(ctx, prompt)
		if err == nil {
			g.logger.DebugContext(ctx, "Gemini API call successful",
				"attempt", attemptNum,
				"reply_length", len(text))
			return text, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", generation.ErrTransientFailure, ctxErr)
		}

		if !retryable {
			g.logger.WarnContext(ctx, "permanent error occurred, not retrying",
				"attempt", attemptNum,
				"error", err)
			return "", err
		}

		if attempt >= g.maxRetries {
			g.logger.WarnContext(ctx, "maximum retry attempts reached",
				"max_retries", g.maxRetries,
				"error", err)
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d)",
				generation.ErrTransientFailure, g.maxRetries)
		}

		delay := g.backoff(attempt)
		g.logger.InfoContext(ctx, "retrying after delay",
			"attempt", attemptNum,
			"delay_ms", delay.Milliseconds(),
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			g.logger.WarnContext(ctx, "API call cancelled during retry delay",
				"attempt", attemptNum,
				"ctx_err", ctx.Err())
			return "", fmt.Errorf("%w: %w", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// call performs one request and reports whether a failure may be retried.
func (g *Generator) call(ctx context.Context, prompt string) (string, bool, error) {
	callCtx := ctx
	if g.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.requestTimeout)
		defer cancel()
	}

	temperature := g.temperature
	resp, err := g.client.GenerateContent(callCtx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", true, fmt.Errorf("%w: request timed out after %s", generation.ErrTransientFailure, g.requestTimeout)
		}
		retryable, classified := classifyAPIError(err)
		return "", retryable, classified
	}

	text, err := replyText(resp)
	return text, false, err
}

// replyText extracts the concatenated text parts of the first candidate.
func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}
	return b.String(), nil
}

// backoff returns baseDelay * 2^attempt scaled by a jitter factor in [0.5, 1.0).
func (g *Generator) backoff(attempt int) time.Duration {
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(g.baseDelay) * math.Pow(2, float64(attempt)) * jitter)
}
