package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/sevyedu/sevyai/internal/chat"
	"github.com/sevyedu/sevyai/internal/observability"
)

// Generator produces an assistant reply for a conversation window.
type Generator interface {
	Generate(ctx context.Context, window chat.Window) (string, error)
}

// Recorder records a successfully answered question. Failures are logged and
// never surfaced to the chat caller.
type Recorder interface {
	RecordAnswer(ctx context.Context) error
}

// Config controls client construction.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Persona     string
	StripBold   bool
	Timeout     time.Duration
}

// Client wraps the upstream chat-completion API: it prepends the persona,
// submits the window with fixed invocation parameters, and extracts the single
// reply text.
type Client struct {
	api      *openai.Client
	cfg      Config
	recorder Recorder
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewClient(cfg Config, recorder Recorder, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:      openai.NewClientWithConfig(apiCfg),
		cfg:      cfg,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
	}
}

// Generate submits persona + window upstream and returns the trimmed reply.
// On success it bumps the answered-questions counter in the background.
func (c *Client) Generate(ctx context.Context, window chat.Window) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(window)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.cfg.Persona,
	})
	for _, turn := range window {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		N:           1,
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.createWithRetry(ctx, req)
	c.metrics.UpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("upstream completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("upstream completion: no choices returned")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if c.cfg.StripBold {
		reply = strings.ReplaceAll(reply, "**", "")
	}

	c.recordAnswer()
	return reply, nil
}

func (c *Client) createWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return openai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(backoff(attempt, backoffBase, backoffCap)):
			}
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("retryable upstream error")
	}
	return openai.ChatCompletionResponse{}, lastErr
}

// recordAnswer fires the counter increment without blocking or failing the
// chat response.
func (c *Client) recordAnswer() {
	if c.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.recorder.RecordAnswer(ctx); err != nil {
			c.metrics.AnswerIncrFailures.Inc()
			c.logger.Warn().Err(err).Msg("answered-questions increment failed")
		}
	}()
}
