// Package llm wraps the hosted completion service. Failures are surfaced as
// either a ValidationError (the request itself is unacceptable, typically too
// large) or a TransientError (retryable network or service fault), so callers
// can apply different fallbacks to each.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/metrics"
	"github.com/infra-assist/backend/pkg/circuitbreaker"
	"github.com/infra-assist/backend/pkg/logger"
	"github.com/infra-assist/backend/pkg/retry"
)

type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "completion rejected: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "completion service: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
	TopP        float32
}

type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	topP        float32
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(apiKey, baseURL, model string, temperature, topP float32, maxTokens, timeoutSec int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		// A request the service rejects as too large will not get smaller by
		// itself; only transient faults are worth retrying here.
		IsRetryable: func(err error) bool { return !IsValidation(err) },
		Logger:      logger.GetLogger(),
	}

	if timeoutSec <= 0 {
		timeoutSec = 10
	}

	logger.Info("LLM client initialized", zap.String("model", model))

	return &Client{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// Complete sends the role-tagged messages to the completion service and
// returns the generated text. An empty completion is returned as an empty
// string with a nil error; callers decide how to present it.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	topP := req.TopP
	if topP == 0 {
		topP = c.topP
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					TopP:        topP,
					MaxTokens:   maxTokens,
				},
			)
			if err != nil {
				return classify(err)
			}

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			logger.Debug("Completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			if len(resp.Choices) == 0 {
				content = ""
				return nil
			}
			content = resp.Choices[0].Message.Content

			return nil
		})
	})

	if err != nil {
		return "", err
	}

	return content, nil
}

// classify splits service failures into the validation/transient taxonomy.
// HTTP 400 and 413 mean the request itself is unacceptable; everything else
// (timeouts, 429, 5xx, transport faults) is treated as transient.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 400, 413:
			return &ValidationError{Err: fmt.Errorf("status %s: %s", strconv.Itoa(apiErr.HTTPStatusCode), apiErr.Message)}
		}
	}
	return &TransientError{Err: err}
}
