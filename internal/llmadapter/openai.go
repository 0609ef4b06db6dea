package llmadapter

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/powerpulse/analyzer/pkg/circuitbreaker"
	"github.com/powerpulse/analyzer/pkg/logger"
	"github.com/powerpulse/analyzer/pkg/retry"
)

type openAICaller struct {
	client      *openai.Client
	model       string
	temperature float32
}

func (c *openAICaller) call(ctx context.Context, prompt string) (string, Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("openai returned no choices")
	}

	return resp.Choices[0].Message.Content, Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// NewOpenAIProvider builds the OpenAI-backed C5 adapter, grounded on
// the teacher's sashabaranov/go-openai client wrapped in the same
// circuit-breaker + retry policy it uses for completions.
func NewOpenAIProvider(apiKey, model string) Provider {
	cb := circuitbreaker.NewCircuitBreaker("llm-openai", circuitbreaker.Config{
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.Log,
	})

	retryCfg := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		Logger:         logger.Log,
	}

	caller := &openAICaller{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: 0.2,
	}

	return newAdapter("openai", caller, cb, retryCfg)
}
