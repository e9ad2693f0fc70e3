// Package aisvc talks to an OpenAI-compatible chat completions API (Groq by default).
package aisvc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/ai"
)

const completionsPath = "/chat/completions"

type (
	message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	completionRequest struct {
		Model       string    `json:"model"`
		Messages    []message `json:"messages"`
		MaxTokens   int       `json:"max_tokens"`
		Temperature float64   `json:"temperature"`
	}

	completionResponse struct {
		Choices []struct {
			Message message `json:"message"`
		} `json:"choices"`
	}

	apiError struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
)

// Client is an ai.Generator behind a circuit breaker: once the provider keeps failing,
// calls fail fast with ai.ErrUnavailable until the breaker timeout elapses.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	model   string
	logger  core.Logger
}

var _ ai.Generator = (*Client)(nil)

func NewClient(conf core.AIConfig, logger core.Logger) *Client {
	threshold := uint32(5)
	if conf.BreakerThreshold > 0 {
		threshold = uint32(conf.BreakerThreshold)
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(conf.BaseURL).
			SetAuthToken(conf.APIKey).
			SetHeader("Content-Type", "application/json").
			SetTimeout(conf.Timeout),
		model:  conf.Model,
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ai",
		Timeout: conf.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: providerHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(fmt.Sprintf("aisvc: circuit breaker %s: %s -> %s", name, from, to))
		},
	})
	return c
}

// providerHealthy reports whether err leaves the provider's health untouched:
// a bad key, a caller that gave up, or a malformed completion.
func providerHealthy(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ai.ErrUnauthorized),
		errors.Is(err, ai.ErrInvalidResponse),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, prompt, maxTokens, temperature)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", errors.Wrap(ai.ErrUnavailable, err.Error())
		}
		return "", err
	}
	return out.(string), nil
}

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	var (
		result completionResponse
		apiErr apiError
	)
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(completionRequest{
			Model:       c.model,
			Messages:    []message{{Role: "user", Content: prompt}},
			MaxTokens:   maxTokens,
			Temperature: temperature,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(completionsPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Wrap(ctxErr, "calling AI provider")
		}
		return "", errors.Wrap(ai.ErrUnavailable, err.Error())
	}

	switch code := res.StatusCode(); {
	case code == http.StatusUnauthorized:
		return "", ai.ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return "", ai.ErrRateLimited
	case res.IsError():
		return "", errors.Wrapf(ai.ErrUnavailable, "status %d: %s", code, apiErr.Error.Message)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", ai.ErrInvalidResponse
	}
	return result.Choices[0].Message.Content, nil
}
