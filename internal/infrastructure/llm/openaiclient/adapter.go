// Package openaiclient adapts an OpenAI-compatible chat endpoint into the
// decision oracle port. It owns the malformed-reply recovery policy: the
// loop always receives a well-formed action, never an exception.
package openaiclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/application/port/output"
	"github.com/softlight/wayfinder/internal/domain/entity"
)

var _ output.OraclePort = (*Adapter)(nil)

//go:embed prompts/system.txt
var systemPrompt string

//go:embed prompts/user.txt
var userPromptTemplate string

type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	Temperature    float32
	MaxTokens      int
	RequestTimeout time.Duration
	MaxRetries     uint64
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:         apiKey,
		Model:          model,
		BaseURL:        "https://openrouter.ai/api/v1",
		Temperature:    0.2,
		RequestTimeout: 60 * time.Second,
		MaxRetries:     3,
	}
}

type Adapter struct {
	client   *openai.Client
	cfg      Config
	userTmpl prompts.PromptTemplate
	log      *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Adapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	return &Adapter{
		client:   openai.NewClientWithConfig(clientCfg),
		cfg:      cfg,
		userTmpl: prompts.NewPromptTemplate(userPromptTemplate, []string{"task", "page", "history"}),
		log:      log.Named("oracle"),
	}
}

// Decide asks for the next action. A malformed, empty or unreachable
// reply yields the safe default with Fallback set; the only error return
// is a dead context, which must surface so the run can stop.
func (a *Adapter) Decide(ctx context.Context, req output.DecisionRequest) (output.Decision, error) {
	userPrompt, err := a.userTmpl.Format(map[string]any{
		"task":    req.Task,
		"page":    req.Page,
		"history": req.History,
	})
	if err != nil {
		// The template is static; a render failure is a programming error,
		// but the recovery contract still applies.
		a.log.Error("prompt render failed", zap.Error(err))
		return fallback(""), nil
	}

	raw, err := a.complete(ctx, userPrompt)
	if err != nil {
		if ctx.Err() != nil {
			return output.Decision{}, ctx.Err()
		}
		a.log.Warn("oracle request failed, safe default substituted", zap.Error(err))
		return fallback(raw), nil
	}

	action, err := parseAction(raw)
	if err != nil {
		a.log.Warn("oracle reply did not parse", zap.Error(err))
		return fallback(raw), nil
	}

	a.log.Debug("decision received", zap.String("action", action.String()))
	return output.Decision{Action: action, Raw: raw}, nil
}

// complete runs one chat completion with exponential backoff on transport
// errors. Client-side errors other than rate limiting are permanent.
func (a *Adapter) complete(ctx context.Context, userPrompt string) (string, error) {
	var reply string

	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
		defer cancel()

		resp, err := a.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
			Model: a.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Temperature: a.cfg.Temperature,
			MaxTokens:   a.cfg.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) &&
				apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 &&
				apiErr.HTTPStatusCode != 429 {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("no choices in response"))
		}
		reply = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 10 * time.Second
	if err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.WithContext(b, ctx), a.cfg.MaxRetries)); err != nil {
		return "", err
	}
	return reply, nil
}

func fallback(raw string) output.Decision {
	return output.Decision{Action: entity.SafeDefault(), Fallback: true, Raw: raw}
}
