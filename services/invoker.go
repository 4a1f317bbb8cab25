package services

import (
	"context"
	"errors"
	"log/slog"
)

// Invoker runs the primary provider and, on any failure, the fallback
// provider exactly once with the same prompt.
type Invoker struct {
	primary  Provider
	fallback Provider
	logger   *slog.Logger
}

// NewInvoker accepts a nil primary or fallback when that provider is not configured.
func NewInvoker(primary, fallback Provider, logger *slog.Logger) *Invoker {
	return &Invoker{primary: primary, fallback: fallback, logger: logger}
}

func (i *Invoker) Generate(ctx context.Context, profile TierProfile, prompt Prompt) (*Generated, error) {
	var (
		lastErr      error
		lastProvider string
	)

	if i.primary != nil {
		gen, err := i.attempt(ctx, i.primary, profile.PrimaryModel, profile, prompt)
		if err == nil {
			return gen, nil
		}
		i.logger.Warn("primary provider failed, trying fallback",
			"provider", i.primary.Name(), "model", profile.PrimaryModel, "error", err)
		lastErr, lastProvider = err, i.primary.Name()
	}

	if i.fallback != nil {
		gen, err := i.attempt(ctx, i.fallback, profile.FallbackModel, profile, prompt)
		if err == nil {
			return gen, nil
		}
		i.logger.Error("fallback provider failed",
			"provider", i.fallback.Name(), "model", profile.FallbackModel, "error", err)
		lastErr, lastProvider = err, i.fallback.Name()
	}

	if lastErr == nil {
		lastErr = errors.New("no text-generation provider configured")
		lastProvider = "none"
	}
	return nil, &GenerationError{Provider: lastProvider, Err: lastErr}
}

func (i *Invoker) attempt(ctx context.Context, p Provider, model string, profile TierProfile, prompt Prompt) (*Generated, error) {
	text, err := p.Complete(ctx, CompletionRequest{
		Model:           model,
		System:          prompt.System,
		MaxTokens:       maxCompletionTokens,
		SearchAugmented: profile.SearchAugmented,
	})
	if err != nil {
		return nil, err
	}

	gen, err := Normalize(text)
	if err != nil {
		return nil, err
	}
	gen.Provider = p.Name()
	return gen, nil
}
