package services

import "context"

const maxCompletionTokens = 8000

// CompletionRequest is one single-message call to a hosted model.
type CompletionRequest struct {
	Model           string
	System          string
	MaxTokens       int
	SearchAugmented bool
}

// Provider is a hosted text-generation API.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
