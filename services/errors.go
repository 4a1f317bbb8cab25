package services

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrTripTooLong         = errors.New("trip is longer than your plan allows")
	ErrInvalidAIOutput     = errors.New("invalid AI output")
	ErrItineraryNotFound   = errors.New("itinerary not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnknownPlan         = errors.New("unknown plan")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)

// GenerationError is returned when both providers failed. Err is the last
// provider's error and is kept for diagnostics.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
