package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the engine, its adapters and the API layer.
// Callers match them with errors.Is; adapters wrap them with goerr to record
// which sub-step failed.
var (
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	ErrInvalidInput        = errors.New("invalid embedding input")
	ErrStoreUnavailable    = errors.New("vector store unavailable")
	ErrNoUnusedIdeas       = errors.New("no unused ideas")
	ErrIdeaNotFound        = errors.New("idea not found")
	ErrIdeaAlreadyUsed     = errors.New("idea already used")
	ErrInvalidIdea         = errors.New("invalid idea")
	ErrGenerationFailed    = errors.New("content generation failed")
	ErrPublishFailed       = errors.New("publication failed on every platform")
)

// StoreError marks cause as a vector store failure while keeping it in the chain.
func StoreError(cause error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, cause)
}

// ProviderError marks cause as an embedding provider failure.
func ProviderError(cause error) error {
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, cause)
}
