package pipeline

import "errors"

var (
	// ErrProviderRequired is returned when a backend provider is not provided.
	ErrProviderRequired = errors.New("backend provider required")

	// ErrRegistryRequired is returned when a resilience registry is not provided.
	ErrRegistryRequired = errors.New("resilience registry required")

	// ErrNoRetrievalBackend is returned when neither a vector backend nor a
	// web-search backend is configured.
	ErrNoRetrievalBackend = errors.New("at least one retrieval backend required")
)
