package knowledge

import "errors"

var (
	// ErrRepositoryRequired is returned when a document repository is not provided.
	ErrRepositoryRequired = errors.New("document repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrNoDocuments is returned when an ingest call carries no documents.
	ErrNoDocuments = errors.New("no documents to ingest")
)
