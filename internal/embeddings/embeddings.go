// Package embeddings provides a swappable interface for text embedding generation.
package embeddings

import (
	"context"
	"errors"

	pgvector "github.com/pgvector/pgvector-go"
)

// Dimensions is the embedding vector size (768 = nomic-embed-text / text-embedding-004).
// OpenAI text-embedding-3-small also supports 768 via the dimensions parameter.
const Dimensions = 768

// Provider failure modes. Callers match with errors.Is; the refresh pipeline
// re-raises these so the delivery layer can apply backoff.
var (
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	ErrRateLimited         = errors.New("embedding provider rate limited")
	ErrMalformedResponse   = errors.New("malformed embedding response")
)

// Provider generates text embeddings.
type Provider interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) (pgvector.Vector, error)

	// Name returns the provider name for logging.
	Name() string
}
