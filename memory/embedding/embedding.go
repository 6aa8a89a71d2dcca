// Package embedding turns text into vectors for the semantic memory
// backends. Two implementations are provided: an OpenAI-backed embedder for
// real deployments and a deterministic local embedder for offline use.
package embedding

import "context"

// Embedder converts text into a fixed-size embedding vector.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
