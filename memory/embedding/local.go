package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const localDimensions = 128

// LocalEmbedder produces deterministic vectors by hashing word tokens into a
// fixed number of buckets. It needs no network access and always returns the
// same vector for the same text, which makes it suitable for development and
// tests. The vectors carry no real semantic signal beyond token overlap.
type LocalEmbedder struct {
	dimensions int
}

// NewLocalEmbedder creates a deterministic embedder with 128 dimensions.
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{dimensions: localDimensions}
}

// Embed implements Embedder.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum32()

		bucket := int(sum % uint32(e.dimensions))

		// Alternate sign based on a second hash bit so vectors are not
		// all-positive, which would inflate cosine similarity.
		if sum&0x80000000 != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	return normalize(vec), nil
}

// Dimensions implements Embedder.
func (e *LocalEmbedder) Dimensions() int { return e.dimensions }

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	if sum == 0 {
		return vec
	}

	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}

	return vec
}
