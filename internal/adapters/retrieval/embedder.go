package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const defaultHashDim = 128

// HashEmbedder is a deterministic local embedder: tokens are hashed
// into a fixed-size bag-of-words vector. Good enough for tests and
// for running retrieval without a cloud dependency; not a semantic
// embedding.
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dim: defaultHashDim}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := e.Dim
	if dim <= 0 {
		dim = defaultHashDim
	}

	vec := make([]float32, dim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(dim)]++
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag > 0 {
		norm := float32(math.Sqrt(mag))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
