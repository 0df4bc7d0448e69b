// Package retrieval provides the optional long-term memory
// collaborators: an in-memory vector store ranked by cosine
// similarity, and embedders that map text into its vector space.
package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"

	"inkwell/internal/domain"
)

// Record is one stored memory.
type Record struct {
	MessageID domain.MessageID
	Text      string
	Embedding []float32
}

// VectorStore is an in-memory Retriever keyed by message id. Adding a
// record with an existing id replaces it.
type VectorStore struct {
	mu      sync.RWMutex
	records map[domain.MessageID]Record
}

func NewVectorStore() *VectorStore {
	return &VectorStore{records: make(map[domain.MessageID]Record)}
}

func (v *VectorStore) Add(records ...Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range records {
		v.records[r.MessageID] = r
	}
}

// Search implements domain.Retriever: every record scored by cosine
// similarity against the query, best first, at most limit results.
func (v *VectorStore) Search(ctx context.Context, queryEmbedding []float32, limit int) ([]domain.Retrieved, error) {
	v.mu.RLock()
	out := make([]domain.Retrieved, 0, len(v.records))
	for _, r := range v.records {
		out = append(out, domain.Retrieved{
			MessageID: r.MessageID,
			Text:      r.Text,
			Score:     cosineSimilarity(queryEmbedding, r.Embedding),
		})
	}
	v.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].MessageID < out[j].MessageID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
