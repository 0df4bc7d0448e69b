package assembly_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/app/assembly"
	"inkwell/internal/domain"
)

type stubEmbedder struct {
	err error
}

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

type stubRetriever struct {
	hits []domain.Retrieved
	err  error
}

func (s stubRetriever) Search(ctx context.Context, queryEmbedding []float32, limit int) ([]domain.Retrieved, error) {
	return s.hits, s.err
}

func sessionWithTurns(n int) *domain.Session {
	s := &domain.Session{
		ID:     "s1",
		Status: domain.StatusActive,
		Participants: []domain.Participant{
			{Role: domain.Role{ID: "plot-advisor", Name: "Plot Advisor", SystemPrompt: "p", Capability: domain.CapabilityPlot}},
		},
	}
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		sp := domain.SpeakerUser
		if i%2 == 1 {
			sp = "plot-advisor"
		}
		_ = s.Append(domain.Message{
			ID:        domain.MessageID(rune('a' + i)),
			Speaker:   sp,
			Content:   "turn",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	return s
}

func TestAssembleKeepsChronologicalTail(t *testing.T) {
	s := sessionWithTurns(15)

	bundle := assembly.New().Assemble(context.Background(), s, s.Participants[0].Role, 10)

	require.Len(t, bundle.Entries, 10)
	all := s.Messages()
	assert.Equal(t, all[len(all)-10].ID, bundle.Entries[0].MessageID)
	assert.Equal(t, all[len(all)-1].ID, bundle.Entries[9].MessageID)
}

func TestAssembleShortSessionTakesEverything(t *testing.T) {
	s := sessionWithTurns(3)

	bundle := assembly.New().Assemble(context.Background(), s, s.Participants[0].Role, 10)

	assert.Len(t, bundle.Entries, 3)
}

func TestAssembleMergesRetrievedEntriesFirst(t *testing.T) {
	s := sessionWithTurns(4)
	retriever := stubRetriever{hits: []domain.Retrieved{
		{MessageID: "old-1", Text: "the dragon sleeps under the city", Score: 0.9},
	}}

	a := assembly.New().WithRetrieval(retriever, stubEmbedder{}, 3)
	bundle := a.Assemble(context.Background(), s, s.Participants[0].Role, 10)

	require.Len(t, bundle.Entries, 5)
	assert.True(t, bundle.Entries[0].Retrieved)
	assert.Equal(t, domain.MessageID("old-1"), bundle.Entries[0].MessageID)
	assert.False(t, bundle.Entries[1].Retrieved)
}

func TestAssembleDeduplicatesRetrievedAgainstTail(t *testing.T) {
	s := sessionWithTurns(4)
	inWindow := s.Messages()[3].ID
	retriever := stubRetriever{hits: []domain.Retrieved{
		{MessageID: inWindow, Text: "already present", Score: 0.99},
	}}

	a := assembly.New().WithRetrieval(retriever, stubEmbedder{}, 3)
	bundle := a.Assemble(context.Background(), s, s.Participants[0].Role, 10)

	assert.Len(t, bundle.Entries, 4)
	for _, e := range bundle.Entries {
		assert.False(t, e.Retrieved)
	}
}

func TestAssembleDegradesWhenEmbeddingFails(t *testing.T) {
	s := sessionWithTurns(4)

	a := assembly.New().WithRetrieval(stubRetriever{}, stubEmbedder{err: errors.New("quota")}, 3)
	bundle := a.Assemble(context.Background(), s, s.Participants[0].Role, 10)

	assert.Len(t, bundle.Entries, 4)
}

func TestAssembleDegradesWhenSearchFails(t *testing.T) {
	s := sessionWithTurns(4)
	retriever := stubRetriever{err: errors.New("unavailable")}

	a := assembly.New().WithRetrieval(retriever, stubEmbedder{}, 3)
	bundle := a.Assemble(context.Background(), s, s.Participants[0].Role, 10)

	assert.Len(t, bundle.Entries, 4)
}

func TestLatestUser(t *testing.T) {
	bundle := assembly.Bundle{Entries: []assembly.Entry{
		{Speaker: domain.SpeakerUser, Content: "first ask"},
		{Speaker: "plot-advisor", Content: "an idea"},
		{Speaker: domain.SpeakerUser, Content: "latest ask"},
	}}

	assert.Equal(t, "latest ask", bundle.LatestUser())
	assert.Equal(t, "", assembly.Bundle{}.LatestUser())
}
