package domain

import "context"

// PromptMessage is one turn handed to the generation collaborator.
type PromptMessage struct {
	Speaker Speaker
	Content string
}

// Completer is the generation collaborator: one stateless call per
// request. Failures surface as *GenerationError.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, messages []PromptMessage, temperature float32) (string, error)
}

// SessionStore defines session persistence. Implementations return
// deep copies; last-write-wins per session, no transaction semantics.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Put(ctx context.Context, session *Session) error
	Get(ctx context.Context, id SessionID) (*Session, error)
	ListByStory(ctx context.Context, storyID StoryID) ([]*Session, error)
}

// Retrieved is one long-term memory hit, scored by cosine similarity.
type Retrieved struct {
	MessageID MessageID
	Text      string
	Score     float64
}

// Retriever is the optional long-term memory collaborator used to
// enrich generation context.
type Retriever interface {
	Search(ctx context.Context, queryEmbedding []float32, limit int) ([]Retrieved, error)
}

// Embedder turns text into the vector space the Retriever searches.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SettingStore persists merged setting content per story and type.
type SettingStore interface {
	PutSetting(ctx context.Context, setting *Setting) error
	GetSetting(ctx context.Context, storyID StoryID, t SettingType) (*Setting, error)
}
