// Package assembly builds the bounded prompt context handed to a
// generation call: the chronological tail of the whole session,
// optionally enriched with semantically similar long-term memories.
package assembly

import (
	"context"

	"inkwell/internal/domain"
	"inkwell/internal/observability"
)

const DefaultWindow = 10

// Entry is one context line. Retrieved entries come from the memory
// collaborator rather than the recency window.
type Entry struct {
	MessageID domain.MessageID
	Speaker   domain.Speaker
	Content   string
	Retrieved bool
}

// Bundle is the assembled context for a single generation call,
// oldest entry first.
type Bundle struct {
	Entries []Entry
}

// LatestUser returns the content of the newest user turn in the
// bundle, or "".
func (b Bundle) LatestUser() string {
	for i := len(b.Entries) - 1; i >= 0; i-- {
		if b.Entries[i].Speaker.IsUser() {
			return b.Entries[i].Content
		}
	}
	return ""
}

type Assembler struct {
	retriever domain.Retriever
	embedder  domain.Embedder
	topK      int
}

// New builds a recency-only assembler. Retrieval enrichment is opt-in
// via WithRetrieval.
func New() *Assembler {
	return &Assembler{}
}

// WithRetrieval enables the semantic pass. Both collaborators are
// required; topK bounds the number of retrieved entries.
func (a *Assembler) WithRetrieval(retriever domain.Retriever, embedder domain.Embedder, topK int) *Assembler {
	a.retriever = retriever
	a.embedder = embedder
	a.topK = topK
	return a
}

// Assemble returns the last window messages across every lane of the
// session, oldest first. When retrieval is configured, the top-K
// memories most similar to the latest user message are placed ahead
// of the recency window, de-duplicated by message id. Collaborator
// failure degrades to recency-only; it is never fatal.
func (a *Assembler) Assemble(ctx context.Context, session *domain.Session, role domain.Role, window int) Bundle {
	if window <= 0 {
		window = DefaultWindow
	}

	all := session.Messages()
	if len(all) > window {
		all = all[len(all)-window:]
	}

	tail := make([]Entry, 0, len(all))
	seen := make(map[domain.MessageID]bool, len(all))
	for _, m := range all {
		tail = append(tail, Entry{
			MessageID: m.ID,
			Speaker:   m.Speaker,
			Content:   m.Content,
		})
		seen[m.ID] = true
	}

	retrieved := a.retrieve(ctx, session, tail, seen)
	return Bundle{Entries: append(retrieved, tail...)}
}

func (a *Assembler) retrieve(ctx context.Context, session *domain.Session, tail []Entry, seen map[domain.MessageID]bool) []Entry {
	if a.retriever == nil || a.embedder == nil {
		return nil
	}

	query := Bundle{Entries: tail}.LatestUser()
	if query == "" {
		return nil
	}

	log := observability.LoggerFromContext(ctx).With("session_id", session.ID)

	embedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn("embedding failed, assembling recency-only context", "error", err)
		return nil
	}

	hits, err := a.retriever.Search(ctx, embedding, a.topK)
	if err != nil {
		log.Warn("retrieval failed, assembling recency-only context", "error", err)
		return nil
	}

	var out []Entry
	for _, hit := range hits {
		if seen[hit.MessageID] {
			continue
		}
		out = append(out, Entry{
			MessageID: hit.MessageID,
			Speaker:   domain.SpeakerUser,
			Content:   hit.Text,
			Retrieved: true,
		})
	}
	return out
}
