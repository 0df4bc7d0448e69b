// Package ledger is the accept/reject state machine for assistant
// suggestions, plus the merge that folds accepted suggestions into
// canonical text. Everything here is synchronous and operates on the
// aggregate the caller holds; persistence stays with the caller.
package ledger

import (
	"sort"
	"strings"

	"inkwell/internal/domain"
)

// MarkAccepted moves a proposed suggestion to accepted. Accepting an
// already-accepted suggestion is a no-op; accepting a rejected one,
// or a message that is not a suggestion, is a SuggestionStateError.
func MarkAccepted(m *domain.Message) error {
	return transition(m, domain.SuggestionAccepted)
}

// MarkRejected is symmetric to MarkAccepted.
func MarkRejected(m *domain.Message) error {
	return transition(m, domain.SuggestionRejected)
}

func transition(m *domain.Message, to domain.SuggestionState) error {
	switch {
	case !m.IsSuggestion():
		return &domain.SuggestionStateError{MessageID: m.ID, From: domain.SuggestionNone, To: to}
	case m.Suggestion == to:
		return nil // idempotent repeat
	case m.Suggestion == domain.SuggestionProposed:
		m.Suggestion = to
		return nil
	default:
		// accepted and rejected are mutually exclusive and terminal
		return &domain.SuggestionStateError{MessageID: m.ID, From: m.Suggestion, To: to}
	}
}

// MergeAccepted concatenates every accepted suggestion across the
// session in timestamp order, separated by blank lines. Pure; merging
// twice without new accepts yields identical output.
func MergeAccepted(s *domain.Session) string {
	var accepted []domain.Message
	for i := range s.Participants {
		for _, m := range s.Participants[i].Messages {
			if m.Suggestion == domain.SuggestionAccepted {
				accepted = append(accepted, m)
			}
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Timestamp.Before(accepted[j].Timestamp)
	})

	var b strings.Builder
	for _, m := range accepted {
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// Pending returns every suggestion still awaiting a decision, in
// timestamp order.
func Pending(s *domain.Session) []domain.Message {
	var out []domain.Message
	for _, m := range s.Messages() {
		if m.Suggestion == domain.SuggestionProposed {
			out = append(out, m)
		}
	}
	return out
}
