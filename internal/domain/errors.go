package domain

import "fmt"

// NotFoundError reports an unknown session, role, message or setting id.
// Never retried; always surfaced to the caller.
type NotFoundError struct {
	Kind string // "session", "role", "message", "setting"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ValidationError reports rejected input (empty content, empty role set).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// ArchivedError reports a mutation attempted on an archived session.
type ArchivedError struct {
	SessionID SessionID
}

func (e *ArchivedError) Error() string {
	return fmt.Sprintf("session %s is archived", e.SessionID)
}

// SuggestionStateError reports an invalid suggestion transition,
// e.g. rejecting an already-accepted suggestion or accepting a
// message that is not a suggestion at all.
type SuggestionStateError struct {
	MessageID MessageID
	From      SuggestionState
	To        SuggestionState
}

func (e *SuggestionStateError) Error() string {
	return fmt.Sprintf("message %s: cannot move suggestion from %s to %s", e.MessageID, e.From, e.To)
}

// GenerationError classifies an upstream completion failure by
// HTTP-like status. Status zero means the failure never reached the
// provider (network, context cancellation).
type GenerationError struct {
	Status int
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("generation failed (status %d)", e.Status)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying with backoff.
func (e *GenerationError) Retryable() bool {
	switch e.Status {
	case 429, 503, 504:
		return true
	}
	return false
}
