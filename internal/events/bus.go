// Package events is the in-process publish/subscribe channel between
// the orchestrator and its observers. A Bus is constructed and
// injected, never a package-level singleton, so sessions and tests do
// not share hidden state.
package events

import (
	"sync"

	"inkwell/internal/domain"
	"inkwell/internal/observability"
)

type Topic string

const (
	TopicMessageNew        Topic = "message:new"
	TopicSuggestionChanged Topic = "suggestion:changed"
	TopicSessionArchived   Topic = "session:archived"
)

// MessagePayload accompanies TopicMessageNew.
type MessagePayload struct {
	SessionID domain.SessionID
	Message   domain.Message
}

// SuggestionPayload accompanies TopicSuggestionChanged.
type SuggestionPayload struct {
	SessionID domain.SessionID
	MessageID domain.MessageID
	State     domain.SuggestionState
}

// ArchivedPayload accompanies TopicSessionArchived.
type ArchivedPayload struct {
	SessionID domain.SessionID
}

// Handler receives every payload emitted on its topic. Dispatch is
// synchronous relative to the emitter; handlers must not block.
type Handler func(topic Topic, payload any)

type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic]map[int]Handler)}
}

// Subscribe registers a handler and returns a token for Unsubscribe.
func (b *Bus) Subscribe(topic Topic, h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.nextID++
	b.subs[topic][b.nextID] = h
	return b.nextID
}

func (b *Bus) Unsubscribe(topic Topic, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], id)
}

// Emit delivers payload to every handler on topic. A panicking
// handler is logged and does not stop delivery to the others.
func (b *Bus) Emit(topic Topic, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(topic, h, payload)
	}
}

func (b *Bus) dispatch(topic Topic, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			observability.Logger().Error("event handler panicked",
				"topic", string(topic),
				"panic", r)
		}
	}()
	h(topic, payload)
}
