// Package collab is the session orchestrator: it owns the session
// aggregate, sequences message appends, fans generation out to
// participants, and is the only writer of session state.
package collab

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/app/assembly"
	"inkwell/internal/app/dispatch"
	"inkwell/internal/app/ledger"
	"inkwell/internal/domain"
	"inkwell/internal/events"
	"inkwell/internal/observability"
	"inkwell/internal/registry"
)

const defaultMaxAttempts = 3

type Service struct {
	store      domain.SessionStore
	registry   *registry.Registry
	assembler  *assembly.Assembler
	dispatcher *dispatch.Dispatcher
	bus        *events.Bus

	window      int
	maxAttempts int
	backoffBase time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// mu serializes the read-modify-write append path. Generation
	// itself runs outside the lock so a slow role cannot block
	// appends from a fast one.
	mu sync.Mutex
}

func NewService(
	store domain.SessionStore,
	reg *registry.Registry,
	assembler *assembly.Assembler,
	dispatcher *dispatch.Dispatcher,
	bus *events.Bus,
) *Service {
	return &Service{
		store:       store,
		registry:    reg,
		assembler:   assembler,
		dispatcher:  dispatcher,
		bus:         bus,
		window:      assembly.DefaultWindow,
		maxAttempts: defaultMaxAttempts,
		backoffBase: 500 * time.Millisecond,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// WithWindow overrides the context window handed to the assembler.
func (s *Service) WithWindow(n int) *Service {
	if n > 0 {
		s.window = n
	}
	return s
}

// ─────────────────────────────────────────────
// CreateSession
// ─────────────────────────────────────────────

type CreateSessionInput struct {
	StoryID domain.StoryID
	Title   string
	Roles   []domain.Role
}

func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*domain.Session, error) {
	if len(in.Roles) == 0 {
		return nil, &domain.ValidationError{Msg: "a session needs at least one role"}
	}
	seen := make(map[domain.RoleID]bool, len(in.Roles))
	for _, role := range in.Roles {
		if err := role.Validate(); err != nil {
			return nil, err
		}
		if seen[role.ID] {
			return nil, &domain.ValidationError{Msg: "duplicate role in session: " + string(role.ID)}
		}
		seen[role.ID] = true
	}

	log := observability.LoggerFromContext(ctx).With(
		"story_id", in.StoryID,
		"roles", len(in.Roles),
	)
	log.Info("creating collaboration session")

	now := s.now()
	session := &domain.Session{
		ID:           domain.SessionID(uuid.NewString()),
		StoryID:      in.StoryID,
		Title:        in.Title,
		Participants: make([]domain.Participant, 0, len(in.Roles)),
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, role := range in.Roles {
		session.Participants = append(session.Participants, domain.Participant{Role: role})
	}

	if err := s.store.Create(ctx, session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	log.Info("session created", "session_id", session.ID)
	return session, nil
}

// ─────────────────────────────────────────────
// AddMessage
// ─────────────────────────────────────────────

type AddMessageInput struct {
	SessionID domain.SessionID
	Speaker   domain.Speaker
	Content   string
	Kind      domain.Capability // optional tag; empty for plain turns
}

func (s *Service) AddMessage(ctx context.Context, in AddMessageInput) (*domain.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, &domain.ValidationError{Msg: "message content must not be empty"}
	}

	msg := domain.Message{
		ID:         domain.MessageID(uuid.NewString()),
		Speaker:    in.Speaker,
		Content:    in.Content,
		Timestamp:  s.now(),
		Suggestion: domain.SuggestionNone,
		Kind:       in.Kind,
	}

	appended, _, err := s.append(ctx, in.SessionID, msg)
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info("message appended",
		"session_id", in.SessionID,
		"speaker", string(in.Speaker),
	)
	return appended, nil
}

// append is the single-writer path. It re-reads the session under the
// lock, so a result that arrives after archival is detected here.
// dropOnArchived selects between erroring (user turns) and silent
// discard (late generation arrivals).
func (s *Service) append(ctx context.Context, sessionID domain.SessionID, msg domain.Message) (*domain.Message, bool, error) {
	return s.appendMode(ctx, sessionID, msg, false)
}

func (s *Service) appendMode(ctx context.Context, sessionID domain.SessionID, msg domain.Message, dropOnArchived bool) (*domain.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if session.Archived() {
		if dropOnArchived {
			return nil, true, nil
		}
		return nil, false, &domain.ArchivedError{SessionID: sessionID}
	}

	if err := session.Append(msg); err != nil {
		return nil, false, err
	}
	session.UpdatedAt = s.now()

	if err := s.store.Put(ctx, session); err != nil {
		return nil, false, err
	}

	stored := session.FindMessage(msg.ID)
	s.bus.Emit(events.TopicMessageNew, events.MessagePayload{
		SessionID: sessionID,
		Message:   *stored,
	})
	out := *stored
	return &out, false, nil
}

// ─────────────────────────────────────────────
// GenerateResponses
// ─────────────────────────────────────────────

type GenerateInput struct {
	SessionID domain.SessionID
	RoleIDs   []domain.RoleID
	Extras    dispatch.Extras
}

// RoleResult is one fan-out slot: exactly one of Message, Err, or
// Dropped describes the outcome for the role.
type RoleResult struct {
	RoleID    domain.RoleID
	RequestID string
	Message   *domain.Message
	Err       error
	// Dropped marks a generation that completed after the session was
	// archived; its content was discarded, not appended.
	Dropped bool
}

// GenerateResponses fans out to the dispatcher for each requested
// role in parallel. Slots fail independently: one role's error never
// aborts its siblings. Successful results are appended and emitted as
// they complete, so a slow role does not block a fast one. An empty
// role list is a no-op.
func (s *Service) GenerateResponses(ctx context.Context, in GenerateInput) ([]RoleResult, error) {
	session, err := s.store.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Archived() {
		return nil, &domain.ArchivedError{SessionID: in.SessionID}
	}
	if len(in.RoleIDs) == 0 {
		return []RoleResult{}, nil
	}

	log := observability.LoggerFromContext(ctx).With("session_id", in.SessionID)
	log.Info("fanning out generation", "roles", len(in.RoleIDs))

	results := make([]RoleResult, len(in.RoleIDs))
	var wg sync.WaitGroup
	for i, roleID := range in.RoleIDs {
		requestID := uuid.NewString()
		results[i] = RoleResult{RoleID: roleID, RequestID: requestID}

		participant := session.Participant(roleID)
		if participant == nil {
			results[i].Err = &domain.NotFoundError{Kind: "role", ID: string(roleID)}
			continue
		}
		role := participant.Role

		wg.Add(1)
		go func(slot *RoleResult, role domain.Role) {
			defer wg.Done()
			s.generateOne(ctx, session, role, in.Extras, slot)
		}(&results[i], role)
	}
	wg.Wait()

	return results, nil
}

func (s *Service) generateOne(ctx context.Context, snapshot *domain.Session, role domain.Role, extras dispatch.Extras, slot *RoleResult) {
	log := observability.LoggerFromContext(ctx).With(
		"session_id", snapshot.ID,
		"role_id", role.ID,
		"request_id", slot.RequestID,
	)

	bundle := s.assembler.Assemble(ctx, snapshot, role, s.window)

	content, err := s.generateWithRetry(ctx, role, bundle, extras)
	if err != nil {
		log.Error("role generation failed", "error", err)
		slot.Err = err
		return
	}

	kind := role.Capability
	if kind == domain.CapabilityGeneric {
		kind = ""
	}
	msg := domain.Message{
		ID:         domain.MessageID(uuid.NewString()),
		Speaker:    domain.Speaker(role.ID),
		Content:    content,
		Timestamp:  s.now(),
		Suggestion: domain.SuggestionProposed,
		Kind:       kind,
	}

	appended, dropped, err := s.appendMode(ctx, snapshot.ID, msg, true)
	if err != nil {
		slot.Err = err
		return
	}
	if dropped {
		log.Info("discarding late generation result, session archived")
		slot.Dropped = true
		return
	}
	slot.Message = appended
}

// generateWithRetry retries retryable generation failures with
// exponential backoff, up to the attempt cap. Each fan-out slot gets
// its own budget.
func (s *Service) generateWithRetry(ctx context.Context, role domain.Role, bundle assembly.Bundle, extras dispatch.Extras) (string, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoffDuration(s.backoffBase, attempt)
			observability.LoggerFromContext(ctx).Warn("retrying generation",
				"role_id", role.ID,
				"attempt", attempt+1,
				"retry_in_ms", wait.Milliseconds(),
			)
			if err := s.sleep(ctx, wait); err != nil {
				return "", &domain.GenerationError{Err: err}
			}
		}

		content, err := s.dispatcher.Generate(ctx, role, bundle, extras)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}
	return "", lastErr
}

// ─────────────────────────────────────────────
// Suggestion lifecycle
// ─────────────────────────────────────────────

func (s *Service) AcceptSuggestion(ctx context.Context, sessionID domain.SessionID, messageID domain.MessageID) error {
	return s.transitionSuggestion(ctx, sessionID, messageID, ledger.MarkAccepted)
}

func (s *Service) RejectSuggestion(ctx context.Context, sessionID domain.SessionID, messageID domain.MessageID) error {
	return s.transitionSuggestion(ctx, sessionID, messageID, ledger.MarkRejected)
}

func (s *Service) transitionSuggestion(ctx context.Context, sessionID domain.SessionID, messageID domain.MessageID, mark func(*domain.Message) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Archived() {
		return &domain.ArchivedError{SessionID: sessionID}
	}

	msg := session.FindMessage(messageID)
	if msg == nil {
		return &domain.NotFoundError{Kind: "message", ID: string(messageID)}
	}

	before := msg.Suggestion
	if err := mark(msg); err != nil {
		return err
	}
	if msg.Suggestion == before {
		// idempotent repeat, nothing to persist or announce
		return nil
	}

	session.UpdatedAt = s.now()
	if err := s.store.Put(ctx, session); err != nil {
		return err
	}

	s.bus.Emit(events.TopicSuggestionChanged, events.SuggestionPayload{
		SessionID: sessionID,
		MessageID: messageID,
		State:     msg.Suggestion,
	})

	observability.LoggerFromContext(ctx).Info("suggestion state changed",
		"session_id", sessionID,
		"message_id", messageID,
		"state", string(msg.Suggestion),
	)
	return nil
}

// ─────────────────────────────────────────────
// Archive and reads
// ─────────────────────────────────────────────

// Archive moves the session to its terminal state. Archiving an
// already-archived session is a no-op.
func (s *Service) Archive(ctx context.Context, sessionID domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Archived() {
		return nil
	}

	session.Status = domain.StatusArchived
	session.UpdatedAt = s.now()
	if err := s.store.Put(ctx, session); err != nil {
		return err
	}

	s.bus.Emit(events.TopicSessionArchived, events.ArchivedPayload{SessionID: sessionID})
	observability.LoggerFromContext(ctx).Info("session archived", "session_id", sessionID)
	return nil
}

// RecentMessages returns the chronological tail across every lane,
// ascending, at most limit entries.
func (s *Service) RecentMessages(ctx context.Context, sessionID domain.SessionID, limit int) ([]domain.Message, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	all := session.Messages()
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// MergeAccepted folds every accepted suggestion into the canonical
// artifact text.
func (s *Service) MergeAccepted(ctx context.Context, sessionID domain.SessionID) (string, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return ledger.MergeAccepted(session), nil
}

// PendingSuggestions lists suggestions still awaiting a decision.
func (s *Service) PendingSuggestions(ctx context.Context, sessionID domain.SessionID) ([]domain.Message, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ledger.Pending(session), nil
}

func (s *Service) GetSession(ctx context.Context, sessionID domain.SessionID) (*domain.Session, error) {
	return s.store.Get(ctx, sessionID)
}

func (s *Service) ListSessions(ctx context.Context, storyID domain.StoryID) ([]*domain.Session, error) {
	return s.store.ListByStory(ctx, storyID)
}
