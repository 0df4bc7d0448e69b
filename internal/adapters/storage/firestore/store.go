package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"inkwell/internal/domain"
)

// Store persists each session as a single document holding its full
// aggregate. Last-write-wins per session matches the port contract.
type Store struct {
	client *firestore.Client
}

func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDocRef(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type roleDoc struct {
	ID                 string  `firestore:"id"`
	Name               string  `firestore:"name"`
	Description        string  `firestore:"description"`
	SystemPrompt       string  `firestore:"system_prompt"`
	Capability         string  `firestore:"capability"`
	DefaultTemperature float64 `firestore:"default_temperature"`
}

type messageDoc struct {
	ID         string    `firestore:"id"`
	Speaker    string    `firestore:"speaker"`
	Content    string    `firestore:"content"`
	Timestamp  time.Time `firestore:"timestamp"`
	Suggestion string    `firestore:"suggestion"`
	Kind       string    `firestore:"kind"`
}

type participantDoc struct {
	Role     roleDoc      `firestore:"role"`
	Messages []messageDoc `firestore:"messages"`
}

type sessionDoc struct {
	StoryID      string           `firestore:"story_id"`
	Title        string           `firestore:"title"`
	Status       string           `firestore:"status"`
	Participants []participantDoc `firestore:"participants"`
	UserMessages []messageDoc     `firestore:"user_messages"`
	CreatedAt    time.Time        `firestore:"created_at"`
	UpdatedAt    time.Time        `firestore:"updated_at"`
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) Create(ctx context.Context, session *domain.Session) error {
	_, err := s.sessionDocRef(session.ID).Create(ctx, toSessionDoc(session))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return &domain.ValidationError{Msg: "session already exists: " + string(session.ID)}
		}
		return fmt.Errorf("firestore Create: %w", err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, session *domain.Session) error {
	_, err := s.sessionDocRef(session.ID).Set(ctx, toSessionDoc(session))
	if err != nil {
		return fmt.Errorf("firestore Put: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionDocRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, &domain.NotFoundError{Kind: "session", ID: string(id)}
		}
		return nil, fmt.Errorf("firestore Get: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore Get decode: %w", err)
	}
	return fromSessionDoc(id, &doc), nil
}

func (s *Store) ListByStory(ctx context.Context, storyID domain.StoryID) ([]*domain.Session, error) {
	q := s.sessionsCol().
		Where("story_id", "==", string(storyID)).
		OrderBy("created_at", firestore.Asc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Session
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListByStory: %w", err)
		}

		var doc sessionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode sessionDoc: %w", err)
		}
		out = append(out, fromSessionDoc(domain.SessionID(snap.Ref.ID), &doc))
	}
	return out, nil
}

// ─────────────────────────────────────────
// Mapping helpers
// ─────────────────────────────────────────

func toSessionDoc(session *domain.Session) sessionDoc {
	doc := sessionDoc{
		StoryID:      string(session.StoryID),
		Title:        session.Title,
		Status:       string(session.Status),
		UserMessages: toMessageDocs(session.UserMessages),
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}
	for _, p := range session.Participants {
		doc.Participants = append(doc.Participants, participantDoc{
			Role: roleDoc{
				ID:                 string(p.Role.ID),
				Name:               p.Role.Name,
				Description:        p.Role.Description,
				SystemPrompt:       p.Role.SystemPrompt,
				Capability:         string(p.Role.Capability),
				DefaultTemperature: float64(p.Role.DefaultTemperature),
			},
			Messages: toMessageDocs(p.Messages),
		})
	}
	return doc
}

func toMessageDocs(msgs []domain.Message) []messageDoc {
	out := make([]messageDoc, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageDoc{
			ID:         string(m.ID),
			Speaker:    string(m.Speaker),
			Content:    m.Content,
			Timestamp:  m.Timestamp,
			Suggestion: string(m.Suggestion),
			Kind:       string(m.Kind),
		})
	}
	return out
}

func fromSessionDoc(id domain.SessionID, doc *sessionDoc) *domain.Session {
	session := &domain.Session{
		ID:           id,
		StoryID:      domain.StoryID(doc.StoryID),
		Title:        doc.Title,
		Status:       domain.SessionStatus(doc.Status),
		UserMessages: fromMessageDocs(doc.UserMessages),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	for _, p := range doc.Participants {
		session.Participants = append(session.Participants, domain.Participant{
			Role: domain.Role{
				ID:                 domain.RoleID(p.Role.ID),
				Name:               p.Role.Name,
				Description:        p.Role.Description,
				SystemPrompt:       p.Role.SystemPrompt,
				Capability:         domain.Capability(p.Role.Capability),
				DefaultTemperature: float32(p.Role.DefaultTemperature),
			},
			Messages: fromMessageDocs(p.Messages),
		})
	}
	return session
}

func fromMessageDocs(docs []messageDoc) []domain.Message {
	out := make([]domain.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Message{
			ID:         domain.MessageID(d.ID),
			Speaker:    domain.Speaker(d.Speaker),
			Content:    d.Content,
			Timestamp:  d.Timestamp,
			Suggestion: domain.SuggestionState(d.Suggestion),
			Kind:       domain.Capability(d.Kind),
		})
	}
	return out
}
