package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"inkwell/internal/domain"
)

// Store keeps sessions in a local SQLite database. Each Put rewrites
// the session's lanes wholesale, matching the last-write-wins contract
// of the SessionStore port.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "inkwell.db"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single writer keeps lane rewrites atomic without busy retries.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			story_id   TEXT NOT NULL,
			title      TEXT NOT NULL,
			status     TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS participants (
			session_id    TEXT NOT NULL,
			role_id       TEXT NOT NULL,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL,
			system_prompt TEXT NOT NULL,
			capability    TEXT NOT NULL,
			temperature   REAL NOT NULL,
			position      INTEGER NOT NULL,
			PRIMARY KEY (session_id, role_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         TEXT NOT NULL,
			session_id TEXT NOT NULL,
			lane       TEXT NOT NULL,
			speaker    TEXT NOT NULL,
			content    TEXT NOT NULL,
			suggestion TEXT NOT NULL,
			kind       TEXT NOT NULL,
			timestamp  TEXT NOT NULL,
			position   INTEGER NOT NULL,
			PRIMARY KEY (session_id, lane, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_story ON sessions(story_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Create(ctx context.Context, session *domain.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM sessions WHERE id = ?`, string(session.ID)).Scan(&existing)
	if err == nil {
		return &domain.ValidationError{Msg: "session already exists: " + string(session.ID)}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking session: %w", err)
	}

	if err := insertSession(ctx, tx, session); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Put(ctx context.Context, session *domain.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, string(session.ID))
	if err != nil {
		return fmt.Errorf("deleting session row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: "session", ID: string(session.ID)}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE session_id = ?`, string(session.ID)); err != nil {
		return fmt.Errorf("deleting participants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, string(session.ID)); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}

	if err := insertSession(ctx, tx, session); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT story_id, title, status, created_at, updated_at FROM sessions WHERE id = ?`,
		string(id))

	var storyID, title, status, createdAt, updatedAt string
	if err := row.Scan(&storyID, &title, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: "session", ID: string(id)}
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	session := &domain.Session{
		ID:      id,
		StoryID: domain.StoryID(storyID),
		Title:   title,
		Status:  domain.SessionStatus(status),
	}
	var err error
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	if err := s.loadParticipants(ctx, session); err != nil {
		return nil, err
	}
	if err := s.loadMessages(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Store) ListByStory(ctx context.Context, storyID domain.StoryID) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE story_id = ? ORDER BY created_at ASC`,
		string(storyID))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var ids []domain.SessionID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning session id: %w", err)
		}
		ids = append(ids, domain.SessionID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	var out []*domain.Session
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *Store) loadParticipants(ctx context.Context, session *domain.Session) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role_id, name, description, system_prompt, capability, temperature
		 FROM participants WHERE session_id = ? ORDER BY position ASC`,
		string(session.ID))
	if err != nil {
		return fmt.Errorf("loading participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Participant
		var roleID, capability string
		var temp float64
		if err := rows.Scan(&roleID, &p.Role.Name, &p.Role.Description,
			&p.Role.SystemPrompt, &capability, &temp); err != nil {
			return fmt.Errorf("scanning participant: %w", err)
		}
		p.Role.ID = domain.RoleID(roleID)
		p.Role.Capability = domain.Capability(capability)
		p.Role.DefaultTemperature = float32(temp)
		session.Participants = append(session.Participants, p)
	}
	return rows.Err()
}

func (s *Store) loadMessages(ctx context.Context, session *domain.Session) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lane, speaker, content, suggestion, kind, timestamp
		 FROM messages WHERE session_id = ? ORDER BY lane, position ASC`,
		string(session.ID))
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	lanes := make(map[string][]domain.Message)
	for rows.Next() {
		var m domain.Message
		var id, lane, speaker, suggestion, kind, ts string
		if err := rows.Scan(&id, &lane, &speaker, &m.Content, &suggestion, &kind, &ts); err != nil {
			return fmt.Errorf("scanning message: %w", err)
		}
		m.ID = domain.MessageID(id)
		m.Speaker = domain.Speaker(speaker)
		m.Suggestion = domain.SuggestionState(suggestion)
		m.Kind = domain.Capability(kind)
		if m.Timestamp, err = parseTime(ts); err != nil {
			return err
		}
		lanes[lane] = append(lanes[lane], m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating messages: %w", err)
	}

	session.UserMessages = lanes[string(domain.SpeakerUser)]
	for i := range session.Participants {
		session.Participants[i].Messages = lanes[string(session.Participants[i].Role.ID)]
	}
	return nil
}

func insertSession(ctx context.Context, tx *sql.Tx, session *domain.Session) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, story_id, title, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(session.ID), string(session.StoryID), session.Title,
		string(session.Status), formatTime(session.CreatedAt), formatTime(session.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	for i, p := range session.Participants {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO participants (session_id, role_id, name, description, system_prompt, capability, temperature, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(session.ID), string(p.Role.ID), p.Role.Name, p.Role.Description,
			p.Role.SystemPrompt, string(p.Role.Capability), float64(p.Role.DefaultTemperature), i)
		if err != nil {
			return fmt.Errorf("inserting participant %s: %w", p.Role.ID, err)
		}
		if err := insertLane(ctx, tx, session.ID, string(p.Role.ID), p.Messages); err != nil {
			return err
		}
	}
	return insertLane(ctx, tx, session.ID, string(domain.SpeakerUser), session.UserMessages)
}

func insertLane(ctx context.Context, tx *sql.Tx, sessionID domain.SessionID, lane string, msgs []domain.Message) error {
	for i, m := range msgs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, lane, speaker, content, suggestion, kind, timestamp, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(m.ID), string(sessionID), lane, string(m.Speaker), m.Content,
			string(m.Suggestion), string(m.Kind), formatTime(m.Timestamp), i)
		if err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", s, err)
	}
	return t, nil
}
