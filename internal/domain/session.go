package domain

import (
	"sort"
	"time"
)

// Message is one entry in a participant lane. Assistant-authored
// messages produced by the dispatcher start life as proposed
// suggestions; user messages never carry a suggestion state.
type Message struct {
	ID         MessageID
	Speaker    Speaker
	Content    string
	Timestamp  time.Time
	Suggestion SuggestionState
	Kind       Capability // strategy that produced a suggestion; empty for user turns
}

func (m *Message) IsSuggestion() bool {
	return m.Suggestion != SuggestionNone && m.Suggestion != ""
}

// Participant pairs a role with its append-only message lane.
type Participant struct {
	Role     Role
	Messages []Message
}

// Session is the aggregate tracking one collaborative thread between
// a user and a fixed set of AI roles. The participant set is frozen
// at creation; status moves active -> archived exactly once.
type Session struct {
	ID           SessionID
	StoryID      StoryID
	Title        string
	Participants []Participant
	UserMessages []Message // virtual lane for user-authored turns
	Status       SessionStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s *Session) Archived() bool {
	return s.Status == StatusArchived
}

// Participant returns the lane for the given role id, or nil.
func (s *Session) Participant(id RoleID) *Participant {
	for i := range s.Participants {
		if s.Participants[i].Role.ID == id {
			return &s.Participants[i]
		}
	}
	return nil
}

// Append places a message in the lane matching its speaker. Lane
// timestamps stay monotonically non-decreasing: a clock that runs
// backwards is clamped to the lane's last timestamp.
func (s *Session) Append(m Message) error {
	lane, err := s.lane(m.Speaker)
	if err != nil {
		return err
	}
	if n := len(*lane); n > 0 {
		if last := (*lane)[n-1].Timestamp; m.Timestamp.Before(last) {
			m.Timestamp = last
		}
	}
	*lane = append(*lane, m)
	return nil
}

func (s *Session) lane(sp Speaker) (*[]Message, error) {
	if sp.IsUser() {
		return &s.UserMessages, nil
	}
	p := s.Participant(RoleID(sp))
	if p == nil {
		return nil, &NotFoundError{Kind: "role", ID: string(sp)}
	}
	return &p.Messages, nil
}

// Messages flattens every lane into one chronological log, oldest
// first. Ordering across lanes is by timestamp only; ties keep lane
// order, which makes repeated calls stable.
func (s *Session) Messages() []Message {
	var all []Message
	all = append(all, s.UserMessages...)
	for i := range s.Participants {
		all = append(all, s.Participants[i].Messages...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return all
}

// FindMessage returns a pointer into the session's lanes, so ledger
// transitions mutate the aggregate the caller holds.
func (s *Session) FindMessage(id MessageID) *Message {
	for i := range s.UserMessages {
		if s.UserMessages[i].ID == id {
			return &s.UserMessages[i]
		}
	}
	for i := range s.Participants {
		msgs := s.Participants[i].Messages
		for j := range msgs {
			if msgs[j].ID == id {
				return &msgs[j]
			}
		}
	}
	return nil
}

// Clone deep-copies the aggregate. Stores hand out clones so that no
// two callers alias the same lane slices.
func (s *Session) Clone() *Session {
	out := *s
	out.UserMessages = append([]Message(nil), s.UserMessages...)
	out.Participants = make([]Participant, len(s.Participants))
	for i, p := range s.Participants {
		out.Participants[i] = Participant{
			Role:     p.Role,
			Messages: append([]Message(nil), p.Messages...),
		}
	}
	return &out
}
