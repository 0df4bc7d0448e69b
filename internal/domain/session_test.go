package domain_test

import (
	"testing"
	"time"

	"inkwell/internal/domain"
)

func testSession() *domain.Session {
	return &domain.Session{
		ID:      "s1",
		StoryID: "story-1",
		Status:  domain.StatusActive,
		Participants: []domain.Participant{
			{Role: domain.Role{ID: "plot-advisor", Name: "Plot Advisor", SystemPrompt: "x", Capability: domain.CapabilityPlot, DefaultTemperature: 0.9}},
			{Role: domain.Role{ID: "editor", Name: "Editor", SystemPrompt: "y", Capability: domain.CapabilityEdit, DefaultTemperature: 0.2}},
		},
	}
}

func TestAppendRoutesToLaneBySpeaker(t *testing.T) {
	s := testSession()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Append(domain.Message{ID: "m1", Speaker: domain.SpeakerUser, Content: "hi", Timestamp: base}); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := s.Append(domain.Message{ID: "m2", Speaker: "plot-advisor", Content: "idea", Timestamp: base.Add(time.Second)}); err != nil {
		t.Fatalf("append participant: %v", err)
	}

	if len(s.UserMessages) != 1 || len(s.Participants[0].Messages) != 1 || len(s.Participants[1].Messages) != 0 {
		t.Fatalf("messages landed in wrong lanes: user=%d p0=%d p1=%d",
			len(s.UserMessages), len(s.Participants[0].Messages), len(s.Participants[1].Messages))
	}
}

func TestAppendUnknownSpeakerFails(t *testing.T) {
	s := testSession()
	err := s.Append(domain.Message{ID: "m1", Speaker: "ghost", Content: "boo"})
	if err == nil {
		t.Fatal("expected error for unknown speaker")
	}
}

func TestAppendClampsBackwardsClock(t *testing.T) {
	s := testSession()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_ = s.Append(domain.Message{ID: "m1", Speaker: domain.SpeakerUser, Timestamp: base})
	_ = s.Append(domain.Message{ID: "m2", Speaker: domain.SpeakerUser, Timestamp: base.Add(-time.Minute)})

	if got := s.UserMessages[1].Timestamp; got.Before(base) {
		t.Fatalf("timestamp not clamped: %v < %v", got, base)
	}
}

func TestMessagesFlattensChronologically(t *testing.T) {
	s := testSession()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_ = s.Append(domain.Message{ID: "m1", Speaker: domain.SpeakerUser, Timestamp: base})
	_ = s.Append(domain.Message{ID: "m2", Speaker: "plot-advisor", Timestamp: base.Add(time.Second)})
	_ = s.Append(domain.Message{ID: "m3", Speaker: domain.SpeakerUser, Timestamp: base.Add(2 * time.Second)})
	_ = s.Append(domain.Message{ID: "m4", Speaker: "editor", Timestamp: base.Add(3 * time.Second)})

	all := s.Messages()
	want := []domain.MessageID{"m1", "m2", "m3", "m4"}
	if len(all) != len(want) {
		t.Fatalf("got %d messages, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, all[i].ID, id)
		}
	}
}

func TestCloneIsolatesLanes(t *testing.T) {
	s := testSession()
	_ = s.Append(domain.Message{ID: "m1", Speaker: "plot-advisor", Content: "original", Suggestion: domain.SuggestionProposed})

	clone := s.Clone()
	clone.Participants[0].Messages[0].Content = "mutated"
	_ = clone.Append(domain.Message{ID: "m2", Speaker: domain.SpeakerUser, Content: "more"})

	if s.Participants[0].Messages[0].Content != "original" {
		t.Fatal("clone mutation leaked into source")
	}
	if len(s.UserMessages) != 0 {
		t.Fatal("clone append leaked into source")
	}
}

func TestFindMessageReturnsLanePointer(t *testing.T) {
	s := testSession()
	_ = s.Append(domain.Message{ID: "m1", Speaker: "plot-advisor", Suggestion: domain.SuggestionProposed})

	m := s.FindMessage("m1")
	if m == nil {
		t.Fatal("message not found")
	}
	m.Suggestion = domain.SuggestionAccepted

	if s.Participants[0].Messages[0].Suggestion != domain.SuggestionAccepted {
		t.Fatal("mutation through FindMessage pointer did not reach the lane")
	}
	if s.FindMessage("nope") != nil {
		t.Fatal("expected nil for unknown id")
	}
}
