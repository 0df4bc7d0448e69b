package collab

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"inkwell/internal/adapters/llm"
	"inkwell/internal/adapters/storage/memory"
	"inkwell/internal/app/assembly"
	"inkwell/internal/app/dispatch"
	"inkwell/internal/domain"
	"inkwell/internal/events"
	"inkwell/internal/registry"
)

func newTestService(completer domain.Completer, bus *events.Bus) *Service {
	if bus == nil {
		bus = events.NewBus()
	}
	svc := NewService(memory.NewSessionStore(), registry.Default(), assembly.New(), dispatch.New(completer), bus)
	// retries must not slow the suite down
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc
}

func twoRoles(t *testing.T) []domain.Role {
	t.Helper()
	reg := registry.Default()
	advisor, err := reg.Get("plot-advisor")
	if err != nil {
		t.Fatal(err)
	}
	editor, err := reg.Get("editor")
	if err != nil {
		t.Fatal(err)
	}
	return []domain.Role{advisor, editor}
}

func createTestSession(t *testing.T, svc *Service) *domain.Session {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), CreateSessionInput{
		StoryID: "story-42",
		Title:   "Chapter three",
		Roles:   twoRoles(t),
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return session
}

func TestCreateSessionFreezesParticipants(t *testing.T) {
	svc := newTestService(llm.NewMockCompleter(), nil)
	session := createTestSession(t, svc)

	if session.ID == "" {
		t.Fatal("expected a session id")
	}
	if session.Status != domain.StatusActive {
		t.Fatalf("status = %s", session.Status)
	}
	if len(session.Participants) != 2 {
		t.Fatalf("participants = %d", len(session.Participants))
	}
	for _, p := range session.Participants {
		if len(p.Messages) != 0 {
			t.Fatalf("new session lane for %s is not empty", p.Role.ID)
		}
	}
}

func TestCreateSessionRejectsEmptyAndDuplicateRoles(t *testing.T) {
	svc := newTestService(llm.NewMockCompleter(), nil)
	ctx := context.Background()

	var validation *domain.ValidationError
	if _, err := svc.CreateSession(ctx, CreateSessionInput{StoryID: "s"}); !errors.As(err, &validation) {
		t.Fatalf("empty roles: expected ValidationError, got %v", err)
	}

	roles := twoRoles(t)
	_, err := svc.CreateSession(ctx, CreateSessionInput{
		StoryID: "s",
		Roles:   []domain.Role{roles[0], roles[0]},
	})
	if !errors.As(err, &validation) {
		t.Fatalf("duplicate roles: expected ValidationError, got %v", err)
	}
}

func TestAddMessageLandsInUserLane(t *testing.T) {
	bus := events.NewBus()
	var emitted atomic.Int32
	bus.Subscribe(events.TopicMessageNew, func(events.Topic, any) { emitted.Add(1) })

	svc := newTestService(llm.NewMockCompleter(), bus)
	session := createTestSession(t, svc)
	ctx := context.Background()

	msg, err := svc.AddMessage(ctx, AddMessageInput{
		SessionID: session.ID,
		Speaker:   domain.SpeakerUser,
		Content:   "The heist goes wrong.",
	})
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if msg.ID == "" || msg.Suggestion != domain.SuggestionNone {
		t.Fatalf("unexpected message %+v", msg)
	}

	stored, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.UserMessages) != 1 {
		t.Fatalf("user lane length = %d", len(stored.UserMessages))
	}
	if emitted.Load() != 1 {
		t.Fatalf("message:new emitted %d times", emitted.Load())
	}
}

func TestAddMessageRejectsBlankContent(t *testing.T) {
	svc := newTestService(llm.NewMockCompleter(), nil)
	session := createTestSession(t, svc)

	var validation *domain.ValidationError
	_, err := svc.AddMessage(context.Background(), AddMessageInput{
		SessionID: session.ID,
		Speaker:   domain.SpeakerUser,
		Content:   "   \n ",
	})
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGenerateResponsesAppendsProposedSuggestion(t *testing.T) {
	svc := newTestService(llm.NewMockCompleter(), nil)
	session := createTestSession(t, svc)
	ctx := context.Background()

	_, err := svc.AddMessage(ctx, AddMessageInput{SessionID: session.ID, Speaker: domain.SpeakerUser, Content: "Need a twist."})
	if err != nil {
		t.Fatal(err)
	}

	results, err := svc.GenerateResponses(ctx, GenerateInput{
		SessionID: session.ID,
		RoleIDs:   []domain.RoleID{"plot-advisor"},
	})
	if err != nil {
		t.Fatalf("GenerateResponses: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}

	res := results[0]
	if res.Err != nil || res.Message == nil {
		t.Fatalf("slot = %+v", res)
	}
	if res.Message.Suggestion != domain.SuggestionProposed {
		t.Fatalf("suggestion state = %s", res.Message.Suggestion)
	}
	if res.Message.Kind != domain.CapabilityPlot {
		t.Fatalf("kind = %s", res.Message.Kind)
	}
	if res.RequestID == "" {
		t.Fatal("expected a request id")
	}

	stored, _ := svc.GetSession(ctx, session.ID)
	if lane := stored.Participant("plot-advisor"); lane == nil || len(lane.Messages) != 1 {
		t.Fatal("suggestion did not land in the advisor lane")
	}
}

func TestGenerateResponsesEmptyRoleListIsNoOp(t *testing.T) {
	svc := newTestService(llm.NewMockCompleter(), nil)
	session := createTestSession(t, svc)

	results, err := svc.GenerateResponses(context.Background(), GenerateInput{SessionID: session.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %d", len(results))
	}
}

func TestGenerateResponsesSlotsFailIndependently(t *testing.T) {
	mock := llm.NewMockCompleter()
	// the plot strategy pins temperature 0.9; fail only that slot
	mock.ReplyFunc = func(call llm.MockCall) (string, error) {
		if call.Temperature == 0.9 {
			return "", &domain.GenerationError{Status: 500}
		}
		return "tightened the prose", nil
	}

	svc := newTestService(mock, nil)
	session := createTestSession(t, svc)
	ctx := context.Background()

	_, _ = svc.AddMessage(ctx, AddMessageInput{SessionID: session.ID, Speaker: domain.SpeakerUser, Content: "Go."})

	results, err := svc.GenerateResponses(ctx, GenerateInput{
		SessionID: session.ID,
		RoleIDs:   []domain.RoleID{"plot-advisor", "editor"},
	})
	if err != nil {
		t.Fatal(err)
	}

	byRole := map[domain.RoleID]RoleResult{}
	for _, r := range results {
		byRole[r.RoleID] = r
	}

	var genErr *domain.GenerationError
	if !errors.As(byRole["plot-advisor"].Err, &genErr) {
		t.Fatalf("plot slot: expected GenerationError, got %v", byRole["plot-advisor"].Err)
	}
	if byRole["editor"].Err != nil || byRole["editor"].Message == nil {
		t.Fatalf("editor slot should succeed: %+v", byRole["editor"])
	}
}

func TestGenerateResponsesRetriesRetryableFailures(t *testing.T) {
	var attempts atomic.Int32
	mock := llm.NewMockCompleter()
	mock.ReplyFunc = func(call llm.MockCall) (string, error) {
		if attempts.Add(1) <= 2 {
			return "", &domain.GenerationError{Status: 503}
		}
		return "third time lucky", nil
	}

	svc := newTestService(mock, nil)
	session := createTestSession(t, svc)
	ctx := context.Background()
	_, _ = svc.AddMessage(ctx, AddMessageInput{SessionID: session.ID, Speaker: domain.SpeakerUser, Content: "Go."})

	results, err := svc.GenerateResponses(ctx, GenerateInput{SessionID: session.ID, RoleIDs: []domain.RoleID{"plot-advisor"}})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Err != nil {
		t.Fatalf("expected success after retries, got %v", results[0].Err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if results[0].Message.Content != "third time lucky" {
		t.Fatalf("content = %q", results[0].Message.Content)
	}
}

func TestGenerateResponsesDoesNotRetryNonRetryable(t *testing.T) {
	var attempts atomic.Int32
	mock := llm.NewMockCompleter()
	mock.ReplyFunc = func(call llm.MockCall) (string, error) {
		attempts.Add(1)
		return "", &domain.GenerationError{Status: 400}
	}

	svc := newTestService(mock, nil)
	session := createTestSession(t, svc)
	ctx := context.Background()
	_, _ = svc.AddMessage(ctx, AddMessageInput{SessionID: session.ID, Speaker: domain.SpeakerUser, Content: "Go."})

	results, _ := svc.GenerateResponses(ctx, GenerateInput{SessionID: session.ID, RoleIDs: []domain.RoleID{"plot-advisor"}})
	if results[0].Err == nil {
		t.Fatal("expected error")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

func TestGenerateResponsesUnknownParticipant(t *testing.T) {
	svc := newTestService(llm.NewMockCompleter(), nil)
	session := createTestSession(t, svc)

	results, err := svc.GenerateResponses(context.Background(), GenerateInput{
		SessionID: session.ID,
		RoleIDs:   []domain.RoleID{"reviewer"}, // in the catalog, not in this session
	})
	if err != nil {
		t.Fatal(err)
	}

	var notFound *domain.NotFoundError
	if !errors.As(results[0].Err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", results[0].Err)
	}
}

func TestLateGenerationResultIsDropped(t *testing.T) {
	svc := newTestService(llm.NewMockCompleter(), nil)
	session := createTestSession(t, svc)
	ctx := context.Background()
	_, _ = svc.AddMessage(ctx, AddMessageInput{SessionID: session.ID, Speaker: domain.SpeakerUser, Content: "Go."})

	mock := llm.NewMockCompleter()
	mock.ReplyFunc = func(call llm.MockCall) (string, error) {
		// the session archives while generation is in flight
		if err := svc.Archive(ctx, session.ID); err != nil {
			t.Errorf("archive during generation: %v", err)
		}
		return "arrives too late", nil
	}
	svc.dispatcher = dispatch.New(mock)

	results, err := svc.GenerateResponses(ctx, GenerateInput{SessionID: session.ID, RoleIDs: []domain.RoleID{"plot-advisor"}})
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Dropped || results[0].Err != nil || results[0].Message != nil {
		t.Fatalf("expected dropped slot, got %+v", results[0])
	}

	stored, _ := svc.GetSession(ctx, session.ID)
	if lane := stored.Participant("plot-advisor"); len(lane.Messages) != 0 {
		t.Fatal("late result must not be appended")
	}
}

func TestSuggestionLifecycleAndMerge(t *testing.T) {
	bus := events.NewBus()
	var changes atomic.Int32
	bus.Subscribe(events.TopicSuggestionChanged, func(events.Topic, any) { changes.Add(1) })

	mock := llm.NewMockCompleter()
	mock.ReplyFunc = func(call llm.MockCall) (string, error) { return "the betrayal lands in act two", nil }

	svc := newTestService(mock, bus)
	session := createTestSession(t, svc)
	ctx := context.Background()
	_, _ = svc.AddMessage(ctx, AddMessageInput{SessionID: session.ID, Speaker: domain.SpeakerUser, Content: "Go."})

	results, _ := svc.GenerateResponses(ctx, GenerateInput{SessionID: session.ID, RoleIDs: []domain.RoleID{"plot-advisor"}})
	msgID := results[0].Message.ID

	if err := svc.AcceptSuggestion(ctx, session.ID, msgID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// idempotent repeat, no second event
	if err := svc.AcceptSuggestion(ctx, session.ID, msgID); err != nil {
		t.Fatalf("repeat accept: %v", err)
	}
	if changes.Load() != 1 {
		t.Fatalf("suggestion:changed emitted %d times, want 1", changes.Load())
	}

	var stateErr *domain.SuggestionStateError
	if err := svc.RejectSuggestion(ctx, session.ID, msgID); !errors.As(err, &stateErr) {
		t.Fatalf("cross-terminal transition: expected SuggestionStateError, got %v", err)
	}

	merged, err := svc.MergeAccepted(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if merged != "the betrayal lands in act two" {
		t.Fatalf("merged = %q", merged)
	}

	// merging again without new accepts yields identical output
	again, _ := svc.MergeAccepted(ctx, session.ID)
	if again != merged {
		t.Fatalf("second merge = %q", again)
	}
}

func TestSuggestionOnUnknownMessage(t *testing.T) {
	svc := newTestService(llm.NewMockCompleter(), nil)
	session := createTestSession(t, svc)

	var notFound *domain.NotFoundError
	err := svc.AcceptSuggestion(context.Background(), session.ID, "missing")
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestArchiveIsIdempotentAndBlocksMutation(t *testing.T) {
	bus := events.NewBus()
	var archived atomic.Int32
	bus.Subscribe(events.TopicSessionArchived, func(events.Topic, any) { archived.Add(1) })

	svc := newTestService(llm.NewMockCompleter(), bus)
	session := createTestSession(t, svc)
	ctx := context.Background()

	if err := svc.Archive(ctx, session.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Archive(ctx, session.ID); err != nil {
		t.Fatalf("second archive should be a no-op, got %v", err)
	}
	if archived.Load() != 1 {
		t.Fatalf("session:archived emitted %d times, want 1", archived.Load())
	}

	var archErr *domain.ArchivedError
	if _, err := svc.AddMessage(ctx, AddMessageInput{SessionID: session.ID, Speaker: domain.SpeakerUser, Content: "hi"}); !errors.As(err, &archErr) {
		t.Fatalf("append on archived: expected ArchivedError, got %v", err)
	}
	if _, err := svc.GenerateResponses(ctx, GenerateInput{SessionID: session.ID, RoleIDs: []domain.RoleID{"plot-advisor"}}); !errors.As(err, &archErr) {
		t.Fatalf("generate on archived: expected ArchivedError, got %v", err)
	}
	if err := svc.AcceptSuggestion(ctx, session.ID, "any"); !errors.As(err, &archErr) {
		t.Fatalf("accept on archived: expected ArchivedError, got %v", err)
	}
}

func TestRecentMessagesReturnsAscendingTail(t *testing.T) {
	svc := newTestService(llm.NewMockCompleter(), nil)
	session := createTestSession(t, svc)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three", "four", "five"} {
		if _, err := svc.AddMessage(ctx, AddMessageInput{SessionID: session.ID, Speaker: domain.SpeakerUser, Content: content}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := svc.RecentMessages(ctx, session.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("recent = %d", len(recent))
	}
	want := []string{"three", "four", "five"}
	for i, w := range want {
		if recent[i].Content != w {
			t.Fatalf("recent[%d] = %q, want %q", i, recent[i].Content, w)
		}
	}
}

func TestListSessionsByStory(t *testing.T) {
	svc := newTestService(llm.NewMockCompleter(), nil)
	ctx := context.Background()

	_ = createTestSession(t, svc)
	_ = createTestSession(t, svc)
	other, err := svc.CreateSession(ctx, CreateSessionInput{StoryID: "other-story", Roles: twoRoles(t)})
	if err != nil {
		t.Fatal(err)
	}

	sessions, err := svc.ListSessions(ctx, "story-42")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d", len(sessions))
	}
	for _, s := range sessions {
		if s.ID == other.ID {
			t.Fatal("session from another story listed")
		}
	}
}

func TestBackoffDuration(t *testing.T) {
	base := 500 * time.Millisecond
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{10, backoffMaxDelay},
	}
	for _, tc := range cases {
		if got := backoffDuration(base, tc.attempt); got != tc.want {
			t.Fatalf("backoffDuration(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
