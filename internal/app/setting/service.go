// Package setting runs themed collaboration sessions over a story's
// worldbuilding aspects (world, character, plot, magic system): it
// picks the right roles for the theme, seeds the session with the
// existing material, collects an initial suggestion round, and folds
// accepted suggestions back into the stored setting.
package setting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/app/collab"
	"inkwell/internal/app/dispatch"
	"inkwell/internal/app/ledger"
	"inkwell/internal/domain"
	"inkwell/internal/observability"
	"inkwell/internal/registry"
)

type Service struct {
	collab   *collab.Service
	registry *registry.Registry
	settings domain.SettingStore
	now      func() time.Time
}

func NewService(collabSvc *collab.Service, reg *registry.Registry, settings domain.SettingStore) *Service {
	return &Service{
		collab:   collabSvc,
		registry: reg,
		settings: settings,
		now:      time.Now,
	}
}

// Context is the material the session starts from.
type Context struct {
	Type             domain.SettingType
	CurrentContent   string
	ExistingSettings string
	Requirements     string
}

// rolesFor maps a setting type to the catalog roles best suited to
// work on it.
func (s *Service) rolesFor(t domain.SettingType) ([]domain.Role, error) {
	var ids []domain.RoleID
	switch t {
	case domain.SettingWorld, domain.SettingMagicSystem:
		ids = []domain.RoleID{"story-builder", "plot-advisor"}
	case domain.SettingCharacter:
		ids = []domain.RoleID{"dialogue-master", "story-builder"}
	case domain.SettingPlot:
		ids = []domain.RoleID{"plot-advisor", "story-builder"}
	default:
		return nil, &domain.ValidationError{Msg: "unknown setting type: " + string(t)}
	}

	roles := make([]domain.Role, 0, len(ids))
	for _, id := range ids {
		role, err := s.registry.Get(id)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

var typeTitles = map[domain.SettingType]string{
	domain.SettingWorld:       "World",
	domain.SettingCharacter:   "Character",
	domain.SettingPlot:        "Plot",
	domain.SettingMagicSystem: "Magic system",
}

// StartSession creates a themed session, posts the context message as
// the user turn and runs one suggestion round across every
// participant. Per-role generation failures are reported in the
// returned results, not as an error.
func (s *Service) StartSession(ctx context.Context, storyID domain.StoryID, sc Context) (*domain.Session, []collab.RoleResult, error) {
	if !sc.Type.Valid() {
		return nil, nil, &domain.ValidationError{Msg: "unknown setting type: " + string(sc.Type)}
	}

	log := observability.LoggerFromContext(ctx).With(
		"story_id", storyID,
		"setting_type", string(sc.Type),
	)
	log.Info("starting setting collaboration session")

	roles, err := s.rolesFor(sc.Type)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.collab.CreateSession(ctx, collab.CreateSessionInput{
		StoryID: storyID,
		Title:   fmt.Sprintf("%s setting session", typeTitles[sc.Type]),
		Roles:   roles,
	})
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.collab.AddMessage(ctx, collab.AddMessageInput{
		SessionID: session.ID,
		Speaker:   domain.SpeakerUser,
		Content:   contextMessage(sc),
	}); err != nil {
		return nil, nil, err
	}

	roleIDs := make([]domain.RoleID, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}
	results, err := s.collab.GenerateResponses(ctx, collab.GenerateInput{
		SessionID: session.ID,
		RoleIDs:   roleIDs,
		Extras:    dispatch.Extras{StoryContext: sc.ExistingSettings},
	})
	if err != nil {
		return nil, nil, err
	}

	session, err = s.collab.GetSession(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}

	log.Info("setting session started", "session_id", session.ID)
	return session, results, nil
}

// ApplyAccepted folds the session's accepted suggestions into one
// text, in timestamp order.
func (s *Service) ApplyAccepted(ctx context.Context, sessionID domain.SessionID) (string, error) {
	return s.collab.MergeAccepted(ctx, sessionID)
}

// LatestSuggestions returns the contents of every suggestion still
// awaiting a decision.
func (s *Service) LatestSuggestions(ctx context.Context, sessionID domain.SessionID) ([]string, error) {
	session, err := s.collab.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range ledger.Pending(session) {
		if m.Content != "" {
			out = append(out, m.Content)
		}
	}
	return out, nil
}

// SaveSetting persists merged setting content for a story.
func (s *Service) SaveSetting(ctx context.Context, storyID domain.StoryID, t domain.SettingType, content string) error {
	if !t.Valid() {
		return &domain.ValidationError{Msg: "unknown setting type: " + string(t)}
	}
	if strings.TrimSpace(content) == "" {
		return &domain.ValidationError{Msg: "setting content must not be empty"}
	}

	return s.settings.PutSetting(ctx, &domain.Setting{
		ID:        fmt.Sprintf("%s-%s", storyID, t),
		StoryID:   storyID,
		Type:      t,
		Content:   content,
		UpdatedAt: s.now(),
	})
}

// GetSetting loads the stored setting for a story and type.
func (s *Service) GetSetting(ctx context.Context, storyID domain.StoryID, t domain.SettingType) (*domain.Setting, error) {
	return s.settings.GetSetting(ctx, storyID, t)
}

func contextMessage(sc Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Working on the story's %s setting.\n\n", strings.ToLower(typeTitles[sc.Type]))
	if sc.ExistingSettings != "" {
		fmt.Fprintf(&b, "Existing settings:\n%s\n\n", sc.ExistingSettings)
	}
	if sc.CurrentContent != "" {
		fmt.Fprintf(&b, "Current draft:\n%s\n\n", sc.CurrentContent)
	}
	if sc.Requirements != "" {
		fmt.Fprintf(&b, "Requirements:\n%s\n\n", sc.Requirements)
	}
	b.WriteString("Please propose concrete improvements and additions.")
	return b.String()
}
