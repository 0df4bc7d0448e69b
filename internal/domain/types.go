package domain

type SessionID string
type StoryID string
type MessageID string
type RoleID string

// Speaker identifies the author of a message: the literal "user"
// or the id of a participating role.
type Speaker string

const SpeakerUser Speaker = "user"

func (s Speaker) IsUser() bool {
	return s == SpeakerUser
}

// Capability classifies a role and selects its generation strategy.
type Capability string

const (
	CapabilityPlot     Capability = "plot"     // plot directions, story beats
	CapabilityDialogue Capability = "dialogue" // rewriting and improving exchanges
	CapabilityReview   Capability = "review"   // reader-perspective critique
	CapabilityEdit     Capability = "edit"     // line-level polish
	CapabilityGeneric  Capability = "generic"  // raw system prompt, no template
)

func (c Capability) Valid() bool {
	switch c {
	case CapabilityPlot, CapabilityDialogue, CapabilityReview, CapabilityEdit, CapabilityGeneric:
		return true
	}
	return false
}

// SuggestionState is the lifecycle of an assistant contribution.
// Accepted and rejected are terminal.
type SuggestionState string

const (
	SuggestionNone     SuggestionState = "none"
	SuggestionProposed SuggestionState = "proposed"
	SuggestionAccepted SuggestionState = "accepted"
	SuggestionRejected SuggestionState = "rejected"
)

type SessionStatus string

const (
	StatusActive   SessionStatus = "active"
	StatusArchived SessionStatus = "archived"
)

// SettingType categorizes the story settings the setting
// collaboration service works on.
type SettingType string

const (
	SettingWorld       SettingType = "world"
	SettingCharacter   SettingType = "character"
	SettingPlot        SettingType = "plot"
	SettingMagicSystem SettingType = "magic-system"
)

func (t SettingType) Valid() bool {
	switch t {
	case SettingWorld, SettingCharacter, SettingPlot, SettingMagicSystem:
		return true
	}
	return false
}
