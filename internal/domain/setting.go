package domain

import "time"

// Setting is the canonical merged text for one aspect of a story's
// world, produced by folding accepted suggestions from a setting
// collaboration session.
type Setting struct {
	ID        string
	StoryID   StoryID
	Type      SettingType
	Content   string
	UpdatedAt time.Time
}
