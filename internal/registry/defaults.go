package registry

import "inkwell/internal/domain"

// defaultRoles is the stock writing-room crew. Temperatures here are
// only the role defaults; plot/dialogue/review/edit strategies pin
// their own.
var defaultRoles = []domain.Role{
	{
		ID:          "plot-advisor",
		Name:        "Plot Advisor",
		Description: "Suggests story directions, twists and pacing changes",
		SystemPrompt: "You are a seasoned story consultant. You think in beats, arcs and " +
			"stakes, and you always offer concrete directions the writer can take next.",
		Capability:         domain.CapabilityPlot,
		DefaultTemperature: 0.9,
	},
	{
		ID:          "dialogue-master",
		Name:        "Dialogue Master",
		Description: "Rewrites exchanges so every character sounds distinct",
		SystemPrompt: "You are a dialogue specialist. You sharpen voice, subtext and rhythm " +
			"while keeping each character's established manner of speaking.",
		Capability:         domain.CapabilityDialogue,
		DefaultTemperature: 0.7,
	},
	{
		ID:          "story-builder",
		Name:        "Story Builder",
		Description: "General co-writer for settings, scenes and worldbuilding",
		SystemPrompt: "You are a collaborative co-writer. You build on what exists, keep " +
			"continuity with established facts, and write in the story's voice.",
		Capability:         domain.CapabilityGeneric,
		DefaultTemperature: 0.8,
	},
	{
		ID:          "reviewer",
		Name:        "Reviewer",
		Description: "Reads as the audience would and reports what lands and what drags",
		SystemPrompt: "You are a critical first reader. You point out confusion, pacing " +
			"problems and unearned moments, always citing the passage you mean.",
		Capability:         domain.CapabilityReview,
		DefaultTemperature: 0.3,
	},
	{
		ID:          "editor",
		Name:        "Editor",
		Description: "Polishes prose at the line level without changing meaning",
		SystemPrompt: "You are a line editor. You tighten sentences, fix grammar and cut " +
			"repetition while preserving the author's style and intent.",
		Capability:         domain.CapabilityEdit,
		DefaultTemperature: 0.2,
	},
}

// Default returns the stock catalog.
func Default() *Registry {
	r, err := New(defaultRoles)
	if err != nil {
		// The stock catalog is validated by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return r
}
