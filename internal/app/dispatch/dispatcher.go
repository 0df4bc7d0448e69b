// Package dispatch maps a role's capability tag to a generation
// strategy and invokes the completion collaborator. Strategies are
// pure with respect to the session: they return unpersisted content
// and never retry; retry budgets belong to the fan-out caller.
package dispatch

import (
	"context"
	"strings"

	"inkwell/internal/app/assembly"
	"inkwell/internal/domain"
	"inkwell/internal/observability"
)

// Extras is caller-supplied color for a generation request, passed
// through from the public API.
type Extras struct {
	StoryContext  string
	CharacterInfo string
	Style         string
}

type strategy struct {
	// temperature may override the role default; negative keeps it.
	temperature float32
	system      func(role domain.Role, extras Extras) string
	user        func(bundle assembly.Bundle, extras Extras) string
	post        func(string) string
}

// The strategy table is the closed dispatch over capability tags.
// Adding a capability means adding a row here; the generic row is the
// fallthrough for roles with no specialized template.
var strategies = map[domain.Capability]strategy{
	domain.CapabilityPlot: {
		temperature: 0.9,
		system: func(role domain.Role, extras Extras) string {
			return joinSections(role.SystemPrompt, plotInstructions, storySection(extras))
		},
		user: func(bundle assembly.Bundle, extras Extras) string {
			return "Conversation so far:\n" + transcript(bundle)
		},
		post: strings.TrimSpace,
	},
	domain.CapabilityDialogue: {
		temperature: 0.7,
		system: func(role domain.Role, extras Extras) string {
			sections := []string{role.SystemPrompt, dialogueInstructions}
			if extras.CharacterInfo != "" {
				sections = append(sections, "Character notes:\n"+extras.CharacterInfo)
			}
			return joinSections(sections...)
		},
		user: func(bundle assembly.Bundle, extras Extras) string {
			return "Exchange to rework:\n" + latestExchange(bundle, 4)
		},
		post: strings.TrimSpace,
	},
	domain.CapabilityReview: {
		temperature: 0.3,
		system: func(role domain.Role, extras Extras) string {
			return joinSections(role.SystemPrompt, reviewInstructions, storySection(extras))
		},
		user: func(bundle assembly.Bundle, extras Extras) string {
			return "Conversation so far:\n" + transcript(bundle)
		},
		post: strings.TrimSpace,
	},
	domain.CapabilityEdit: {
		temperature: 0.2,
		system: func(role domain.Role, extras Extras) string {
			sections := []string{role.SystemPrompt, editInstructions}
			if extras.Style != "" {
				sections = append(sections, "Style notes:\n"+extras.Style)
			}
			return joinSections(sections...)
		},
		user: func(bundle assembly.Bundle, extras Extras) string {
			return "Text to polish:\n" + latestExchange(bundle, 1)
		},
		post: strings.TrimSpace,
	},
	domain.CapabilityGeneric: {
		temperature: -1, // role default
		system: func(role domain.Role, extras Extras) string {
			return joinSections(role.SystemPrompt, storySection(extras))
		},
		user: func(bundle assembly.Bundle, extras Extras) string {
			return "Conversation so far:\n" + transcript(bundle) + "\nContinue the collaboration in character."
		},
		post: strings.TrimSpace,
	},
}

type Dispatcher struct {
	completer domain.Completer
}

func New(completer domain.Completer) *Dispatcher {
	return &Dispatcher{completer: completer}
}

// Generate runs the strategy for the role's capability and returns
// the post-processed draft content. The session is never mutated
// here; appending the result is the orchestrator's job.
func (d *Dispatcher) Generate(ctx context.Context, role domain.Role, bundle assembly.Bundle, extras Extras) (string, error) {
	strat, ok := strategies[role.Capability]
	if !ok {
		strat = strategies[domain.CapabilityGeneric]
	}

	temp := strat.temperature
	if temp < 0 {
		temp = role.DefaultTemperature
	}

	log := observability.LoggerFromContext(ctx).With(
		"role_id", role.ID,
		"capability", string(role.Capability),
	)
	log.Info("dispatching generation", "temperature", temp, "context_entries", len(bundle.Entries))

	messages := []domain.PromptMessage{
		{Speaker: domain.SpeakerUser, Content: strat.user(bundle, extras)},
	}

	text, err := d.completer.Complete(ctx, strat.system(role, extras), messages, temp)
	if err != nil {
		log.Error("generation failed", "error", err)
		return "", err
	}

	return strat.post(text), nil
}

func storySection(extras Extras) string {
	if extras.StoryContext == "" {
		return ""
	}
	return "Story context:\n" + extras.StoryContext
}

func joinSections(sections ...string) string {
	var kept []string
	for _, s := range sections {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n\n")
}
