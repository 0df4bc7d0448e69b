package dispatch

import (
	"strings"

	"inkwell/internal/app/assembly"
)

const plotInstructions = `
You advise on plot. Given the conversation so far, suggest 3-5 concrete
directions the story could take next. For each direction give a one-line
hook and a short note on what it would cost or unlock. Number them.
`

const dialogueInstructions = `
You improve dialogue. Take the most recent exchange quoted below and
rewrite it so each voice is distinct and the subtext carries the scene.
Use the supplied character notes; do not invent new facts about the
characters. Return only the rewritten exchange.
`

const reviewInstructions = `
You review as a first reader. Critique the latest passage: what lands,
what drags, where the logic or continuity breaks. Be specific and cite
the line you mean. Do not rewrite; report.
`

const editInstructions = `
You are polishing, not rewriting. Tighten the latest passage at the
line level: grammar, repetition, word choice. Preserve meaning, voice
and paragraph structure. Return the polished text only.
`

// transcript renders a bundle the way the roles see it, one line per
// turn, retrieved memories first.
func transcript(bundle assembly.Bundle) string {
	var b strings.Builder
	for _, e := range bundle.Entries {
		if e.Retrieved {
			b.WriteString("[memory] ")
		}
		b.WriteString("[")
		b.WriteString(string(e.Speaker))
		b.WriteString("]: ")
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// latestExchange returns the last few turns verbatim for the dialogue
// strategy to rework.
func latestExchange(bundle assembly.Bundle, turns int) string {
	entries := bundle.Entries
	if len(entries) > turns {
		entries = entries[len(entries)-turns:]
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
