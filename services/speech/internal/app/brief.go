package app

import (
	"strings"

	"storyloom/pkg/domain"
)

// needsBrief reports whether the raw transcript must be wrapped in a
// director's brief: any multi-speaker session, or any global styling.
func needsBrief(directives []domain.SpeakerDirective, global *domain.VoiceSettings, scene string) bool {
	if len(directives) > 1 || strings.TrimSpace(scene) != "" {
		return true
	}
	if global == nil {
		return false
	}
	return global.Persona != "" || global.Style != "" || global.Pacing != "" || global.Accent != ""
}

// composeBrief wraps the transcript in the structured director's brief the
// synthesis model reads: an optional persona line, an optional scene line,
// a notes block, a per-character instruction block for multi-speaker
// sessions, then the literal transcript. Per-character style, pacing, and
// accent tags are always emitted so no speaker is left undirected.
func composeBrief(transcript string, directives []domain.SpeakerDirective, global *domain.VoiceSettings, scene string) string {
	if !needsBrief(directives, global, scene) {
		return transcript
	}

	var b strings.Builder
	if global != nil && global.Persona != "" {
		b.WriteString("Persona: ")
		b.WriteString(global.Persona)
		b.WriteString("\n")
	}
	if scene = strings.TrimSpace(scene); scene != "" {
		b.WriteString("Scene: ")
		b.WriteString(scene)
		b.WriteString("\n")
	}
	if global != nil {
		var notes []string
		if global.Style != "" {
			notes = append(notes, "style: "+global.Style)
		}
		if global.Pacing != "" {
			notes = append(notes, "pacing: "+global.Pacing)
		}
		if global.Accent != "" {
			notes = append(notes, "accent: "+global.Accent)
		}
		if len(notes) > 0 {
			b.WriteString("Notes:\n")
			for _, note := range notes {
				b.WriteString("- ")
				b.WriteString(note)
				b.WriteString("\n")
			}
		}
	}
	if len(directives) > 1 {
		b.WriteString("Speakers:\n")
		for _, directive := range directives {
			b.WriteString("- ")
			b.WriteString(directive.CharacterName)
			b.WriteString(" (voice ")
			b.WriteString(directive.VoiceID)
			b.WriteString("): style=")
			b.WriteString(orNeutral(directive.Settings.Style))
			b.WriteString(", pacing=")
			b.WriteString(orNeutral(directive.Settings.Pacing))
			b.WriteString(", accent=")
			b.WriteString(orNeutral(directive.Settings.Accent))
			b.WriteString("\n")
		}
	}
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	return b.String()
}

func orNeutral(value string) string {
	if value == "" {
		return "neutral"
	}
	return value
}

// reformatInstruction builds the system instruction for the one-shot
// transcript repair. The rewrite is constrained to the known character
// names; the model must never invent a speaker, and "Narrator" is only
// permitted when it is itself a known character.
func reformatInstruction(directives []domain.SpeakerDirective) string {
	names := make([]string, 0, len(directives))
	for _, directive := range directives {
		names = append(names, directive.CharacterName)
	}
	var b strings.Builder
	b.WriteString("Rewrite the transcript so every line follows the strict form \"CharacterName: line\".\n")
	b.WriteString("Use only these character names: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".\n")
	b.WriteString("Never invent a character name. ")
	if !containsName(names, "Narrator") {
		b.WriteString("Do not attribute any line to a narrator. ")
	}
	b.WriteString("Output only the rewritten transcript with no commentary.")
	return b.String()
}

func containsName(names []string, want string) bool {
	for _, name := range names {
		if name == want {
			return true
		}
	}
	return false
}
