package app

import (
	"strings"
	"testing"

	"storyloom/pkg/domain"
)

func TestComposeBriefPassesRawTranscriptWhenUnstyled(t *testing.T) {
	got := composeBrief("Hello there.", []domain.SpeakerDirective{
		{CharacterName: "Mira", VoiceID: "Kore"},
	}, nil, "")
	if got != "Hello there." {
		t.Fatalf("single unstyled voice must pass transcript through: %q", got)
	}
}

func TestComposeBriefSingleVoiceWithGlobalStyle(t *testing.T) {
	got := composeBrief("Hello there.", []domain.SpeakerDirective{
		{CharacterName: "Mira", VoiceID: "Kore"},
	}, &domain.VoiceSettings{Persona: "a weary detective", Style: "dry", Pacing: "slow"}, "")

	if !strings.Contains(got, "Persona: a weary detective") {
		t.Fatalf("missing persona line:\n%s", got)
	}
	if !strings.Contains(got, "- style: dry") || !strings.Contains(got, "- pacing: slow") {
		t.Fatalf("missing notes:\n%s", got)
	}
	if strings.Contains(got, "accent") {
		t.Fatalf("empty accent must be omitted from notes:\n%s", got)
	}
	if strings.Contains(got, "Speakers:") {
		t.Fatalf("single voice must not emit a speaker block:\n%s", got)
	}
	if !strings.HasSuffix(got, "Transcript:\nHello there.") {
		t.Fatalf("transcript must close the brief literally:\n%s", got)
	}
}

func TestComposeBriefMultiVoiceEmitsMandatoryTags(t *testing.T) {
	directives := []domain.SpeakerDirective{
		{CharacterName: "Mira", VoiceID: "Kore", Settings: domain.VoiceSettings{Style: "clipped"}},
		{CharacterName: "Tomas", VoiceID: "Puck"},
	}
	got := composeBrief("Mira: hi\nTomas: hello", directives, nil, "a rainy rooftop")

	if !strings.Contains(got, "Scene: a rainy rooftop") {
		t.Fatalf("missing scene line:\n%s", got)
	}
	if !strings.Contains(got, "- Mira (voice Kore): style=clipped, pacing=neutral, accent=neutral") {
		t.Fatalf("per-character tags are mandatory:\n%s", got)
	}
	if !strings.Contains(got, "- Tomas (voice Puck): style=neutral, pacing=neutral, accent=neutral") {
		t.Fatalf("unstyled character still gets tags:\n%s", got)
	}
}

func TestReformatInstructionConstrainsNames(t *testing.T) {
	instruction := reformatInstruction([]domain.SpeakerDirective{
		{CharacterName: "Mira"},
		{CharacterName: "Tomas"},
	})
	if !strings.Contains(instruction, "Mira, Tomas") {
		t.Fatalf("instruction must list the known names:\n%s", instruction)
	}
	if !strings.Contains(instruction, "Never invent a character name") {
		t.Fatalf("instruction must forbid invented names:\n%s", instruction)
	}
	if !strings.Contains(instruction, "Do not attribute any line to a narrator") {
		t.Fatalf("narrator must be forbidden when not a known character:\n%s", instruction)
	}
}

func TestReformatInstructionAllowsKnownNarrator(t *testing.T) {
	instruction := reformatInstruction([]domain.SpeakerDirective{
		{CharacterName: "Narrator"},
		{CharacterName: "Mira"},
	})
	if strings.Contains(instruction, "Do not attribute any line to a narrator") {
		t.Fatalf("a known Narrator character must stay usable:\n%s", instruction)
	}
}
