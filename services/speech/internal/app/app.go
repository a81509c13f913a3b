package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"storyloom/pkg/ai"
	"storyloom/pkg/domain"
	"storyloom/pkg/storage"
)

// Synthesizer is the provider surface this service consumes: speech
// synthesis plus the text model used by the transcript repair path.
// *ai.GeminiClient satisfies it.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, model, transcript string, voices []ai.SpeakerVoice) (*ai.AudioCompletion, error)
	GenerateText(ctx context.Context, model string, req ai.GenerateRequest) (*ai.TextCompletion, error)
}

// GateDecision mirrors the billing gate outcome.
type GateDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Billing is the entitlement surface consumed before and after synthesis.
type Billing interface {
	Check(ctx context.Context, userID string, tier domain.SubscriptionTier, capability domain.Capability, amount int64) (GateDecision, error)
	Track(ctx context.Context, userID string, tier domain.SubscriptionTier, capability domain.Capability, amount int64, description string) error
}

// AssetEnqueuer schedules a durable asset-record write off the request path.
type AssetEnqueuer interface {
	Enqueue(ctx context.Context, asset domain.Asset) error
}

// Config wires app dependencies.
type Config struct {
	Synthesizer Synthesizer
	SpeechModel string
	RepairModel string
	Billing     Billing
	Renders     storage.RenderStore
	AssetQueue  AssetEnqueuer
}

// App runs speech synthesis: the director's-brief compositor, the
// two-speaker voice binding, and the single automatic reformat-and-retry
// repair for multi-voice formatting failures.
type App struct {
	synthesizer Synthesizer
	speechModel string
	repairModel string
	billing     Billing
	renders     storage.RenderStore
	assetQueue  AssetEnqueuer
	now         func() time.Time
}

// New constructs the app.
func New(cfg Config) (*App, error) {
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("app requires a synthesizer")
	}
	if cfg.SpeechModel == "" {
		return nil, fmt.Errorf("app requires a speech model")
	}
	repairModel := cfg.RepairModel
	if repairModel == "" {
		repairModel = cfg.SpeechModel
	}
	return &App{
		synthesizer: cfg.Synthesizer,
		speechModel: cfg.SpeechModel,
		repairModel: repairModel,
		billing:     cfg.Billing,
		renders:     cfg.Renders,
		assetQueue:  cfg.AssetQueue,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// SynthesisParams is one synthesis request.
type SynthesisParams struct {
	ProjectID  string                    `json:"projectId"`
	Transcript string                    `json:"transcript"`
	Directives []domain.SpeakerDirective `json:"directives"`
	Global     *domain.VoiceSettings     `json:"global,omitempty"`
	Scene      string                    `json:"scene,omitempty"`
}

// SynthesisResult is the stored take plus a streaming URL.
type SynthesisResult struct {
	Asset    domain.Asset `json:"asset"`
	URL      string       `json:"url"`
	Repaired bool         `json:"repaired"`
}

// Synthesize gates on the audio-character balance, composes the brief, and
// invokes synthesis. A multi-voice failure gets exactly one automatic
// repair: the transcript is rewritten into strict speaker-tagged form and
// synthesis retried once; if the retry also fails, the original error is
// what propagates. Single-voice failures never repair.
func (a *App) Synthesize(ctx context.Context, userID string, tier domain.SubscriptionTier, params SynthesisParams) (*SynthesisResult, error) {
	transcript := params.Transcript
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrTranscriptRequired
	}
	if len(params.Directives) == 0 {
		return nil, ErrNoVoices
	}

	chars := int64(utf8.RuneCountInString(transcript))
	decision, err := a.billing.Check(ctx, userID, tier, domain.CapabilityAudioChars, chars)
	if err != nil {
		return nil, fmt.Errorf("entitlement check: %w", err)
	}
	if !decision.Allowed {
		return nil, &EntitlementError{Reason: decision.Reason}
	}

	voices := make([]ai.SpeakerVoice, 0, len(params.Directives))
	for _, directive := range params.Directives {
		voices = append(voices, ai.SpeakerVoice{Speaker: directive.CharacterName, VoiceID: directive.VoiceID})
	}
	multiVoice := len(params.Directives) > 1

	brief := composeBrief(transcript, params.Directives, params.Global, params.Scene)
	audio, err := a.synthesizer.SynthesizeSpeech(ctx, a.speechModel, brief, voices)
	repaired := false
	if err != nil && multiVoice {
		// One repair attempt, never more. The original error is kept so a
		// failed repair does not mask what actually went wrong.
		originalErr := err
		reformatted, reformatErr := a.reformatTranscript(ctx, transcript, params.Directives)
		if reformatErr != nil {
			slog.Warn("transcript reformat failed", "err", reformatErr)
			return nil, &SynthesisError{Err: originalErr}
		}
		brief = composeBrief(reformatted, params.Directives, params.Global, params.Scene)
		audio, err = a.synthesizer.SynthesizeSpeech(ctx, a.speechModel, brief, voices)
		if err != nil {
			return nil, &SynthesisError{Err: originalErr}
		}
		repaired = true
	} else if err != nil {
		return nil, &SynthesisError{Err: err}
	}

	asset := domain.Asset{
		ID:         uuid.NewString(),
		ProjectID:  params.ProjectID,
		OwnerID:    userID,
		Kind:       domain.AssetAudio,
		StorageKey: "takes/" + uuid.NewString(),
		MimeType:   audio.MimeType,
		SizeBytes:  int64(len(audio.Data)),
		Metadata:   map[string]string{"speakers": fmt.Sprintf("%d", len(params.Directives))},
		CreatedAt:  a.now(),
	}
	if err := a.renders.PutBytes(ctx, asset.StorageKey, audio.Data, audio.MimeType); err != nil {
		return nil, fmt.Errorf("store render: %w", err)
	}
	if err := a.assetQueue.Enqueue(ctx, asset); err != nil {
		slog.Warn("enqueue asset record failed", "asset_id", asset.ID, "err", err)
	}
	if err := a.billing.Track(ctx, userID, tier, domain.CapabilityAudioChars, chars, "speech synthesis"); err != nil {
		slog.Warn("track audio usage failed", "user_id", userID, "err", err)
	}

	url, err := a.renders.PresignGet(ctx, asset.StorageKey, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("presign render: %w", err)
	}
	return &SynthesisResult{Asset: asset, URL: url, Repaired: repaired}, nil
}

// reformatTranscript asks the text model to rewrite the transcript into
// strict "CharacterName: line" form constrained to the known names.
func (a *App) reformatTranscript(ctx context.Context, transcript string, directives []domain.SpeakerDirective) (string, error) {
	completion, err := a.synthesizer.GenerateText(ctx, a.repairModel, ai.GenerateRequest{
		SystemInstruction: reformatInstruction(directives),
		Parts:             []ai.RequestPart{{Text: transcript}},
	})
	if err != nil {
		return "", err
	}
	reformatted := strings.TrimSpace(completion.Text)
	if reformatted == "" {
		return "", fmt.Errorf("reformat produced empty transcript")
	}
	return reformatted, nil
}
