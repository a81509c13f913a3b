package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"storyloom/pkg/ai"
	"storyloom/pkg/domain"
	"storyloom/pkg/storage"
	"storyloom/pkg/store"
)

// Generator is the provider gateway surface this service consumes.
// *ai.GeminiClient satisfies it.
type Generator interface {
	GenerateText(ctx context.Context, model string, req ai.GenerateRequest) (*ai.TextCompletion, error)
	GenerateImage(ctx context.Context, model string, prompt string) (*ai.ImageCompletion, error)
}

// GateDecision mirrors the billing gate outcome.
type GateDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Billing is the entitlement surface consumed before and after chargeable
// operations.
type Billing interface {
	Check(ctx context.Context, userID string, tier domain.SubscriptionTier, capability domain.Capability, amount int64) (GateDecision, error)
	Track(ctx context.Context, userID string, tier domain.SubscriptionTier, capability domain.Capability, amount int64, description string) error
	Usage(ctx context.Context, userID string, tier domain.SubscriptionTier) (domain.UsageSnapshot, error)
}

// AssetEnqueuer schedules a durable asset-record write off the request path.
type AssetEnqueuer interface {
	Enqueue(ctx context.Context, asset domain.Asset) error
}

// Config wires app dependencies.
type Config struct {
	Generator       Generator
	Candidates      []ai.Candidate
	ImageCandidates []ai.Candidate
	Store           store.Store
	Billing         Billing
	Renders         storage.RenderStore
	AssetQueue      AssetEnqueuer
	WorkspaceCache  WorkspaceCache
}

// App orchestrates generation: the model fallback chain, the tool-call
// interpreter, document mutation application, and the workspace bootstrap.
type App struct {
	generator       Generator
	candidates      []ai.Candidate
	imageCandidates []ai.Candidate
	store           store.Store
	billing         Billing
	renders         storage.RenderStore
	assetQueue      AssetEnqueuer
	cache           WorkspaceCache
	now             func() time.Time
}

// New constructs the app.
func New(cfg Config) (*App, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("app requires a generator")
	}
	if len(cfg.Candidates) == 0 {
		return nil, fmt.Errorf("app requires at least one model candidate")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("app requires a store")
	}
	imageCandidates := cfg.ImageCandidates
	if len(imageCandidates) == 0 {
		imageCandidates = cfg.Candidates
	}
	return &App{
		generator:       cfg.Generator,
		candidates:      cfg.Candidates,
		imageCandidates: imageCandidates,
		store:           cfg.Store,
		billing:         cfg.Billing,
		renders:         cfg.Renders,
		assetQueue:      cfg.AssetQueue,
		cache:           cfg.WorkspaceCache,
		now:             func() time.Time { return time.Now().UTC() },
	}, nil
}

// GenerateParams is one user intent against the manuscript.
type GenerateParams struct {
	ProjectID         string    `json:"projectId"`
	Prompt            string    `json:"prompt"`
	SystemInstruction string    `json:"systemInstruction"`
	History           []ai.Turn `json:"history"`
	Grounding         bool      `json:"grounding"`
}

// GenerateResult is the interpreted completion plus what was applied.
type GenerateResult struct {
	Text            string              `json:"text"`
	Mutation        *DocumentMutation   `json:"mutation,omitempty"`
	Actions         []ai.ToolInvocation `json:"actions,omitempty"`
	SnapshotID      string              `json:"snapshotId,omitempty"`
	DocumentUpdated bool                `json:"documentUpdated"`
}

// Generate runs the fallback chain, interprets the completion, and applies
// at most one document mutation to the project. A ReplaceDocument mutation
// snapshots the current document first so the rewrite is recoverable.
// Grounded calls carry no function tools; the provider forbids mixing them.
func (a *App) Generate(ctx context.Context, userID string, params GenerateParams) (*GenerateResult, error) {
	if params.Prompt == "" {
		return nil, ErrPromptRequired
	}

	req := ai.GenerateRequest{
		SystemInstruction: params.SystemInstruction,
		History:           params.History,
		Parts:             []ai.RequestPart{{Text: params.Prompt}},
		Grounding:         params.Grounding,
	}
	if !params.Grounding {
		req.Tools = DocumentTools()
	}

	completion, err := ai.RunWithFallback(ctx, a.candidates, func(ctx context.Context, model string) (*ai.TextCompletion, error) {
		return a.generator.GenerateText(ctx, model, req)
	})
	if err != nil {
		return nil, err
	}

	interpretation := Interpret(completion)
	result := &GenerateResult{
		Text:     interpretation.Text,
		Mutation: interpretation.Mutation,
		Actions:  interpretation.Actions,
	}
	if interpretation.Mutation == nil || params.ProjectID == "" {
		return result, nil
	}

	project, ok, err := a.store.GetProject(params.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !ok {
		return nil, ErrProjectNotFound
	}
	if project.OwnerID != userID {
		return nil, ErrProjectForbidden
	}

	switch interpretation.Mutation.Kind {
	case MutationReplace:
		snapshot := domain.VersionSnapshot{
			ID:        uuid.NewString(),
			ProjectID: project.ID,
			OwnerID:   project.OwnerID,
			Label:     "before rewrite",
			Document:  project.Document,
			CreatedAt: a.now(),
		}
		if err := a.store.SaveSnapshot(snapshot); err != nil {
			return nil, fmt.Errorf("snapshot document: %w", err)
		}
		result.SnapshotID = snapshot.ID
		if err := a.store.SetProjectDocument(project.ID, interpretation.Mutation.Text); err != nil {
			return nil, fmt.Errorf("replace document: %w", err)
		}
	case MutationAppend:
		if err := a.store.AppendProjectDocument(project.ID, interpretation.Mutation.Text); err != nil {
			return nil, fmt.Errorf("append document: %w", err)
		}
	}
	result.DocumentUpdated = true
	return result, nil
}

// ImageResult is a generated render plus a streaming URL for the client.
type ImageResult struct {
	Asset domain.Asset `json:"asset"`
	URL   string       `json:"url"`
}

// GenerateImage is gated by the image capability. The render payload goes
// to object storage synchronously; the asset record write is enqueued and
// its durable failure only logged, never surfaced.
func (a *App) GenerateImage(ctx context.Context, userID string, tier domain.SubscriptionTier, projectID, prompt string) (*ImageResult, error) {
	if prompt == "" {
		return nil, ErrPromptRequired
	}
	decision, err := a.billing.Check(ctx, userID, tier, domain.CapabilityImage, 1)
	if err != nil {
		return nil, fmt.Errorf("entitlement check: %w", err)
	}
	if !decision.Allowed {
		return nil, &EntitlementError{Reason: decision.Reason}
	}

	image, err := ai.RunWithFallback(ctx, a.imageCandidates, func(ctx context.Context, model string) (*ai.ImageCompletion, error) {
		return a.generator.GenerateImage(ctx, model, prompt)
	})
	if err != nil {
		return nil, err
	}

	asset := domain.Asset{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		OwnerID:    userID,
		Kind:       domain.AssetImage,
		StorageKey: "images/" + uuid.NewString(),
		MimeType:   image.MimeType,
		SizeBytes:  int64(len(image.Data)),
		Metadata:   map[string]string{"prompt": prompt},
		CreatedAt:  a.now(),
	}
	if err := a.renders.PutBytes(ctx, asset.StorageKey, image.Data, image.MimeType); err != nil {
		return nil, fmt.Errorf("store render: %w", err)
	}
	if err := a.assetQueue.Enqueue(ctx, asset); err != nil {
		slog.Warn("enqueue asset record failed", "asset_id", asset.ID, "err", err)
	}
	if err := a.billing.Track(ctx, userID, tier, domain.CapabilityImage, 1, "image generation"); err != nil {
		slog.Warn("track image usage failed", "user_id", userID, "err", err)
	}

	url, err := a.renders.PresignGet(ctx, asset.StorageKey, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("presign render: %w", err)
	}
	return &ImageResult{Asset: asset, URL: url}, nil
}

// SaveProject creates or updates a project owned by the caller.
func (a *App) SaveProject(userID string, project domain.Project) (domain.Project, error) {
	if project.ID == "" {
		project.ID = uuid.NewString()
		project.CreatedAt = a.now()
	} else {
		existing, ok, err := a.store.GetProject(project.ID)
		if err != nil {
			return domain.Project{}, fmt.Errorf("load project: %w", err)
		}
		if ok && existing.OwnerID != userID {
			return domain.Project{}, ErrProjectForbidden
		}
		if ok {
			project.CreatedAt = existing.CreatedAt
		}
	}
	project.OwnerID = userID
	project.UpdatedAt = a.now()
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	return project, nil
}

// DeleteProject removes a project owned by the caller.
func (a *App) DeleteProject(userID, projectID string) error {
	project, ok, err := a.store.GetProject(projectID)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if !ok {
		return ErrProjectNotFound
	}
	if project.OwnerID != userID {
		return ErrProjectForbidden
	}
	return a.store.DeleteProject(projectID)
}

// SaveBibleEntry creates or updates a story-bible card.
func (a *App) SaveBibleEntry(userID string, entry domain.BibleEntry) (domain.BibleEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
		entry.CreatedAt = a.now()
	}
	entry.OwnerID = userID
	entry.UpdatedAt = a.now()
	if err := a.store.SaveBibleEntry(entry); err != nil {
		return domain.BibleEntry{}, fmt.Errorf("save bible entry: %w", err)
	}
	return entry, nil
}

// DeleteBibleEntry removes a story-bible card.
func (a *App) DeleteBibleEntry(userID, entryID string) error {
	entries, err := a.store.ListBibleEntriesByOwner(userID)
	if err != nil {
		return fmt.Errorf("load bible entries: %w", err)
	}
	for _, entry := range entries {
		if entry.ID == entryID {
			return a.store.DeleteBibleEntry(entryID)
		}
	}
	return ErrEntryNotFound
}
