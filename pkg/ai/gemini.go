package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Google AI Studio (Gemini) API. It is the single
// transport boundary: every method returns either a fully parsed completion
// or a classified error; nothing above it inspects raw provider responses.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient constructs a client with the provided API key.
func NewGeminiClient(apiKey string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: defaultGeminiBaseURL,
		// Candidate timers race the call; the transport timeout is only a
		// backstop sized for heavy-media candidates.
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// GenerateText runs one text/tool completion against the given model.
func (c *GeminiClient) GenerateText(ctx context.Context, model string, req GenerateRequest) (*TextCompletion, error) {
	if req.Grounding && len(req.Tools) > 0 {
		return nil, ErrToolsWithGrounding
	}

	wire := generateRequest{Contents: buildContents(req.History, req.Parts)}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		wire.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
	}
	switch {
	case req.Grounding:
		wire.Tools = []toolDeclaration{{GoogleSearch: &struct{}{}}}
	case len(req.Tools) > 0:
		wire.Tools = []toolDeclaration{{FunctionDeclarations: req.Tools}}
	}

	var resp generateResponse
	if err := c.doJSON(ctx, c.endpoint(model), wire, &resp); err != nil {
		return nil, err
	}
	return decodeTextCompletion(resp)
}

// SynthesizeSpeech renders the transcript to audio. One voice binds a plain
// voice config; two or more bind the first two as named speaker slots — the
// provider supports at most two, and any further voices are dropped here.
func (c *GeminiClient) SynthesizeSpeech(ctx context.Context, model, transcript string, voices []SpeakerVoice) (*AudioCompletion, error) {
	if len(voices) == 0 {
		return nil, fmt.Errorf("at least one voice required")
	}

	speech := &speechConfig{}
	if len(voices) == 1 {
		speech.VoiceConfig = &voiceConfig{PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: voices[0].VoiceID}}
	} else {
		bound := voices[:2]
		configs := make([]speakerVoiceConfig, 0, len(bound))
		for _, v := range bound {
			configs = append(configs, speakerVoiceConfig{
				Speaker:     v.Speaker,
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: v.VoiceID}},
			})
		}
		speech.MultiSpeakerVoiceConfig = &multiSpeakerVoiceConfig{SpeakerVoiceConfigs: configs}
	}

	wire := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: transcript}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       speech,
		},
	}
	var resp generateResponse
	if err := c.doJSON(ctx, c.endpoint(model), wire, &resp); err != nil {
		return nil, err
	}
	return decodeAudioCompletion(resp)
}

// GenerateImage renders one image for the prompt.
func (c *GeminiClient) GenerateImage(ctx context.Context, model, prompt string) (*ImageCompletion, error) {
	wire := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}
	var resp generateResponse
	if err := c.doJSON(ctx, c.endpoint(model), wire, &resp); err != nil {
		return nil, err
	}
	return decodeImageCompletion(resp)
}

func (c *GeminiClient) endpoint(model string) string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, normalizeModel(model), c.apiKey)
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

func buildContents(history []Turn, parts []RequestPart) []content {
	contents := make([]content, 0, len(history)+1)
	for _, turn := range history {
		role := turn.Role
		if role != "model" {
			role = "user"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: turn.Text}}})
	}

	current := content{Role: "user"}
	for _, p := range parts {
		switch {
		case p.Inline != nil:
			current.Parts = append(current.Parts, part{InlineData: &inlineData{
				MimeType: p.Inline.MimeType,
				Data:     base64.StdEncoding.EncodeToString(p.Inline.Data),
			}})
		case p.FileURI != "":
			current.Parts = append(current.Parts, part{FileData: &fileData{FileURI: p.FileURI}})
		case p.Text != "":
			current.Parts = append(current.Parts, part{Text: p.Text})
		}
	}
	if len(current.Parts) > 0 {
		contents = append(contents, current)
	}
	return contents
}

func (c *GeminiClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Status:     errResp.Error.Status,
			Message:    errResp.Error.Message,
		}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}
