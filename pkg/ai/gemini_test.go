package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewGeminiClient("test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.baseURL = server.URL
	return client
}

func TestGenerateTextRejectsGroundingWithTools(t *testing.T) {
	client := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatalf("request must not reach the provider")
	})
	_, err := client.GenerateText(context.Background(), "gemini-2.5-flash", GenerateRequest{
		Parts:     []RequestPart{{Text: "hi"}},
		Grounding: true,
		Tools:     []FunctionDeclaration{{Name: "ReplaceDocument"}},
	})
	if !errors.Is(err, ErrToolsWithGrounding) {
		t.Fatalf("expected ErrToolsWithGrounding, got: %v", err)
	}
}

func TestGenerateTextDecodesErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "status": "RESOURCE_EXHAUSTED", "message": "quota exceeded"}}`))
	})
	_, err := client.GenerateText(context.Background(), "gemini-2.5-flash", GenerateRequest{
		Parts: []RequestPart{{Text: "hi"}},
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got: %v", err)
	}
	if apiErr.StatusCode != 429 || apiErr.Status != "RESOURCE_EXHAUSTED" {
		t.Fatalf("unexpected envelope: %+v", apiErr)
	}
	if Classify(err) != FailureOverloaded {
		t.Fatalf("429 must classify as overloaded")
	}
}

func TestGenerateTextWiresHistoryAndGrounding(t *testing.T) {
	var captured generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`))
	})

	_, err := client.GenerateText(context.Background(), "gemini-2.5-flash", GenerateRequest{
		SystemInstruction: "You are a story editor.",
		History: []Turn{
			{Role: "user", Text: "draft a scene"},
			{Role: "model", Text: "here it is"},
		},
		Parts:     []RequestPart{{Text: "tighten it"}},
		Grounding: true,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "You are a story editor." {
		t.Fatalf("system instruction not forwarded: %+v", captured.SystemInstruction)
	}
	if len(captured.Contents) != 3 {
		t.Fatalf("expected history + current turn, got %d contents", len(captured.Contents))
	}
	if captured.Contents[1].Role != "model" {
		t.Fatalf("history roles not preserved: %+v", captured.Contents)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].GoogleSearch == nil {
		t.Fatalf("grounding tool not set: %+v", captured.Tools)
	}
}

func TestSynthesizeSpeechBindsAtMostTwoSpeakers(t *testing.T) {
	var captured generateRequest
	payload := base64.StdEncoding.EncodeToString([]byte("pcm"))
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"inlineData": {"mimeType": "audio/wav", "data": "` + payload + `"}}]}}]}`))
	})

	voices := []SpeakerVoice{
		{Speaker: "Ava", VoiceID: "Kore"},
		{Speaker: "Ben", VoiceID: "Puck"},
		{Speaker: "Cal", VoiceID: "Charon"},
	}
	audio, err := client.SynthesizeSpeech(context.Background(), "gemini-2.5-flash-preview-tts", "Ava: hi\nBen: hello", voices)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio.Data) != "pcm" {
		t.Fatalf("unexpected audio: %q", audio.Data)
	}

	speech := captured.GenerationConfig.SpeechConfig
	if speech == nil || speech.MultiSpeakerVoiceConfig == nil {
		t.Fatalf("multi speaker config missing: %+v", captured.GenerationConfig)
	}
	configs := speech.MultiSpeakerVoiceConfig.SpeakerVoiceConfigs
	if len(configs) != 2 {
		t.Fatalf("provider cap is two speakers, got %d", len(configs))
	}
	if configs[0].Speaker != "Ava" || configs[1].Speaker != "Ben" {
		t.Fatalf("first two directives must be bound in order: %+v", configs)
	}
}

func TestSynthesizeSpeechSingleVoice(t *testing.T) {
	var captured generateRequest
	payload := base64.StdEncoding.EncodeToString([]byte("pcm"))
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"inlineData": {"mimeType": "audio/wav", "data": "` + payload + `"}}]}}]}`))
	})

	if _, err := client.SynthesizeSpeech(context.Background(), "tts-model", "hello", []SpeakerVoice{{Speaker: "Narrator", VoiceID: "Kore"}}); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	speech := captured.GenerationConfig.SpeechConfig
	if speech == nil || speech.VoiceConfig == nil || speech.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Kore" {
		t.Fatalf("single voice config missing: %+v", speech)
	}
	if speech.MultiSpeakerVoiceConfig != nil {
		t.Fatalf("single voice must not bind speaker slots")
	}
}
