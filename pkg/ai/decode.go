package ai

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Per-kind response decoders. A completion is never partially valid: each
// decoder either returns a fully parsed value or an error that fails the
// whole attempt.

func decodeTextCompletion(resp generateResponse) (*TextCompletion, error) {
	if len(resp.Candidates) == 0 {
		return nil, ErrEmptyCompletion
	}
	candidate := resp.Candidates[0]

	out := &TextCompletion{}
	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		if p.FuncCall != nil {
			out.ToolInvocations = append(out.ToolInvocations, ToolInvocation{
				Name: p.FuncCall.Name,
				Args: p.FuncCall.Args,
			})
			continue
		}
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	out.Text = sb.String()

	if candidate.GroundingMetadata != nil {
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			out.Sources = append(out.Sources, GroundingSource{
				Title: chunk.Web.Title,
				URI:   chunk.Web.URI,
			})
		}
	}

	if out.Text == "" && len(out.ToolInvocations) == 0 {
		return nil, ErrEmptyCompletion
	}
	return out, nil
}

func decodeAudioCompletion(resp generateResponse) (*AudioCompletion, error) {
	data, mimeType, err := firstInlinePart(resp, "audio/")
	if err != nil {
		return nil, err
	}
	return &AudioCompletion{MimeType: mimeType, Data: data}, nil
}

func decodeImageCompletion(resp generateResponse) (*ImageCompletion, error) {
	data, mimeType, err := firstInlinePart(resp, "image/")
	if err != nil {
		return nil, err
	}
	return &ImageCompletion{MimeType: mimeType, Data: data}, nil
}

func firstInlinePart(resp generateResponse, mimePrefix string) ([]byte, string, error) {
	if len(resp.Candidates) == 0 {
		return nil, "", ErrEmptyCompletion
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MimeType, mimePrefix) {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return nil, "", fmt.Errorf("decode inline %s data: %w", mimePrefix, err)
		}
		return data, p.InlineData.MimeType, nil
	}
	return nil, "", ErrEmptyCompletion
}
