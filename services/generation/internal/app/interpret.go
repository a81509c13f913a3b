package app

import (
	"log/slog"
	"strings"

	"storyloom/pkg/ai"
)

// MutationKind is the document mutation family a tool invocation maps to.
type MutationKind string

const (
	MutationReplace MutationKind = "replace"
	MutationAppend  MutationKind = "append"
)

// DocumentMutation is the single manuscript edit extracted from one
// completion. At most one mutation is ever applied per response.
type DocumentMutation struct {
	Kind MutationKind `json:"kind"`
	Text string       `json:"text"`
}

// Interpretation is the actionable reading of a completion: the user-facing
// text (with sources folded in), at most one document mutation, and any
// non-document tool invocations passed through for the client to act on.
type Interpretation struct {
	Text     string              `json:"text"`
	Mutation *DocumentMutation   `json:"mutation,omitempty"`
	Actions  []ai.ToolInvocation `json:"actions,omitempty"`
}

// Interpret scans tool invocations in order. The first ReplaceDocument or
// AppendToDocument wins; later invocations of the mutating family are
// ignored so one response can never double-apply. Malformed mutation
// payloads are dropped silently and the plain text still surfaces.
func Interpret(completion *ai.TextCompletion) Interpretation {
	out := Interpretation{Text: completion.Text}

	for _, invocation := range completion.ToolInvocations {
		switch invocation.Name {
		case ToolReplaceDocument, ToolAppendToDocument:
			if out.Mutation != nil {
				continue
			}
			text, ok := stringArg(invocation.Args, "content")
			if !ok {
				slog.Warn("dropping malformed document tool payload", "tool", invocation.Name)
				continue
			}
			kind := MutationAppend
			if invocation.Name == ToolReplaceDocument {
				kind = MutationReplace
			}
			out.Mutation = &DocumentMutation{Kind: kind, Text: text}
		default:
			out.Actions = append(out.Actions, invocation)
		}
	}

	if out.Text == "" && out.Mutation != nil {
		switch out.Mutation.Kind {
		case MutationReplace:
			out.Text = "content rewritten"
		case MutationAppend:
			out.Text = "content appended"
		}
	}

	if sources := renderSources(completion.Sources); sources != "" {
		if out.Text != "" {
			out.Text += "\n\n"
		}
		out.Text += sources
	}
	return out
}

// renderSources deduplicates citations by URI, preserving first-seen order.
func renderSources(sources []ai.GroundingSource) string {
	if len(sources) == 0 {
		return ""
	}
	seen := make(map[string]bool, len(sources))
	var b strings.Builder
	for _, source := range sources {
		uri := strings.TrimSpace(source.URI)
		if uri == "" || seen[uri] {
			continue
		}
		seen[uri] = true
		if b.Len() == 0 {
			b.WriteString("Sources:")
		}
		title := strings.TrimSpace(source.Title)
		if title == "" {
			title = uri
		}
		b.WriteString("\n- ")
		b.WriteString(title)
		b.WriteString(" (")
		b.WriteString(uri)
		b.WriteString(")")
	}
	return b.String()
}

func stringArg(args map[string]any, key string) (string, bool) {
	raw, ok := args[key]
	if !ok {
		return "", false
	}
	text, ok := raw.(string)
	if !ok || text == "" {
		return "", false
	}
	return text, true
}
