package app

import "storyloom/pkg/ai"

// Tool names the model may invoke. ReplaceDocument and AppendToDocument
// mutate the manuscript; the rest are independently actionable and handed
// back to the client untouched.
const (
	ToolReplaceDocument       = "ReplaceDocument"
	ToolAppendToDocument      = "AppendToDocument"
	ToolConfigureSpeechStudio = "ConfigureSpeechStudio"
	ToolTriggerSearch         = "TriggerSearch"
	ToolListMail              = "ListMail"
	ToolSendMail              = "SendMail"
	ToolListCalendarEvents    = "ListCalendarEvents"
	ToolCreateCalendarEvent   = "CreateCalendarEvent"
	ToolDeleteCalendarEvent   = "DeleteCalendarEvent"
)

func stringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// DocumentTools returns the function declarations offered on tool-enabled
// completions.
func DocumentTools() []ai.FunctionDeclaration {
	return []ai.FunctionDeclaration{
		{
			Name:        ToolReplaceDocument,
			Description: "Replace the entire manuscript with new content.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"content": stringParam("The full replacement text.")},
				"required":   []string{"content"},
			},
		},
		{
			Name:        ToolAppendToDocument,
			Description: "Append content to the end of the manuscript.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"content": stringParam("The text to append.")},
				"required":   []string{"content"},
			},
		},
		{
			Name:        ToolConfigureSpeechStudio,
			Description: "Open the speech studio preconfigured for a passage.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"passage": stringParam("The passage to perform."),
					"style":   stringParam("Optional delivery style."),
				},
				"required": []string{"passage"},
			},
		},
		{
			Name:        ToolTriggerSearch,
			Description: "Run a research web search for the user.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": stringParam("The search query.")},
				"required":   []string{"query"},
			},
		},
		{
			Name:        ToolListMail,
			Description: "List recent messages from the user's connected inbox.",
		},
		{
			Name:        ToolSendMail,
			Description: "Draft and send a message from the user's connected inbox.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"to":      stringParam("Recipient address."),
					"subject": stringParam("Message subject."),
					"body":    stringParam("Message body."),
				},
				"required": []string{"to", "subject", "body"},
			},
		},
		{
			Name:        ToolListCalendarEvents,
			Description: "List upcoming events from the user's connected calendar.",
		},
		{
			Name:        ToolCreateCalendarEvent,
			Description: "Create an event on the user's connected calendar.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": stringParam("Event title."),
					"start": stringParam("Start time, RFC 3339."),
					"end":   stringParam("End time, RFC 3339."),
				},
				"required": []string{"title", "start"},
			},
		},
		{
			Name:        ToolDeleteCalendarEvent,
			Description: "Delete an event from the user's connected calendar.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"eventId": stringParam("The event identifier.")},
				"required":   []string{"eventId"},
			},
		},
	}
}
