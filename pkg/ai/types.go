package ai

// Wire types for the Gemini generateContent endpoint family.

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string        `json:"text,omitempty"`
	InlineData *inlineData   `json:"inlineData,omitempty"`
	FileData   *fileData     `json:"fileData,omitempty"`
	FuncCall   *functionCall `json:"functionCall,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionDeclaration describes one callable tool offered to the model.
// Parameters is an OpenAPI-style schema object.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolDeclaration struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
	GoogleSearch         *struct{}             `json:"googleSearch,omitempty"`
}

type generationConfig struct {
	Temperature        float64       `json:"temperature,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig             *voiceConfig             `json:"voiceConfig,omitempty"`
	MultiSpeakerVoiceConfig *multiSpeakerVoiceConfig `json:"multiSpeakerVoiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type multiSpeakerVoiceConfig struct {
	SpeakerVoiceConfigs []speakerVoiceConfig `json:"speakerVoiceConfigs"`
}

type speakerVoiceConfig struct {
	Speaker     string      `json:"speaker"`
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	Tools             []toolDeclaration `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content           content            `json:"content"`
		GroundingMetadata *groundingMetadata `json:"groundingMetadata,omitempty"`
	} `json:"candidates"`
}

type groundingMetadata struct {
	GroundingChunks []struct {
		Web *struct {
			URI   string `json:"uri"`
			Title string `json:"title"`
		} `json:"web,omitempty"`
	} `json:"groundingChunks"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Public request/response shapes used by callers of the gateway.

// Turn is one prior conversation exchange. Role is "user" or "model".
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Media is an inline attachment (raw bytes, base64-encoded on the wire).
type Media struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// RequestPart is one piece of the current user turn: plain text, inline
// media, or a reference to externally uploaded media.
type RequestPart struct {
	Text    string `json:"text,omitempty"`
	Inline  *Media `json:"inline,omitempty"`
	FileURI string `json:"fileUri,omitempty"`
}

// GenerateRequest is the gateway input for a text/tool completion.
// Grounding and function tools are mutually exclusive in one call.
type GenerateRequest struct {
	SystemInstruction string
	History           []Turn
	Parts             []RequestPart
	Tools             []FunctionDeclaration
	Grounding         bool
}

// ToolInvocation is a structured function call returned by the model.
type ToolInvocation struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// GroundingSource is one web citation attached to a grounded completion.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// TextCompletion is a fully parsed text/tool response.
type TextCompletion struct {
	Text            string            `json:"text"`
	ToolInvocations []ToolInvocation  `json:"toolInvocations,omitempty"`
	Sources         []GroundingSource `json:"sources,omitempty"`
}

// AudioCompletion is a fully parsed speech-synthesis response.
type AudioCompletion struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// ImageCompletion is a fully parsed image-generation response.
type ImageCompletion struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// SpeakerVoice binds one named speaker slot to a prebuilt voice.
type SpeakerVoice struct {
	Speaker string `json:"speaker"`
	VoiceID string `json:"voiceId"`
}
