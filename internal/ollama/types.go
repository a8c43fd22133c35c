// Package ollama provides a client for the Ollama HTTP API: streaming chat
// completions and model listing. The wire types mirror /api/chat and
// /api/tags.
package ollama

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Default configuration constants.
const (
	DefaultHost    = "http://localhost:11434"
	DefaultTimeout = 60 // seconds, non-streaming requests only
)

// API endpoints.
const (
	EndpointTags = "/api/tags"
	EndpointChat = "/api/chat"
)

// Fixed generation parameters. Temperature is caller-supplied; the rest are
// pinned for every request.
const (
	NumPredict = 1000
	TopP       = 0.9
)

// APIMessage is one conversation entry in the /api/chat payload. Images are
// base64 strings, consumed by vision-capable models.
type APIMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Options carries the generation parameters of a chat request.
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	TopP        float64 `json:"top_p"`
}

// ChatRequest is the request body for /api/chat.
type ChatRequest struct {
	Model    string       `json:"model"`
	Messages []APIMessage `json:"messages"`
	Stream   bool         `json:"stream"`
	Options  *Options     `json:"options,omitempty"`
}

// ChatResponse is one newline-delimited JSON chunk of a streaming /api/chat
// response. Error is set when the backend reports a failure mid-stream.
type ChatResponse struct {
	Model     string `json:"model,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// TagsResponse is the body of /api/tags.
type TagsResponse struct {
	Models []ModelDescriptor `json:"models"`
}

// NameSource records which shape of the backend's model descriptor supplied
// the name. The backend may return objects exposing a model attribute, maps
// keyed by name or id, or plain strings; the variant is resolved once here at
// the boundary so the rest of the system sees a uniform string.
type NameSource int

const (
	// NameFromModelField: object with a "model" attribute.
	NameFromModelField NameSource = iota
	// NameFromNameKey: map with a "name" key.
	NameFromNameKey
	// NameFromIDKey: map with an "id" key.
	NameFromIDKey
	// NameFromPlainString: bare string entry.
	NameFromPlainString
)

// String returns the source name for logging.
func (s NameSource) String() string {
	switch s {
	case NameFromModelField:
		return "model_field"
	case NameFromNameKey:
		return "name_key"
	case NameFromIDKey:
		return "id_key"
	case NameFromPlainString:
		return "plain_string"
	default:
		return "unknown"
	}
}

// ModelDescriptor identifies one available model. UnmarshalJSON normalizes
// the several descriptor shapes the backend may return into a plain name plus
// the source it came from.
type ModelDescriptor struct {
	Name   string
	Source NameSource
}

// UnmarshalJSON resolves the descriptor variant: plain string first, then an
// object checked for "model", "name" and "id" in that order.
func (d *ModelDescriptor) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		d.Name = plain
		d.Source = NameFromPlainString
		return nil
	}

	var obj struct {
		Model string `json:"model"`
		Name  string `json:"name"`
		ID    string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unrecognized model descriptor: %w", err)
	}

	switch {
	case obj.Model != "":
		d.Name = obj.Model
		d.Source = NameFromModelField
	case obj.Name != "":
		d.Name = obj.Name
		d.Source = NameFromNameKey
	case obj.ID != "":
		d.Name = obj.ID
		d.Source = NameFromIDKey
	default:
		return fmt.Errorf("model descriptor carries no name: %s", string(data))
	}
	return nil
}

// visionKeywords marks model names that accept image input. Substring match,
// case-insensitive.
var visionKeywords = []string{"vision", "vl", "visual", "llava", "qwen2-vl", "qwen2.5-vl"}

// IsVisionModel reports whether a model name suggests vision capability. The
// classification is advisory: the backend does not enforce it, so callers must
// block image sends to negatively-classified models themselves.
func IsVisionModel(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range visionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
