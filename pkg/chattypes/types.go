// Package chattypes defines the shared types for ollachat: conversation
// messages, persisted sessions, upload candidates and streaming chunks.
package chattypes

import "time"

// Message roles recognized by the Ollama chat API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a conversation. The JSON shape matches the
// session file schema and the Ollama /api/chat payload: images, when present,
// are base64-encoded strings for vision-capable models. Messages are appended,
// never edited.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Session is the unit of persistence: an ordered message list keyed by a
// validated identifier. One file per session on disk.
type Session struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an empty session with the given identifier.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message to the session and bumps the update timestamp.
func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now().UTC()
}

// UploadCandidate is a transient, in-memory representation of one uploaded
// file. It lives for a single validation+encoding pass and is discarded once
// adopted into the pending attachment list or rejected.
type UploadCandidate struct {
	Filename string
	Data     []byte
	// DeclaredSize is the size reported by the upload source. A negative
	// value means the source did not report one; len(Data) is used instead.
	DeclaredSize int64
}

// Size returns the declared size when available, the byte length otherwise.
func (u *UploadCandidate) Size() int64 {
	if u.DeclaredSize >= 0 {
		return u.DeclaredSize
	}
	return int64(len(u.Data))
}

// Attachment is a validated, encoded image waiting to be sent with the next
// user message.
type Attachment struct {
	ID       string // short identifier for listing and removal
	Filename string
	Base64   string
	// Optimized reports whether the image went through the resize/recompress
	// pipeline or was raw-encoded (fallback or optimization disabled).
	Optimized bool
}

// StreamChunk is one incremental fragment of a streamed model response.
// Concatenating the Content of every chunk in order yields the full reply.
// Backend failures are delivered as a formatted Content fragment with Err set,
// so consumers always receive some textual result.
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}

// ControllerState tracks where the application controller is within one user
// turn. A turn runs to completion before the next input is accepted.
type ControllerState int

// Controller states, in the order a turn moves through them.
const (
	StateIdle ControllerState = iota
	StateAwaitingInput
	StateValidating
	StateSending
	StateStreaming
)

// String returns the state name for logging.
func (s ControllerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateValidating:
		return "validating"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}
