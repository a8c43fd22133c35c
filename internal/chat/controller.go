package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ollachat/internal/imaging"
	"ollachat/internal/logger"
	"ollachat/internal/ollama"
	"ollachat/internal/upload"
	"ollachat/pkg/chattypes"
)

// sessionIDFormat is the layout for generated session identifiers. UTC,
// second precision; ids sort lexicographically by recency.
const sessionIDFormat = "20060102_150405"

var (
	// ErrCapabilityMismatch blocks a send when images are pending but the
	// selected model is not vision-capable. The turn aborts with input state
	// unchanged: nothing is appended and nothing is persisted.
	ErrCapabilityMismatch = errors.New("images attached but selected model does not support vision")
	// ErrEmptyMessage rejects a blank submission.
	ErrEmptyMessage = errors.New("message cannot be empty")
)

// SessionStore is the persistence surface the controller drives.
type SessionStore interface {
	Save(session *chattypes.Session) error
	Load(id string) ([]chattypes.Message, error)
	ListSessions() []string
}

// ModelClient streams chat completions from the inference backend.
type ModelClient interface {
	StreamChat(ctx context.Context, model string, messages []chattypes.Message, temperature float64) <-chan chattypes.StreamChunk
}

// Settings are the user-facing knobs consumed by the controller.
type Settings struct {
	Model          string
	Temperature    float64 // clamped to [0, 2]
	SystemPrompt   string
	OptimizeImages bool
}

// FileReport is the per-file outcome of an upload batch. Files are validated
// independently: one rejection never invalidates the rest of the batch.
type FileReport struct {
	Filename string
	// Attachment is set when the file was accepted; nil on rejection.
	Attachment *chattypes.Attachment
	// Err is the rejection reason; nil when accepted.
	Err error
	// Warning carries the non-fatal format-mismatch diagnostic, if any.
	Warning string
	// Optimization describes the encoding pass for accepted files.
	Optimization imaging.Result
}

// Controller orchestrates one user turn: input, validation, optimization,
// persistence, context assembly, inference and display. It owns the session
// value explicitly; no component reads conversation state from anywhere else.
// A turn runs to completion before the next is accepted.
type Controller struct {
	state    chattypes.ControllerState
	session  *chattypes.Session
	pending  []chattypes.Attachment
	store    SessionStore
	client   ModelClient
	settings Settings
}

// NewController creates a controller with a fresh session.
func NewController(store SessionStore, client ModelClient, settings Settings) *Controller {
	settings.Temperature = clampTemperature(settings.Temperature)
	return &Controller{
		state:    chattypes.StateIdle,
		session:  chattypes.NewSession(newSessionID()),
		store:    store,
		client:   client,
		settings: settings,
	}
}

func newSessionID() string {
	return time.Now().UTC().Format(sessionIDFormat)
}

func clampTemperature(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 2 {
		return 2
	}
	return t
}

// State returns the controller's position within the current turn.
func (c *Controller) State() chattypes.ControllerState {
	return c.state
}

// Session exposes the running session for display.
func (c *Controller) Session() *chattypes.Session {
	return c.session
}

// Settings returns the current settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// SetModel selects the model for subsequent turns.
func (c *Controller) SetModel(model string) {
	c.settings.Model = model
}

// SetTemperature updates the sampling temperature, clamped to [0, 2].
func (c *Controller) SetTemperature(t float64) {
	c.settings.Temperature = clampTemperature(t)
}

// SetSystemPrompt updates the optional system directive.
func (c *Controller) SetSystemPrompt(prompt string) {
	c.settings.SystemPrompt = prompt
}

// SetOptimizeImages toggles the optimization pipeline for new attachments.
func (c *Controller) SetOptimizeImages(on bool) {
	c.settings.OptimizeImages = on
}

// Pending returns the attachments waiting to be sent with the next message.
func (c *Controller) Pending() []chattypes.Attachment {
	return c.pending
}

// ClearPending discards all pending attachments.
func (c *Controller) ClearPending() {
	c.pending = nil
}

// RemovePending drops a single pending attachment by id, reporting whether it
// was found.
func (c *Controller) RemovePending(id string) bool {
	for i, att := range c.pending {
		if att.ID == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Sessions lists the persisted session ids, most recent first.
func (c *Controller) Sessions() []string {
	return c.store.ListSessions()
}

// NewSession starts a fresh conversation. A current session that already has
// messages is persisted first (save-before-switch), then the message list is
// reset, a timestamp id is assigned, and pending attachments are cleared.
func (c *Controller) NewSession() string {
	if len(c.session.Messages) > 0 {
		c.persist()
	}
	c.session = chattypes.NewSession(newSessionID())
	c.pending = nil
	logger.Info("new session started", "id", c.session.ID)
	return c.session.ID
}

// LoadSession replaces the in-memory conversation with a persisted one. It is
// a no-op when the target id is already current. A missing or unreadable file
// degrades to an empty history; the returned error is a diagnostic for the
// caller to surface, never a hard failure.
func (c *Controller) LoadSession(id string) error {
	if id == c.session.ID {
		return nil
	}

	messages, err := c.store.Load(id)
	if err != nil {
		logger.Warn("could not load chat history", "id", id, "error", err)
	}

	c.session = chattypes.NewSession(id)
	c.session.Messages = messages
	logger.Info("session loaded", "id", id, "messages", len(messages))
	return err
}

// ClearSession empties the current conversation and persists the empty list.
func (c *Controller) ClearSession() {
	c.session.Messages = make([]chattypes.Message, 0)
	c.persist()
}

// AttachFiles validates, optimizes and encodes an upload batch. Every file is
// judged on its own merits; the report carries the per-file outcome. Accepted
// files join the pending list in batch order.
func (c *Controller) AttachFiles(batch []*chattypes.UploadCandidate) []FileReport {
	c.state = chattypes.StateValidating
	defer func() { c.state = chattypes.StateIdle }()

	reports := make([]FileReport, 0, len(batch))
	for _, candidate := range batch {
		reports = append(reports, c.attachFile(candidate))
	}
	return reports
}

func (c *Controller) attachFile(candidate *chattypes.UploadCandidate) FileReport {
	report := FileReport{}
	if candidate != nil {
		report.Filename = candidate.Filename
	}

	if err := upload.Validate(candidate); err != nil {
		report.Err = err
		logger.Warn("upload rejected", "file", report.Filename, "reason", err)
		return report
	}

	if declared, actual, mismatch := upload.CheckFormatMismatch(candidate); mismatch {
		report.Warning = fmt.Sprintf("image format (%s) doesn't match extension (%s)", actual, declared)
		logger.Warn("upload format mismatch", "file", report.Filename, "declared", declared, "actual", actual)
	}

	var encoded string
	if c.settings.OptimizeImages {
		report.Optimization = imaging.Optimize(candidate.Data)
		encoded = report.Optimization.Base64
	} else {
		encoded = imaging.EncodeRaw(candidate.Data)
		report.Optimization = imaging.Result{
			Outcome:      imaging.OutcomeRawFallback,
			Base64:       encoded,
			OriginalSize: len(candidate.Data),
			EncodedSize:  len(candidate.Data),
		}
	}

	// Short id is enough for listing and removal within one pending batch.
	attachment := chattypes.Attachment{
		ID:        uuid.New().String()[:8],
		Filename:  candidate.Filename,
		Base64:    encoded,
		Optimized: report.Optimization.Outcome == imaging.OutcomeOptimized,
	}
	c.pending = append(c.pending, attachment)
	report.Attachment = &attachment
	return report
}

// Submit runs one full turn: vision gate, append user message, persist,
// assemble context, stream the reply (onToken is called for each fragment),
// append the assistant message, persist again, clear pending attachments.
// The full assistant reply is returned.
//
// When attachments are pending and the model fails the vision predicate the
// turn aborts before any mutation: no message is appended, nothing is
// persisted, and the pending list is left for the user to clear or resend
// against a vision model.
func (c *Controller) Submit(ctx context.Context, content string, onToken func(string)) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyMessage
	}
	if len(c.pending) > 0 && !ollama.IsVisionModel(c.settings.Model) {
		return "", fmt.Errorf("%w: %s", ErrCapabilityMismatch, c.settings.Model)
	}

	userMsg := chattypes.Message{Role: chattypes.RoleUser, Content: content}
	for _, att := range c.pending {
		userMsg.Images = append(userMsg.Images, att.Base64)
	}

	c.session.Append(userMsg)
	c.persist()

	c.state = chattypes.StateSending
	apiMessages := BuildContext(c.session.Messages, c.settings.SystemPrompt)
	logger.Debug("context assembled",
		"messages", len(apiMessages),
		"history", len(c.session.Messages),
		"system_prompt", strings.TrimSpace(c.settings.SystemPrompt) != "")

	c.state = chattypes.StateStreaming
	var reply strings.Builder
	for chunk := range c.client.StreamChat(ctx, c.settings.Model, apiMessages, c.settings.Temperature) {
		if chunk.Content != "" {
			reply.WriteString(chunk.Content)
			if onToken != nil {
				onToken(chunk.Content)
			}
		}
		if chunk.Err != nil {
			logger.Error("backend error surfaced in reply", "error", chunk.Err)
		}
	}

	c.session.Append(chattypes.Message{Role: chattypes.RoleAssistant, Content: reply.String()})
	c.persist()
	c.pending = nil
	c.state = chattypes.StateIdle

	return reply.String(), nil
}

// persist writes through to the store after every mutation. Failures are
// warnings: the in-memory session stays authoritative and usable.
func (c *Controller) persist() {
	if err := c.store.Save(c.session); err != nil {
		logger.Warn("could not save chat history", "id", c.session.ID, "error", err)
	}
}
