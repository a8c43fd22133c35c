// Package shell provides the interactive chat interface for ollachat. It wires
// the application controller into the ishell environment: named commands for
// session and attachment management, with anything else treated as a chat
// message for the selected model.
package shell

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"ollachat/internal/chat"
	"ollachat/internal/imaging"
	"ollachat/internal/logger"
	"ollachat/internal/ollama"
	"ollachat/pkg/chattypes"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// ModelLister fetches the available model descriptors for the models command.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ollama.ModelDescriptor, error)
}

// Handler routes shell input to the application controller.
type Handler struct {
	controller *chat.Controller
	models     ModelLister
	renderer   *glamour.TermRenderer
}

// New creates a handler around the controller. Rendering of replayed history
// degrades to plain text when the terminal renderer cannot be constructed.
func New(controller *chat.Controller, models ModelLister) *Handler {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		logger.Debug("markdown renderer unavailable, using plain output", "error", err)
		renderer = nil
	}

	return &Handler{
		controller: controller,
		models:     models,
		renderer:   renderer,
	}
}

// Register attaches all commands to the shell and routes remaining input to
// ProcessInput.
func (h *Handler) Register(sh *ishell.Shell) {
	sh.AddCmd(&ishell.Cmd{
		Name: "new",
		Help: "start a new session (current one is saved first)",
		Func: h.cmdNew,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "load",
		Help: "load <session-id>: continue a previous session",
		Func: h.cmdLoad,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "sessions",
		Help: "list saved sessions, most recent first",
		Func: h.cmdSessions,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "models",
		Help: "list available models",
		Func: h.cmdModels,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "model",
		Help: "model <name>: select the model to chat with",
		Func: h.cmdModel,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "temp",
		Help: "temp <0..2>: set the sampling temperature",
		Func: h.cmdTemp,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "system",
		Help: "system [text]: set or clear the system prompt",
		Func: h.cmdSystem,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "attach",
		Help: "attach <file> [file...]: attach images to the next message",
		Func: h.cmdAttach,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "images",
		Help: "images [clear|rm <id>]: list or discard pending attachments",
		Func: h.cmdImages,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "optimize",
		Help: "optimize <on|off>: toggle image optimization",
		Func: h.cmdOptimize,
	})
	sh.AddCmd(&ishell.Cmd{
		Name: "clear",
		Help: "clear the current conversation",
		Func: h.cmdClear,
	})

	sh.NotFound(h.ProcessInput)
}

// ProcessInput treats free-form input as a chat message and streams the reply.
func (h *Handler) ProcessInput(c *ishell.Context) {
	input := strings.TrimSpace(strings.Join(c.RawArgs, " "))
	if input == "" {
		return
	}

	settings := h.controller.Settings()
	if settings.Model == "" {
		c.Println(errorStyle.Render("No model selected. Use: model <name> (see: models)"))
		return
	}

	if pending := h.controller.Pending(); len(pending) > 0 {
		c.Println(infoStyle.Render(fmt.Sprintf("Sending %d attached image(s)", len(pending))))
	}

	c.Println(assistantStyle.Render(settings.Model+":"))
	reply, err := h.controller.Submit(context.Background(), input, func(token string) {
		c.Print(token)
	})
	if err != nil {
		c.Println(errorStyle.Render(err.Error()))
		return
	}
	if !strings.HasSuffix(reply, "\n") {
		c.Println()
	}

	c.Println(infoStyle.Render(chat.ContextSummary(h.controller.Session().Messages)))
}

func (h *Handler) cmdNew(c *ishell.Context) {
	id := h.controller.NewSession()
	c.Println(infoStyle.Render("New session started: " + id))
}

func (h *Handler) cmdLoad(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Println("usage: load <session-id>")
		return
	}

	id := c.Args[0]
	if err := h.controller.LoadSession(id); err != nil {
		c.Println(warnStyle.Render("Warning: " + err.Error()))
	}

	messages := h.controller.Session().Messages
	c.Println(infoStyle.Render(fmt.Sprintf("Loaded session %s (%s)", id, chat.ContextSummary(messages))))
	for _, msg := range messages {
		h.printMessage(c, msg)
	}
}

func (h *Handler) cmdSessions(c *ishell.Context) {
	sessions := h.controller.Sessions()
	if len(sessions) == 0 {
		c.Println("No previous sessions found")
		return
	}

	current := h.controller.Session().ID
	for _, id := range sessions {
		marker := "  "
		if id == current {
			marker = "* "
		}
		c.Println(marker + id)
	}
}

func (h *Handler) cmdModels(c *ishell.Context) {
	descriptors, err := h.models.ListModels(context.Background())
	if err != nil {
		c.Println(errorStyle.Render("Error fetching models: " + err.Error()))
		return
	}
	if len(descriptors) == 0 {
		c.Println("No models found. Pull one first: ollama pull llama3.2:1b")
		return
	}

	for _, d := range descriptors {
		badge := "text-only"
		if ollama.IsVisionModel(d.Name) {
			badge = "vision"
		}
		c.Printf("  %-40s %s\n", d.Name, infoStyle.Render(badge))
	}
}

func (h *Handler) cmdModel(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Println("usage: model <name>")
		return
	}

	name := c.Args[0]
	h.controller.SetModel(name)
	if ollama.IsVisionModel(name) {
		c.Println(infoStyle.Render("Vision model - supports images"))
	} else {
		c.Println(infoStyle.Render("Text-only model"))
	}
}

func (h *Handler) cmdTemp(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Printf("temperature: %.1f\n", h.controller.Settings().Temperature)
		return
	}

	value, err := strconv.ParseFloat(c.Args[0], 64)
	if err != nil {
		c.Println(errorStyle.Render("temperature must be a number between 0 and 2"))
		return
	}
	h.controller.SetTemperature(value)
	c.Printf("temperature: %.1f\n", h.controller.Settings().Temperature)
}

func (h *Handler) cmdSystem(c *ishell.Context) {
	prompt := strings.TrimSpace(strings.Join(c.Args, " "))
	h.controller.SetSystemPrompt(prompt)
	if prompt == "" {
		c.Println(infoStyle.Render("System prompt cleared"))
	} else {
		c.Println(infoStyle.Render("System prompt set"))
	}
}

func (h *Handler) cmdAttach(c *ishell.Context) {
	if len(c.Args) == 0 {
		c.Println("usage: attach <file> [file...]")
		return
	}

	settings := h.controller.Settings()
	if settings.Model != "" && !ollama.IsVisionModel(settings.Model) {
		c.Println(warnStyle.Render("Selected model is not vision-capable; attachments will be blocked at send time"))
	}

	batch := make([]*chattypes.UploadCandidate, 0, len(c.Args))
	for _, path := range c.Args {
		batch = append(batch, readCandidate(path))
	}

	reports := h.controller.AttachFiles(batch)
	for _, report := range reports {
		switch {
		case report.Err != nil:
			c.Println(errorStyle.Render(fmt.Sprintf("%s: rejected: %v", report.Filename, report.Err)))
		default:
			if report.Warning != "" {
				c.Println(warnStyle.Render(report.Filename + ": " + report.Warning))
			}
			c.Println(describeAttachment(report))
		}
	}
}

func (h *Handler) cmdImages(c *ishell.Context) {
	if len(c.Args) > 0 {
		switch c.Args[0] {
		case "clear":
			h.controller.ClearPending()
			c.Println(infoStyle.Render("Attachments cleared"))
			return
		case "rm":
			if len(c.Args) != 2 {
				c.Println("usage: images rm <id>")
				return
			}
			if h.controller.RemovePending(c.Args[1]) {
				c.Println(infoStyle.Render("Attachment removed"))
			} else {
				c.Println(errorStyle.Render("No attachment with id " + c.Args[1]))
			}
			return
		default:
			c.Println("usage: images [clear|rm <id>]")
			return
		}
	}

	pending := h.controller.Pending()
	if len(pending) == 0 {
		c.Println("No pending attachments")
		return
	}
	for _, att := range pending {
		kind := "raw"
		if att.Optimized {
			kind = "optimized"
		}
		c.Printf("  %s  %s (%s)\n", att.ID, att.Filename, kind)
	}
}

func (h *Handler) cmdOptimize(c *ishell.Context) {
	if len(c.Args) != 1 || (c.Args[0] != "on" && c.Args[0] != "off") {
		c.Println("usage: optimize <on|off>")
		return
	}
	on := c.Args[0] == "on"
	h.controller.SetOptimizeImages(on)
	if on {
		c.Println(infoStyle.Render(fmt.Sprintf("Image optimization on (max %dx%d, quality %d)",
			imaging.MaxWidth, imaging.MaxHeight, imaging.JPEGQuality)))
	} else {
		c.Println(infoStyle.Render("Images will be sent without optimization"))
	}
}

func (h *Handler) cmdClear(c *ishell.Context) {
	h.controller.ClearSession()
	c.Println(infoStyle.Render("Conversation cleared"))
}

// printMessage renders one history entry: styled role label, then markdown
// for assistant messages when a renderer is available.
func (h *Handler) printMessage(c *ishell.Context, msg chattypes.Message) {
	switch msg.Role {
	case chattypes.RoleAssistant:
		c.Println(assistantStyle.Render("assistant:"))
		if h.renderer != nil {
			if rendered, err := h.renderer.Render(msg.Content); err == nil {
				c.Print(rendered)
				break
			}
		}
		c.Println(msg.Content)
	default:
		c.Println(userStyle.Render(msg.Role + ":"))
		c.Println(msg.Content)
	}
	if len(msg.Images) > 0 {
		c.Println(infoStyle.Render(fmt.Sprintf("  [%d image(s) attached]", len(msg.Images))))
	}
}

// readCandidate loads a file into an upload candidate. Read failures yield a
// candidate with no data, which the validator rejects with its own reason.
func readCandidate(path string) *chattypes.UploadCandidate {
	candidate := &chattypes.UploadCandidate{
		Filename:     path,
		DeclaredSize: -1,
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("could not stat upload", "path", path, "error", err)
		return candidate
	}
	candidate.DeclaredSize = info.Size()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("could not read upload", "path", path, "error", err)
		return candidate
	}
	candidate.Data = data
	return candidate
}

func describeAttachment(report chat.FileReport) string {
	opt := report.Optimization
	if opt.Outcome == imaging.OutcomeOptimized {
		return fmt.Sprintf("%s: attached (%dx%d, %dKB -> %dKB)",
			report.Filename, opt.Width, opt.Height, opt.OriginalSize/1024, opt.EncodedSize/1024)
	}
	return fmt.Sprintf("%s: attached (raw, %dKB)", report.Filename, opt.OriginalSize/1024)
}
