package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ollachat/internal/logger"
	"ollachat/pkg/chattypes"
)

// maxChunkSize bounds a single streamed JSON line (1 MB).
const maxChunkSize = 1024 * 1024

// Client talks to an Ollama server. Non-streaming calls use a bounded
// timeout; streaming chat uses a separate client without one, because a
// generation may legitimately outlive any fixed deadline. Request lifetime is
// governed by the caller's context instead.
type Client struct {
	host         string
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a client for the given host, e.g.
// "http://localhost:11434". An empty host falls back to DefaultHost.
func NewClient(host string) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		host:         strings.TrimSuffix(host, "/"),
		httpClient:   &http.Client{Timeout: DefaultTimeout * time.Second},
		streamClient: &http.Client{},
	}
}

// Host returns the configured server address.
func (c *Client) Host() string {
	return c.host
}

// ListModels fetches the available model descriptors from /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+EndpointTags, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama not reachable at %s: %w", c.host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var tags TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	logger.Debug("models listed", "count", len(tags.Models))
	return tags.Models, nil
}

// StreamChat sends a chat request and delivers the response incrementally.
// The returned channel is finite and forward-only: each element is a text
// fragment, and concatenating every fragment in order yields the full reply.
// Errors never escape this boundary as panics or bare failures; a backend or
// transport error arrives as a single "Error: ..." fragment with Err set,
// followed by the Done chunk, so callers always receive some textual result.
func (c *Client) StreamChat(ctx context.Context, model string, messages []chattypes.Message, temperature float64) <-chan chattypes.StreamChunk {
	out := make(chan chattypes.StreamChunk, 16)

	go func() {
		defer close(out)

		if err := c.streamChat(ctx, model, messages, temperature, out); err != nil {
			logger.Error("chat request failed", "model", model, "error", err)
			out <- chattypes.StreamChunk{Content: fmt.Sprintf("Error: %v", err), Err: err}
		}
		out <- chattypes.StreamChunk{Done: true}
	}()

	return out
}

func (c *Client) streamChat(ctx context.Context, model string, messages []chattypes.Message, temperature float64, out chan<- chattypes.StreamChunk) error {
	apiMessages := make([]APIMessage, 0, len(messages))
	for _, msg := range messages {
		apiMsg := APIMessage{Role: msg.Role, Content: msg.Content}
		if len(msg.Images) > 0 {
			apiMsg.Images = msg.Images
		}
		apiMessages = append(apiMessages, apiMsg)
	}

	request := ChatRequest{
		Model:    model,
		Messages: apiMessages,
		Stream:   true,
		Options: &Options{
			Temperature: temperature,
			NumPredict:  NumPredict,
			TopP:        TopP,
		},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+EndpointChat, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("chat request", "model", model, "messages", len(apiMessages), "temperature", temperature)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", c.host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	return c.readStream(resp.Body, out)
}

// readStream parses the newline-delimited JSON response body, forwarding one
// chunk per content fragment until the final done marker.
func (c *Client) readStream(body io.Reader, out chan<- chattypes.StreamChunk) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxChunkSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			logger.Debug("skipping malformed stream chunk", "error", err)
			continue
		}

		if chunk.Error != "" {
			return fmt.Errorf("ollama error: %s", chunk.Error)
		}

		if chunk.Message.Content != "" {
			out <- chattypes.StreamChunk{Content: chunk.Message.Content}
		}

		if chunk.Done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}
