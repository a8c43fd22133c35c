// Package store persists chat sessions as one JSON file per session under a
// fixed history directory. Session identifiers are validated before any disk
// access so malformed ids can never reach a file path.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"ollachat/internal/logger"
	"ollachat/pkg/chattypes"
)

const (
	filePrefix = "chat_"
	fileSuffix = ".json"
)

// ErrInvalidSessionID is returned when an identifier fails the pattern check.
// No filesystem operation happens for an invalid id.
var ErrInvalidSessionID = errors.New("invalid session ID")

// sessionIDPattern matches valid session identifiers. The character set keeps
// ids safe to embed in file names; the timestamp-based default format sorts
// lexicographically by recency.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// ValidateSessionID reports whether an identifier is safe to use in a session
// file path.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// sessionFile is the on-disk schema: UTF-8 JSON, non-ASCII unescaped.
// MessageCount always equals len(Messages) at save time.
type sessionFile struct {
	Timestamp    string              `json:"timestamp"`
	Messages     []chattypes.Message `json:"messages"`
	MessageCount int                 `json:"message_count"`
}

// Store reads and writes session files under a single directory. The
// directory may be shared by multiple process instances; the per-session file
// is overwritten whole on every save, last writer wins.
type Store struct {
	dir string
}

// New creates a store rooted at dir. Call EnsureDirectory before saving.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the history directory path.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDirectory idempotently creates the history directory, parents
// included.
func (s *Store) EnsureDirectory() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	return nil
}

// Save writes the session to <dir>/chat_<id>.json, fully replacing any prior
// content. The write goes through a temp file and rename so a crash mid-write
// never truncates an existing session. Save failures are reported to the
// caller but leave in-memory state untouched.
func (s *Store) Save(session *chattypes.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if err := ValidateSessionID(session.ID); err != nil {
		return err
	}

	doc := sessionFile{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Messages:     session.Messages,
		MessageCount: len(session.Messages),
	}

	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	path := s.sessionPath(session.ID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("could not save chat history: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("could not save chat history: %w", err)
	}

	logger.Debug("session saved", "id", session.ID, "messages", len(session.Messages))
	return nil
}

// Load reads the message list for a session. A missing file is not an error:
// it yields an empty history. Unreadable or malformed files also degrade to an
// empty history, with the cause returned as a diagnostic for the caller to
// surface; Load never fails hard.
func (s *Store) Load(id string) ([]chattypes.Message, error) {
	if err := ValidateSessionID(id); err != nil {
		return []chattypes.Message{}, err
	}

	path := s.sessionPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []chattypes.Message{}, nil
		}
		return []chattypes.Message{}, fmt.Errorf("could not load chat history: %w", err)
	}

	var doc sessionFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return []chattypes.Message{}, fmt.Errorf("could not load chat history: %w", err)
	}
	if doc.Messages == nil {
		return []chattypes.Message{}, nil
	}
	return doc.Messages, nil
}

// ListSessions enumerates session ids under the history directory, sorted
// descending. With timestamp-format ids this is most-recent-first. An
// unreadable directory yields an empty list.
func (s *Store) ListSessions() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logger.Debug("could not list sessions", "dir", s.dir, "error", err)
		return []string{}
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if ValidateSessionID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.dir, filePrefix+id+fileSuffix)
}
