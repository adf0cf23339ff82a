// Package chatlog persists conversations as flat per-session text logs and
// caches them in memory for the lifetime of the process.
package chatlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"github.com/phantasma-ai/specky/internal/model"
	"github.com/phantasma-ai/specky/pkg/logger"
)

var (
	// ErrStoreUnavailable wraps failures reading or writing a chat log.
	ErrStoreUnavailable = errors.New("chat log store unavailable")
	// ErrInvalidSessionID is returned for ids that cannot name a log file.
	ErrInvalidSessionID = errors.New("invalid session id")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id is usable as a session id.
func ValidID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

type entry struct {
	conv   *model.Conversation
	onDisk bool
}

// Store loads, caches and appends conversations.
type Store struct {
	dir      string
	greeting string
	logger   *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewStore creates a store rooted at dir. greeting is the assistant turn
// that opens conversations with no log on disk.
func NewStore(dir, greeting string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create %s: %v", ErrStoreUnavailable, dir, err)
	}
	return &Store{
		dir:      dir,
		greeting: greeting,
		logger:   log,
		entries:  make(map[string]*entry),
	}, nil
}

// Path returns the log file of a session.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".txt")
}

// Exists reports whether a session has a log file.
func (s *Store) Exists(id string) bool {
	if !ValidID(id) {
		return false
	}
	s.mu.Lock()
	_, cached := s.entries[id]
	s.mu.Unlock()
	if cached {
		return true
	}
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Load returns a snapshot of the session's conversation, reading the log on
// first access or synthesizing the greeting when no log exists. Sessions
// without a log are not cached, so unknown ids cost nothing to serve.
func (s *Store) Load(ctx context.Context, id string) (*model.Conversation, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return e.conv.Clone(), nil
}

func (s *Store) entry(id string) (*entry, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if ok {
		return e, nil
	}

	loaded, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if !loaded.onDisk {
		// Synthesized greetings are cached by the first Append.
		return loaded, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have populated the cache while we read the file.
	if e, ok := s.entries[id]; ok {
		return e, nil
	}
	s.entries[id] = loaded
	return loaded, nil
}

func (s *Store) read(id string) (*entry, error) {
	f, err := os.Open(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return &entry{
			conv: &model.Conversation{
				ID:    id,
				Turns: []model.Turn{model.AssistantTurn(Canonical(s.greeting))},
			},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	turns, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrStoreUnavailable, f.Name(), err)
	}

	s.logger.Debug("chat log loaded",
		zap.String("session_id", id),
		zap.Int("turns", len(turns)),
	)

	return &entry{
		conv:   &model.Conversation{ID: id, Turns: turns},
		onDisk: true,
	}, nil
}

// Append adds turns to the conversation and appends them to its log in a
// single write. Callers for the same session must already be serialized.
// Turn text is stored in canonical form so memory matches the log.
func (s *Store) Append(ctx context.Context, id string, turns ...model.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	e, err := s.entry(id)
	if err != nil {
		return err
	}

	added := make([]model.Turn, len(turns))
	for i, t := range turns {
		added[i] = model.Turn{Assistant: t.Assistant, Text: Canonical(t.Text)}
	}

	s.mu.Lock()
	toWrite := added
	if !e.onDisk {
		// The log starts with the synthesized greeting.
		toWrite = append(e.conv.Clone().Turns, added...)
	}
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := Encode(&buf, toWrite); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := s.write(id, buf.Bytes()); err != nil {
		return err
	}

	s.mu.Lock()
	e.conv.Turns = append(e.conv.Turns, added...)
	e.onDisk = true
	if _, ok := s.entries[id]; !ok {
		s.entries[id] = e
	}
	s.mu.Unlock()

	return nil
}

func (s *Store) write(id string, data []byte) error {
	f, err := os.OpenFile(s.Path(id), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: failed to append to %s: %v", ErrStoreUnavailable, f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
