package convo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chime-bot/chime/pkg/logger"
)

const DefaultMaxHistory = 300

// Role tags a conversation turn for the model API.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one recorded message in a channel's history. Immutable once
// appended, except for removal through RemoveLastBotMessage.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	Message     string    `json:"message"`
	IsBot       bool      `json:"is_bot"`
	Personality string    `json:"personality,omitempty"`
}

// Turn is a request-ready conversation turn.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Store keeps a bounded, persisted message history per channel. The whole
// store maps to one JSON file; every mutation rewrites it (fine at this
// scale, see the compaction job for the long tail).
type Store struct {
	path       string
	maxHistory int
	mu         sync.RWMutex
	channels   map[string][]Entry
	now        func() time.Time
}

func NewStore(path string) *Store {
	return NewStoreWithLimit(path, DefaultMaxHistory)
}

func NewStoreWithLimit(path string, maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	s := &Store{
		path:       path,
		maxHistory: maxHistory,
		channels:   make(map[string][]Entry),
		now:        time.Now,
	}
	s.load()
	return s
}

// load reads the persisted store. Any read or parse failure resets to an
// empty store; the next save overwrites the bad file.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.ErrorCF("convo", "Failed to read context file, starting empty", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		}
		return
	}

	var channels map[string][]Entry
	if err := json.Unmarshal(data, &channels); err != nil {
		logger.ErrorCF("convo", "Malformed context file, starting empty", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return
	}
	s.channels = channels
}

// save persists the full store. Failure is logged; in-memory state stays
// authoritative.
func (s *Store) save() {
	data, err := json.MarshalIndent(s.channels, "", "  ")
	if err != nil {
		logger.ErrorCF("convo", "Failed to encode context store", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		logger.ErrorCF("convo", "Failed to create context dir", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		logger.ErrorCF("convo", "Failed to write context file", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
	}
}

// Append records a message in the channel's history, evicting the oldest
// entries beyond the history cap, and persists the store.
func (s *Store) Append(channelID, user, message string, isBot bool, personality string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		Timestamp:   s.now(),
		User:        user,
		Message:     message,
		IsBot:       isBot,
		Personality: personality,
	}

	history := append(s.channels[channelID], entry)
	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}
	s.channels[channelID] = history

	s.save()
}

// Recent returns up to limit most recent raw entries, oldest first.
func (s *Store) Recent(channelID string, limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.channels[channelID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]Entry, len(history))
	copy(out, history)
	return out
}

// Turns maps the most recent entries to model-API turns. Bot entries keep
// their text verbatim under the assistant role; user entries get a
// "Name: text" prefix so attribution survives role-only consumers.
func (s *Store) Turns(channelID string, limit int) []Turn {
	entries := s.Recent(channelID, limit)

	turns := make([]Turn, 0, len(entries))
	for _, e := range entries {
		if e.IsBot {
			turns = append(turns, Turn{Role: RoleAssistant, Content: e.Message})
			continue
		}
		turns = append(turns, Turn{Role: RoleUser, Content: fmt.Sprintf("%s: %s", e.User, e.Message)})
	}
	return turns
}

// History returns the recent history as "Speaker: text" lines for display.
func (s *Store) History(channelID string, limit int) string {
	entries := s.Recent(channelID, limit)

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		speaker := e.User
		if e.IsBot {
			speaker = e.Personality
			if speaker == "" {
				speaker = "Bot"
			}
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, e.Message))
	}
	return strings.Join(lines, "\n")
}

// RemoveLastBotMessage removes the most recent bot entry whose text matches
// content exactly. Used by the retry flow so the model is not re-fed the
// response being regenerated. Returns whether an entry was removed.
func (s *Store) RemoveLastBotMessage(channelID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.channels[channelID]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].IsBot && history[i].Message == content {
			s.channels[channelID] = append(history[:i], history[i+1:]...)
			s.save()
			return true
		}
	}
	return false
}

// ClearChannel drops the channel's history entirely.
func (s *Store) ClearChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[channelID]; !ok {
		return
	}
	delete(s.channels, channelID)
	s.save()
}

// Len reports the number of stored entries for a channel.
func (s *Store) Len(channelID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels[channelID])
}

// Compact re-applies the history cap to every channel and persists once.
// Appends already trim, so this only matters after the cap is lowered or
// the file was edited out-of-band.
func (s *Store) Compact() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed := 0
	for id, history := range s.channels {
		if len(history) > s.maxHistory {
			trimmed += len(history) - s.maxHistory
			s.channels[id] = history[len(history)-s.maxHistory:]
		}
	}
	if trimmed > 0 {
		s.save()
	}
	return trimmed
}
