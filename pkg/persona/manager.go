package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chime-bot/chime/pkg/convo"
	"github.com/chime-bot/chime/pkg/logger"
)

// Personality is a reply profile: who the bot pretends to be, how the model
// is prompted, which context namespace it reads and writes, and which
// keywords pull the trigger chance up.
type Personality struct {
	Name         string             `json:"name"`
	SystemPrompt string             `json:"system_prompt"`
	ContextFile  string             `json:"context_file"`
	Keywords     map[string]float64 `json:"auto_response_keywords,omitempty"`
}

type personalitiesFile struct {
	DefaultPersonality int           `json:"default_personality"`
	Personalities      []Personality `json:"personalities"`
}

// Manager owns the personality roster, the per-channel active selection,
// and one context store per context namespace. Personalities that share a
// context file share a store.
type Manager struct {
	path         string // personalities.json
	settingsPath string // per-channel selection, next to path
	contextsDir  string
	maxHistory   int

	mu            sync.RWMutex
	personalities []Personality
	defaultIndex  int
	active        map[string]int // channelID -> personality index
	contexts      map[string]*convo.Store
}

func NewManager(path, contextsDir string, maxHistory int) *Manager {
	m := &Manager{
		path:         path,
		settingsPath: filepath.Join(filepath.Dir(path), "personality_settings.json"),
		contextsDir:  contextsDir,
		maxHistory:   maxHistory,
		active:       make(map[string]int),
		contexts:     make(map[string]*convo.Store),
	}
	m.loadPersonalities()
	m.loadActive()
	return m
}

func (m *Manager) loadPersonalities() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.ErrorCF("persona", "Failed to read personalities", map[string]interface{}{
				"path":  m.path,
				"error": err.Error(),
			})
		}
		m.personalities = []Personality{defaultPersonality()}
		return
	}

	var f personalitiesFile
	if err := json.Unmarshal(data, &f); err != nil {
		logger.ErrorCF("persona", "Malformed personalities file, using default", map[string]interface{}{
			"path":  m.path,
			"error": err.Error(),
		})
		m.personalities = []Personality{defaultPersonality()}
		return
	}

	if len(f.Personalities) == 0 {
		m.personalities = []Personality{defaultPersonality()}
		return
	}
	m.personalities = f.Personalities
	m.defaultIndex = f.DefaultPersonality
	if m.defaultIndex < 0 || m.defaultIndex >= len(m.personalities) {
		m.defaultIndex = 0
	}
	logger.InfoCF("persona", "Loaded personalities", map[string]interface{}{"count": len(m.personalities)})
}

func defaultPersonality() Personality {
	return Personality{
		Name:         "Assistant",
		SystemPrompt: "You are a helpful chat assistant.",
		ContextFile:  "assistant_context.json",
	}
}

func (m *Manager) loadActive() {
	data, err := os.ReadFile(m.settingsPath)
	if err != nil {
		return
	}
	active := make(map[string]int)
	if err := json.Unmarshal(data, &active); err != nil {
		logger.ErrorCF("persona", "Malformed personality settings, ignoring", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	m.active = active
}

func (m *Manager) saveActive() {
	data, err := json.MarshalIndent(m.active, "", "  ")
	if err != nil {
		logger.ErrorCF("persona", "Failed to encode personality settings", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.settingsPath), 0755); err != nil {
		logger.ErrorCF("persona", "Failed to create settings dir", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.WriteFile(m.settingsPath, data, 0600); err != nil {
		logger.ErrorCF("persona", "Failed to write personality settings", map[string]interface{}{"error": err.Error()})
	}
}

func (m *Manager) savePersonalities() {
	f := personalitiesFile{
		DefaultPersonality: m.defaultIndex,
		Personalities:      m.personalities,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		logger.ErrorCF("persona", "Failed to encode personalities", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		logger.ErrorCF("persona", "Failed to create personalities dir", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		logger.ErrorCF("persona", "Failed to write personalities", map[string]interface{}{"error": err.Error()})
	}
}

// List returns the roster in index order.
func (m *Manager) List() []Personality {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Personality, len(m.personalities))
	copy(out, m.personalities)
	return out
}

// Get returns the personality at index, falling back to the first entry for
// out-of-range values.
func (m *Manager) Get(index int) Personality {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 0 || index >= len(m.personalities) {
		index = 0
	}
	return m.personalities[index]
}

// ByName looks a personality up case-insensitively.
func (m *Manager) ByName(name string) (int, Personality, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lower := strings.ToLower(name)
	for i, p := range m.personalities {
		if strings.ToLower(p.Name) == lower {
			return i, p, true
		}
	}
	return 0, Personality{}, false
}

// ActiveIndex returns the active personality index for a channel, or the
// default when the channel has no explicit selection.
func (m *Manager) ActiveIndex(channelID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.active[channelID]; ok && idx >= 0 && idx < len(m.personalities) {
		return idx
	}
	return m.defaultIndex
}

// Active returns the active personality for a channel.
func (m *Manager) Active(channelID string) Personality {
	return m.Get(m.ActiveIndex(channelID))
}

// SetActive selects a personality for a channel. An out-of-range index is
// an explicit error, not a silent clamp.
func (m *Manager) SetActive(channelID string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.personalities) {
		return fmt.Errorf("invalid personality index: %d", index)
	}
	m.active[channelID] = index
	m.saveActive()
	return nil
}

// Add creates a personality, deriving its context filename from the name.
// Nil keywords default to the personality's own name with a strong weight.
func (m *Manager) Add(name, systemPrompt string, keywords map[string]float64) (Personality, error) {
	if strings.TrimSpace(name) == "" {
		return Personality{}, fmt.Errorf("personality name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lower := strings.ToLower(name)
	for _, p := range m.personalities {
		if strings.ToLower(p.Name) == lower {
			return Personality{}, fmt.Errorf("personality %q already exists", p.Name)
		}
	}

	if keywords == nil {
		keywords = map[string]float64{lower: 20.0}
	}

	p := Personality{
		Name:         name,
		SystemPrompt: systemPrompt,
		ContextFile:  strings.ReplaceAll(lower, " ", "_") + "_context.json",
		Keywords:     keywords,
	}
	m.personalities = append(m.personalities, p)
	m.savePersonalities()

	logger.InfoCF("persona", "Added personality", map[string]interface{}{"name": name})
	return p, nil
}

// ContextFor returns the context store backing a personality, creating it
// on first use.
func (m *Manager) ContextFor(p Personality) *convo.Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	file := p.ContextFile
	if file == "" {
		file = "default_context.json"
	}
	if store, ok := m.contexts[file]; ok {
		return store
	}
	store := convo.NewStoreWithLimit(filepath.Join(m.contextsDir, file), m.maxHistory)
	m.contexts[file] = store
	return store
}

// ContextForChannel returns the context store of a channel's active
// personality.
func (m *Manager) ContextForChannel(channelID string) *convo.Store {
	return m.ContextFor(m.Active(channelID))
}

// OpenContexts returns every context store created so far, for maintenance
// passes.
func (m *Manager) OpenContexts() []*convo.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*convo.Store, 0, len(m.contexts))
	for _, s := range m.contexts {
		out = append(out, s)
	}
	return out
}
