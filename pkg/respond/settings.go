package respond

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/chime-bot/chime/pkg/logger"
)

// Settings are the tunables for autonomous responses. One instance per
// process, persisted as a flat JSON document.
type Settings struct {
	Enabled             bool    `json:"enabled"`
	DesignatedChannelID string  `json:"designated_channel_id,omitempty"`
	BaseChance          float64 `json:"base_chance"`
	MaxChance           float64 `json:"max_chance"`
	MinSecondsBetween   int     `json:"min_seconds_between"`
	MaxPerWindow        int     `json:"max_per_window"`
	WindowSeconds       int     `json:"window_seconds"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled:           true,
		BaseChance:        0.02,
		MaxChance:         0.8,
		MinSecondsBetween: 30,
		MaxPerWindow:      3,
		WindowSeconds:     300,
	}
}

// SettingsStore owns the settings instance. All writers go through the
// mutators here; each mutation persists immediately. Numeric ranges are not
// validated — callers are responsible for sane values.
type SettingsStore struct {
	path string
	mu   sync.RWMutex
	s    Settings
}

// NewSettingsStore loads settings from path. A missing or malformed file
// yields defaults; loading never fails.
func NewSettingsStore(path string) *SettingsStore {
	st := &SettingsStore{path: path, s: DefaultSettings()}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.ErrorCF("respond", "Failed to read settings, using defaults", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		}
		return st
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		logger.ErrorCF("respond", "Malformed settings file, using defaults", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return st
	}
	st.s = s
	return st
}

// Get returns a snapshot of the current settings.
func (st *SettingsStore) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

func (st *SettingsStore) SetEnabled(enabled bool) {
	st.mu.Lock()
	st.s.Enabled = enabled
	st.mu.Unlock()
	st.save()
	logger.InfoCF("respond", "Auto-response toggled", map[string]interface{}{"enabled": enabled})
}

func (st *SettingsStore) SetDesignatedChannel(channelID string) {
	st.mu.Lock()
	st.s.DesignatedChannelID = channelID
	st.mu.Unlock()
	st.save()
	logger.InfoCF("respond", "Designated channel set", map[string]interface{}{"channel_id": channelID})
}

func (st *SettingsStore) SetChances(base, max float64) {
	st.mu.Lock()
	st.s.BaseChance = base
	st.s.MaxChance = max
	st.mu.Unlock()
	st.save()
	logger.InfoCF("respond", "Chances updated", map[string]interface{}{"base": base, "max": max})
}

// save persists the settings. Failure is logged and the in-memory state
// stays authoritative.
func (st *SettingsStore) save() {
	st.mu.RLock()
	data, err := json.MarshalIndent(st.s, "", "  ")
	st.mu.RUnlock()
	if err != nil {
		logger.ErrorCF("respond", "Failed to encode settings", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.MkdirAll(filepath.Dir(st.path), 0755); err != nil {
		logger.ErrorCF("respond", "Failed to create settings dir", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.WriteFile(st.path, data, 0600); err != nil {
		logger.ErrorCF("respond", "Failed to write settings", map[string]interface{}{
			"path":  st.path,
			"error": err.Error(),
		})
	}
}
