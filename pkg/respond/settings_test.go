package respond

import (
	"os"
	"path/filepath"
	"testing"
)

// TestSettingsStore_MissingFileDefaults verifies defaults when no file exists
func TestSettingsStore_MissingFileDefaults(t *testing.T) {
	st := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))

	s := st.Get()
	if !s.Enabled {
		t.Error("Enabled should default to true")
	}
	if s.BaseChance != 0.02 || s.MaxChance != 0.8 {
		t.Errorf("chances = %v/%v, want 0.02/0.8", s.BaseChance, s.MaxChance)
	}
	if s.MinSecondsBetween != 30 || s.MaxPerWindow != 3 || s.WindowSeconds != 300 {
		t.Errorf("cooldown defaults = %+v", s)
	}
	if s.DesignatedChannelID != "" {
		t.Error("DesignatedChannelID should default to unset")
	}
}

// TestSettingsStore_MalformedFileDefaults verifies a bad file never fails load
func TestSettingsStore_MalformedFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{{{"), 0600); err != nil {
		t.Fatal(err)
	}

	st := NewSettingsStore(path)
	if st.Get().BaseChance != 0.02 {
		t.Error("malformed file should yield defaults")
	}
}

// TestSettingsStore_PartialFileKeepsDefaults verifies missing keys default
func TestSettingsStore_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"base_chance": 0.05}`), 0600); err != nil {
		t.Fatal(err)
	}

	s := NewSettingsStore(path).Get()
	if s.BaseChance != 0.05 {
		t.Errorf("BaseChance = %v, want 0.05", s.BaseChance)
	}
	if s.WindowSeconds != 300 {
		t.Errorf("WindowSeconds = %d, want default 300", s.WindowSeconds)
	}
}

// TestSettingsStore_MutatorsPersist verifies each mutation is written through
func TestSettingsStore_MutatorsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	st := NewSettingsStore(path)
	st.SetEnabled(false)
	st.SetDesignatedChannel("42")
	st.SetChances(0.1, 0.9)

	reloaded := NewSettingsStore(path).Get()
	if reloaded.Enabled {
		t.Error("Enabled = true, want persisted false")
	}
	if reloaded.DesignatedChannelID != "42" {
		t.Errorf("DesignatedChannelID = %q, want 42", reloaded.DesignatedChannelID)
	}
	if reloaded.BaseChance != 0.1 || reloaded.MaxChance != 0.9 {
		t.Errorf("chances = %v/%v, want 0.1/0.9", reloaded.BaseChance, reloaded.MaxChance)
	}
}

// TestSettingsStore_SaveFailureKeepsMemoryState verifies the in-memory state
// stays authoritative when the write path is unusable.
func TestSettingsStore_SaveFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	// A directory at the settings path makes every write fail.
	blocked := filepath.Join(dir, "settings.json")
	if err := os.MkdirAll(blocked, 0755); err != nil {
		t.Fatal(err)
	}

	st := NewSettingsStore(blocked)
	st.SetDesignatedChannel("42")

	if st.Get().DesignatedChannelID != "42" {
		t.Error("mutation should hold in memory despite a failed save")
	}
}
