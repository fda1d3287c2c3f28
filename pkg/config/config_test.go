package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig_Prefix verifies the command prefix default
func TestDefaultConfig_Prefix(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Bot.CommandPrefix != "!" {
		t.Errorf("CommandPrefix = %q, want %q", cfg.Bot.CommandPrefix, "!")
	}
}

// TestDefaultConfig_History verifies history bounds have defaults
func TestDefaultConfig_History(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Bot.MaxHistory != 300 {
		t.Errorf("MaxHistory = %d, want 300", cfg.Bot.MaxHistory)
	}
	if cfg.Bot.ReplyContextLimit == 0 {
		t.Error("ReplyContextLimit should not be zero")
	}
}

// TestDefaultConfig_Provider verifies provider defaults are OpenAI-compatible
func TestDefaultConfig_Provider(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider.APIKey != "" {
		t.Error("API key should be empty by default")
	}
	if cfg.Provider.APIBase == "" {
		t.Error("API base should have a default value")
	}
	if cfg.Provider.Model == "" {
		t.Error("Model should have a default value")
	}
}

// TestLoadConfig_MissingFileReturnsDefaults verifies a missing config file is not an error
func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "no-such-config.json"))
	if err != nil {
		t.Fatalf("LoadConfig on missing file: %v", err)
	}
	if cfg.Bot.MaxHistory != 300 {
		t.Errorf("expected defaults, got MaxHistory=%d", cfg.Bot.MaxHistory)
	}
}

// TestLoadConfig_FileOverridesDefaults verifies JSON values win over defaults
func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"bot": {"command_prefix": "?", "max_history": 50}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Bot.CommandPrefix != "?" {
		t.Errorf("CommandPrefix = %q, want %q", cfg.Bot.CommandPrefix, "?")
	}
	if cfg.Bot.MaxHistory != 50 {
		t.Errorf("MaxHistory = %d, want 50", cfg.Bot.MaxHistory)
	}
	// Untouched sections keep defaults.
	if cfg.Provider.Model == "" {
		t.Error("Provider.Model should keep its default")
	}
}

// TestLoadConfig_EnvOverridesFile verifies env vars win over the file
func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"bot": {"command_prefix": "?"}}`), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CHIME_BOT_COMMAND_PREFIX", ">")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Bot.CommandPrefix != ">" {
		t.Errorf("CommandPrefix = %q, want %q", cfg.Bot.CommandPrefix, ">")
	}
}

// TestFlexibleStringSlice_MixedTypes verifies numbers are accepted in allow_from
func TestFlexibleStringSlice_MixedTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"channels": {"discord": {"allow_from": ["123", 456]}}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	got := []string(cfg.Channels.Discord.AllowFrom)
	if len(got) != 2 || got[0] != "123" || got[1] != "456" {
		t.Errorf("AllowFrom = %v, want [123 456]", got)
	}
}

// TestSaveConfig_Roundtrip verifies saved config loads back identically
func TestSaveConfig_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Bot.MaxHistory = 77
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Bot.MaxHistory != 77 {
		t.Errorf("MaxHistory = %d, want 77", loaded.Bot.MaxHistory)
	}
}
