package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Bot         BotConfig         `json:"bot"`
	Channels    ChannelsConfig    `json:"channels"`
	Provider    ProviderConfig    `json:"provider"`
	Archive     ArchiveConfig     `json:"archive"`
	Maintenance MaintenanceConfig `json:"maintenance"`
	mu          sync.RWMutex
}

type BotConfig struct {
	DataDir           string `json:"data_dir" env:"CHIME_BOT_DATA_DIR"`
	CommandPrefix     string `json:"command_prefix" env:"CHIME_BOT_COMMAND_PREFIX"`
	MaxHistory        int    `json:"max_history" env:"CHIME_BOT_MAX_HISTORY"`
	ReplyContextLimit int    `json:"reply_context_limit" env:"CHIME_BOT_REPLY_CONTEXT_LIMIT"`
	Debug             bool   `json:"debug" env:"CHIME_BOT_DEBUG"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"CHIME_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"CHIME_CHANNELS_DISCORD_ALLOW_FROM"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"CHIME_PROVIDER_API_KEY"`
	APIBase string `json:"api_base" env:"CHIME_PROVIDER_API_BASE"`
	Model   string `json:"model" env:"CHIME_PROVIDER_MODEL"`
	Proxy   string `json:"proxy,omitempty" env:"CHIME_PROVIDER_PROXY"`
}

type ArchiveConfig struct {
	Enabled       bool `json:"enabled" env:"CHIME_ARCHIVE_ENABLED"`
	RetentionDays int  `json:"retention_days" env:"CHIME_ARCHIVE_RETENTION_DAYS"`
}

type MaintenanceConfig struct {
	ArchivePruneSchedule   string `json:"archive_prune_schedule" env:"CHIME_MAINTENANCE_ARCHIVE_PRUNE_SCHEDULE"`
	ContextCompactSchedule string `json:"context_compact_schedule" env:"CHIME_MAINTENANCE_CONTEXT_COMPACT_SCHEDULE"`
}

func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			DataDir:           "~/.chime",
			CommandPrefix:     "!",
			MaxHistory:        300,
			ReplyContextLimit: 10,
			Debug:             false,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Provider: ProviderConfig{
			APIKey:  "",
			APIBase: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Archive: ArchiveConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
		Maintenance: MaintenanceConfig{
			ArchivePruneSchedule:   "0 4 * * *",
			ContextCompactSchedule: "*/30 * * * *",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	// A .env next to the process is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if envErr := env.Parse(cfg); envErr != nil {
				return nil, envErr
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) DataDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Bot.DataDir)
}

func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir(), "auto_response_settings.json")
}

func (c *Config) PersonalitiesPath() string {
	return filepath.Join(c.DataDir(), "personalities.json")
}

func (c *Config) ContextsDir() string {
	return filepath.Join(c.DataDir(), "contexts")
}

func (c *Config) ArchivePath() string {
	return filepath.Join(c.DataDir(), "archive.db")
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
