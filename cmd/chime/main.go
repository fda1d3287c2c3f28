package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/chzyer/readline"

	"github.com/chime-bot/chime/pkg/archive"
	"github.com/chime-bot/chime/pkg/bus"
	"github.com/chime-bot/chime/pkg/channels"
	"github.com/chime-bot/chime/pkg/config"
	"github.com/chime-bot/chime/pkg/logger"
	"github.com/chime-bot/chime/pkg/maintenance"
	"github.com/chime-bot/chime/pkg/persona"
	"github.com/chime-bot/chime/pkg/providers"
	"github.com/chime-bot/chime/pkg/respond"
	"github.com/chime-bot/chime/pkg/responder"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "chime"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chime", "config.json")
}

// buildCore assembles everything below the channel layer: provider, bus,
// engine, personalities, archive, and the responder.
func buildCore(cfg *config.Config) (*responder.Responder, *bus.MessageBus, *archive.Store, error) {
	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create provider: %w", err)
	}

	settings := respond.NewSettingsStore(cfg.SettingsPath())
	engine := respond.NewEngine(settings, nil)
	personas := persona.NewManager(cfg.PersonalitiesPath(), cfg.ContextsDir(), cfg.Bot.MaxHistory)

	var arch *archive.Store
	if cfg.Archive.Enabled {
		arch, err = archive.NewStore(cfg.ArchivePath())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open archive: %w", err)
		}
	}

	msgBus := bus.NewMessageBus()
	resp := responder.New(cfg, msgBus, engine, personas, provider, arch)
	return resp, msgBus, arch, nil
}

func runBot(debug bool) error {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if debug || cfg.Bot.Debug {
		logger.SetLevel(logger.DEBUG)
	}

	resp, msgBus, arch, err := buildCore(cfg)
	if err != nil {
		return err
	}
	if arch != nil {
		defer arch.Close()
	}

	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}

	if ch, ok := channelManager.GetChannel("discord"); ok {
		if dc, ok := ch.(*channels.DiscordChannel); ok {
			resp.SetTypingNotifier(dc)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := maintenance.NewScheduler()
	if arch != nil {
		if err := scheduler.Add(maintenance.ArchivePruneJob(arch, cfg.Archive.RetentionDays, cfg.Maintenance.ArchivePruneSchedule)); err != nil {
			return fmt.Errorf("schedule archive prune: %w", err)
		}
		if err := scheduler.Add(maintenance.ArchiveStatsJob(arch, "0 0 * * *")); err != nil {
			return fmt.Errorf("schedule archive stats: %w", err)
		}
	}
	if err := scheduler.Add(maintenance.ContextCompactJob(resp.Personas(), cfg.Maintenance.ContextCompactSchedule)); err != nil {
		return fmt.Errorf("schedule context compact: %w", err)
	}

	if err := channelManager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	logger.InfoCF("main", "Channel status", channelManager.GetStatus())

	go scheduler.Start(ctx)
	go resp.Run(ctx)

	fmt.Printf("✓ %s started. Press Ctrl+C to stop.\n", appName)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	resp.Stop()
	if err := channelManager.StopAll(context.Background()); err != nil {
		logger.WarnCF("main", "Channel shutdown error", map[string]interface{}{"error": err.Error()})
	}
	fmt.Printf("✓ %s stopped\n", appName)
	return nil
}

func runChat(debug bool) error {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if debug || cfg.Bot.Debug {
		logger.SetLevel(logger.DEBUG)
	}

	resp, _, arch, err := buildCore(cfg)
	if err != nil {
		return err
	}
	if arch != nil {
		defer arch.Close()
	}

	fmt.Printf("%s Interactive mode (Ctrl+C to exit)\n\n", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You: ",
		HistoryFile:     filepath.Join(os.TempDir(), ".chime_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	ctx := context.Background()
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		reply, err := resp.ProcessDirect(ctx, bus.InboundMessage{
			Channel:    "console",
			SenderID:   "local-user",
			SenderName: "You",
			ChatID:     "console",
			Content:    input,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		if reply != "" {
			fmt.Printf("\n%s: %s\n\n", resp.Personas().Active("console").Name, reply)
		}
	}
}

func printStatus() error {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n", formatVersion())
	fmt.Println()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "✓")
	} else {
		fmt.Println("Config:", configPath, "✗ (defaults + env)")
	}

	dataDir := cfg.DataDir()
	if _, err := os.Stat(dataDir); err == nil {
		fmt.Println("Data dir:", dataDir, "✓")
	} else {
		fmt.Println("Data dir:", dataDir, "not initialized")
	}
	if _, err := os.Stat(cfg.ArchivePath()); err == nil {
		fmt.Println("Archive DB:", cfg.ArchivePath(), "✓")
	} else {
		fmt.Println("Archive DB:", cfg.ArchivePath(), "not initialized")
	}

	status := func(ready bool) string {
		if ready {
			return "✓"
		}
		return "not set"
	}
	apiReady := strings.TrimSpace(cfg.Provider.APIKey) != ""
	discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""

	fmt.Printf("Model: %s\n", cfg.Provider.Model)
	fmt.Println("Provider API key:", status(apiReady))
	fmt.Println("Discord token:", status(discordReady))
	fmt.Println("Chat ready:", status(apiReady))
	fmt.Println("Bot ready:", status(apiReady && discordReady))
	return nil
}
