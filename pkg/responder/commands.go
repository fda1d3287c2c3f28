package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chime-bot/chime/pkg/bus"
)

// handleCommand processes prefix commands. A recognized command is answered
// directly and never enters the trigger decision or the context store.
func (r *Responder) handleCommand(ctx context.Context, msg bus.InboundMessage, content string) (string, bool) {
	prefix := r.cfg.Bot.CommandPrefix
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", false
	}

	parts := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(parts) == 0 {
		return "", false
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "persona":
		return r.personaCommand(msg.ChatID, content, args), true
	case "auto":
		return r.autoCommand(msg.ChatID, args), true
	case "context":
		return r.contextCommand(msg.ChatID, args), true
	case "retry":
		return r.retry(ctx, msg.ChatID), true
	case "stats":
		return r.statsCommand(ctx), true
	case "help":
		return r.helpText(), true
	}

	return "", false
}

func (r *Responder) personaCommand(chatID, raw string, args []string) string {
	if len(args) == 0 {
		return "Usage: persona list|info [name]|set <name>|create <name> | <prompt>"
	}

	switch strings.ToLower(args[0]) {
	case "list":
		list := r.personas.List()
		lines := make([]string, 0, len(list))
		for i, p := range list {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, p.Name))
		}
		return "Personalities:\n" + strings.Join(lines, "\n")

	case "info":
		if len(args) < 2 {
			return "Usage: persona info <name>"
		}
		name := strings.Join(args[1:], " ")
		_, p, ok := r.personas.ByName(name)
		if !ok {
			return fmt.Sprintf("Personality %q not found.", name)
		}
		keywords := make([]string, 0, len(p.Keywords))
		for k, w := range p.Keywords {
			keywords = append(keywords, fmt.Sprintf("%s (%.1f)", k, w))
		}
		return fmt.Sprintf("%s\nPrompt: %s\nContext file: %s\nKeywords: %s",
			p.Name, p.SystemPrompt, p.ContextFile, strings.Join(keywords, ", "))

	case "set":
		if len(args) < 2 {
			return "Usage: persona set <name>"
		}
		name := strings.Join(args[1:], " ")
		idx, p, ok := r.personas.ByName(name)
		if !ok {
			return fmt.Sprintf("Personality %q not found.", name)
		}
		if err := r.personas.SetActive(chatID, idx); err != nil {
			return fmt.Sprintf("Could not switch personality: %v", err)
		}
		return fmt.Sprintf("Now speaking as %s.", p.Name)

	case "create":
		// Syntax: persona create <name> | <system prompt>
		rest := raw[strings.Index(raw, "create")+len("create"):]
		name, prompt, found := strings.Cut(rest, "|")
		name = strings.TrimSpace(name)
		prompt = strings.TrimSpace(prompt)
		if !found || name == "" || prompt == "" {
			return "Usage: persona create <name> | <system prompt>"
		}
		p, err := r.personas.Add(name, prompt, nil)
		if err != nil {
			return fmt.Sprintf("Could not create personality: %v", err)
		}
		return fmt.Sprintf("Created personality %s.", p.Name)
	}

	return "Usage: persona list|info [name]|set <name>|create <name> | <prompt>"
}

func (r *Responder) autoCommand(chatID string, args []string) string {
	store := r.engine.Settings()

	if len(args) == 0 {
		args = []string{"status"}
	}

	switch strings.ToLower(args[0]) {
	case "on":
		store.SetEnabled(true)
		return "Auto-responses enabled."
	case "off":
		store.SetEnabled(false)
		return "Auto-responses disabled."
	case "here":
		store.SetDesignatedChannel(chatID)
		return "This channel now receives auto-responses."
	case "status":
		s := store.Get()
		state := "disabled"
		if s.Enabled {
			state = "enabled"
		}
		channel := s.DesignatedChannelID
		if channel == "" {
			channel = "(none)"
		}
		return fmt.Sprintf(
			"Auto-responses: %s\nChannel: %s\nChance: base %.2f, max %.2f\nCooldown: %ds between, %d per %ds",
			state, channel, s.BaseChance, s.MaxChance,
			s.MinSecondsBetween, s.MaxPerWindow, s.WindowSeconds)
	}

	return "Usage: auto on|off|here|status"
}

func (r *Responder) contextCommand(chatID string, args []string) string {
	if len(args) == 0 {
		return "Usage: context show|clear"
	}

	store := r.personas.ContextForChannel(chatID)

	switch strings.ToLower(args[0]) {
	case "show":
		history := store.History(chatID, r.cfg.Bot.ReplyContextLimit)
		if history == "" {
			return "No context recorded for this channel."
		}
		return "Recent context:\n" + history
	case "clear":
		store.ClearChannel(chatID)
		return "Context cleared for this channel."
	}

	return "Usage: context show|clear"
}

func (r *Responder) statsCommand(ctx context.Context) string {
	if r.archive == nil {
		return "Archiving is disabled."
	}

	stats, err := r.archive.Stats(ctx)
	if err != nil {
		return fmt.Sprintf("Could not read archive stats: %v", err)
	}
	if len(stats) == 0 {
		return "No archived messages yet."
	}

	lines := make([]string, 0, len(stats)+1)
	lines = append(lines, "Archived messages per channel:")
	for _, st := range stats {
		lines = append(lines, fmt.Sprintf("%s: %d total, %d from the bot, since %s",
			st.ChannelID, st.MessageCount, st.BotCount,
			time.UnixMilli(st.OldestMS).Format("2006-01-02")))
	}
	return strings.Join(lines, "\n")
}

func (r *Responder) helpText() string {
	p := r.cfg.Bot.CommandPrefix
	return strings.Join([]string{
		"Commands:",
		p + "persona list|info <name>|set <name>|create <name> | <prompt>",
		p + "auto on|off|here|status",
		p + "context show|clear",
		p + "retry - regenerate the last reply",
		p + "stats - archived message counts",
		p + "help - this text",
	}, "\n")
}
