package responder

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/chime-bot/chime/pkg/archive"
	"github.com/chime-bot/chime/pkg/bus"
	"github.com/chime-bot/chime/pkg/config"
	"github.com/chime-bot/chime/pkg/logger"
	"github.com/chime-bot/chime/pkg/persona"
	"github.com/chime-bot/chime/pkg/providers"
	"github.com/chime-bot/chime/pkg/respond"
)

// recentScanDepth bounds the raw entries handed to the trigger decision.
const recentScanDepth = 10

// TypingNotifier lets the responder surface a typing indicator while a
// reply is being generated. Channels without one pass nil.
type TypingNotifier interface {
	BeginTyping(chatID string)
	EndTyping(chatID string)
}

// Responder consumes inbound messages and decides, per message, between
// handling a command, replying, or staying silent. One goroutine processes
// the bus so decisions for a channel are strictly ordered.
type Responder struct {
	cfg      *config.Config
	bus      *bus.MessageBus
	engine   *respond.Engine
	personas *persona.Manager
	provider providers.LLMProvider
	archive  *archive.Store // nil when archiving is disabled
	typing   TypingNotifier
	running  atomic.Bool
	now      func() time.Time
}

func New(cfg *config.Config, msgBus *bus.MessageBus, engine *respond.Engine, personas *persona.Manager, provider providers.LLMProvider, arch *archive.Store) *Responder {
	return &Responder{
		cfg:      cfg,
		bus:      msgBus,
		engine:   engine,
		personas: personas,
		provider: provider,
		archive:  arch,
		now:      time.Now,
	}
}

// SetTypingNotifier wires the typing indicator. Must be called before Run.
func (r *Responder) SetTypingNotifier(t TypingNotifier) {
	r.typing = t
}

// Personas exposes the personality manager for wiring outside the bus loop.
func (r *Responder) Personas() *persona.Manager {
	return r.personas
}

// Run consumes the bus until ctx is cancelled or Stop is called.
func (r *Responder) Run(ctx context.Context) error {
	r.running.Store(true)
	logger.InfoC("responder", "Responder started")

	for r.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
			msg, ok := r.bus.ConsumeInbound(ctx)
			if !ok {
				continue
			}

			reply := r.Process(ctx, msg)
			if reply != "" {
				r.bus.PublishOutbound(bus.OutboundMessage{
					Channel: msg.Channel,
					ChatID:  msg.ChatID,
					Content: reply,
				})
			}
		}
	}

	return nil
}

func (r *Responder) Stop() {
	r.running.Store(false)
}

// Process handles one inbound message and returns the reply text, or ""
// when the bot stays silent.
func (r *Responder) Process(ctx context.Context, msg bus.InboundMessage) string {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return ""
	}

	r.archiveMessage(ctx, msg.ChatID, msg.SenderName, content, false)

	if reply, handled := r.handleCommand(ctx, msg, content); handled {
		r.archiveMessage(ctx, msg.ChatID, "", reply, true)
		return reply
	}

	store := r.personas.ContextForChannel(msg.ChatID)
	store.Append(msg.ChatID, msg.SenderName, content, false, "")

	now := r.now()
	if !msg.Mentioned {
		active := r.personas.Active(msg.ChatID)
		recent := store.Recent(msg.ChatID, recentScanDepth)
		if !r.engine.ShouldRespond(msg.ChatID, content, active.Keywords, recent, now) {
			return ""
		}
	}

	reply, err := r.generate(ctx, msg.ChatID)
	if err != nil {
		logger.ErrorCF("responder", "Reply generation failed", map[string]interface{}{
			"chat_id": msg.ChatID,
			"error":   err.Error(),
		})
		return ""
	}

	r.engine.Record(now)
	r.archiveMessage(ctx, msg.ChatID, r.personas.Active(msg.ChatID).Name, reply, true)
	return reply
}

// ProcessDirect answers a message unconditionally, bypassing the trigger
// decision. Used by the interactive console session. Prefix commands still
// work so the console can manage personalities and settings.
func (r *Responder) ProcessDirect(ctx context.Context, msg bus.InboundMessage) (string, error) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return "", nil
	}

	if reply, handled := r.handleCommand(ctx, msg, content); handled {
		return reply, nil
	}

	store := r.personas.ContextForChannel(msg.ChatID)
	store.Append(msg.ChatID, msg.SenderName, content, false, "")

	return r.generate(ctx, msg.ChatID)
}

// generate produces a reply from the channel's current context and appends
// it to the context store.
func (r *Responder) generate(ctx context.Context, chatID string) (reply string, err error) {
	genID := uuid.NewString()
	p := r.personas.Active(chatID)
	store := r.personas.ContextFor(p)

	if r.typing != nil {
		r.typing.BeginTyping(chatID)
		// The channel adapter ends typing when the reply is sent. A failed
		// generation sends nothing, so the session must be closed here or
		// the indicator stays on forever.
		defer func() {
			if err != nil {
				r.typing.EndTyping(chatID)
			}
		}()
	}

	turns := store.Turns(chatID, r.cfg.Bot.ReplyContextLimit)
	if len(turns) == 0 {
		return "", fmt.Errorf("no context to reply to")
	}
	history := turns[:len(turns)-1]
	userMessage := turns[len(turns)-1].Content

	start := time.Now()
	reply, err = r.provider.Generate(ctx, p.SystemPrompt, history, userMessage)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("provider returned empty reply")
	}

	logger.InfoCF("responder", "Generated reply", map[string]interface{}{
		"generation_id": genID,
		"chat_id":       chatID,
		"personality":   p.Name,
		"duration":      time.Since(start).String(),
	})

	store.Append(chatID, p.Name, reply, true, p.Name)
	return reply, nil
}

// retry removes the channel's most recent bot reply from context and
// regenerates from what remains.
func (r *Responder) retry(ctx context.Context, chatID string) string {
	store := r.personas.ContextForChannel(chatID)

	removed := false
	entries := store.Recent(chatID, 0)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].IsBot {
			removed = store.RemoveLastBotMessage(chatID, entries[i].Message)
			break
		}
	}
	if !removed {
		return "Nothing to retry yet."
	}

	reply, err := r.generate(ctx, chatID)
	if err != nil {
		logger.ErrorCF("responder", "Retry generation failed", map[string]interface{}{
			"chat_id": chatID,
			"error":   err.Error(),
		})
		return "Retry failed, try again later."
	}

	r.engine.Record(r.now())
	return reply
}

func (r *Responder) archiveMessage(ctx context.Context, chatID, sender, content string, isBot bool) {
	if r.archive == nil || content == "" {
		return
	}
	if err := r.archive.Append(ctx, archive.Record{
		ChannelID: chatID,
		Sender:    sender,
		Content:   content,
		IsBot:     isBot,
	}); err != nil {
		logger.WarnCF("responder", "Archive write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
