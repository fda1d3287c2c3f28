package responder

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chime-bot/chime/pkg/bus"
	"github.com/chime-bot/chime/pkg/config"
	"github.com/chime-bot/chime/pkg/convo"
	"github.com/chime-bot/chime/pkg/persona"
	"github.com/chime-bot/chime/pkg/respond"
)

type fakeProvider struct {
	replies     []string
	calls       int
	lastSystem  string
	lastHistory []convo.Turn
	lastUser    string
	err         error
}

func (f *fakeProvider) Generate(ctx context.Context, systemPrompt string, history []convo.Turn, userMessage string) (string, error) {
	f.lastSystem = systemPrompt
	f.lastHistory = history
	f.lastUser = userMessage
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return reply, nil
}

func (f *fakeProvider) Name() string { return "fake" }

// fixedSource makes rand.Float64 return draw exactly.
type fixedSource struct{ draw float64 }

func (s fixedSource) Int63() int64 { return int64(s.draw * (1 << 63)) }
func (s fixedSource) Seed(int64)   {}

func newTestResponder(t *testing.T, provider *fakeProvider, draw float64) *Responder {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Bot.CommandPrefix = "!"
	cfg.Bot.MaxHistory = 300
	cfg.Bot.ReplyContextLimit = 10

	settings := respond.NewSettingsStore(filepath.Join(dir, "settings.json"))
	engine := respond.NewEngine(settings, rand.New(fixedSource{draw: draw}))
	personas := persona.NewManager(filepath.Join(dir, "personalities.json"), filepath.Join(dir, "contexts"), cfg.Bot.MaxHistory)

	return New(cfg, bus.NewMessageBus(), engine, personas, provider, nil)
}

func inbound(chatID, sender, content string, mentioned bool) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:    "discord",
		SenderID:   "u1",
		SenderName: sender,
		ChatID:     chatID,
		Content:    content,
		Mentioned:  mentioned,
	}
}

func TestProcess_EmptyMessageIgnored(t *testing.T) {
	fp := &fakeProvider{replies: []string{"hi"}}
	r := newTestResponder(t, fp, 0.99)

	if reply := r.Process(context.Background(), inbound("c1", "Alice", "   ", true)); reply != "" {
		t.Fatalf("expected no reply for blank message, got %q", reply)
	}
	if fp.calls != 0 {
		t.Fatalf("provider should not be called, got %d calls", fp.calls)
	}
}

func TestProcess_MentionAlwaysReplies(t *testing.T) {
	fp := &fakeProvider{replies: []string{"hello Alice"}}
	r := newTestResponder(t, fp, 0.99) // draw that would never trigger

	reply := r.Process(context.Background(), inbound("c1", "Alice", "hi bot", true))
	if reply != "hello Alice" {
		t.Fatalf("expected mention reply, got %q", reply)
	}
	if fp.lastUser != "Alice: hi bot" {
		t.Fatalf("unexpected user message sent to provider: %q", fp.lastUser)
	}
	if len(fp.lastHistory) != 0 {
		t.Fatalf("expected empty history for first message, got %d turns", len(fp.lastHistory))
	}

	store := r.personas.ContextForChannel("c1")
	entries := store.Recent("c1", 0)
	if len(entries) != 2 {
		t.Fatalf("expected user and bot entries in context, got %d", len(entries))
	}
	if !entries[1].IsBot || entries[1].Message != "hello Alice" {
		t.Fatalf("bot reply not recorded in context: %#v", entries[1])
	}
}

func TestProcess_SilentOutsideDesignatedChannel(t *testing.T) {
	fp := &fakeProvider{replies: []string{"hi"}}
	r := newTestResponder(t, fp, 0.0) // draw that would always trigger

	reply := r.Process(context.Background(), inbound("c1", "Alice", "just chatting", false))
	if reply != "" {
		t.Fatalf("expected silence with no designated channel, got %q", reply)
	}
	if fp.calls != 0 {
		t.Fatal("provider should not be called")
	}

	// The message still lands in context for future replies.
	if got := r.personas.ContextForChannel("c1").Len("c1"); got != 1 {
		t.Fatalf("expected 1 context entry, got %d", got)
	}
}

func TestProcess_AutoTriggerAndCooldown(t *testing.T) {
	fp := &fakeProvider{replies: []string{"sure"}}
	r := newTestResponder(t, fp, 0.0)
	r.engine.Settings().SetDesignatedChannel("c1")

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	reply := r.Process(context.Background(), inbound("c1", "Alice", "anyone around?", false))
	if reply != "sure" {
		t.Fatalf("expected auto-triggered reply, got %q", reply)
	}

	// Within the 30s floor the hard cooldown vetoes the next trigger.
	r.now = func() time.Time { return base.Add(10 * time.Second) }
	reply = r.Process(context.Background(), inbound("c1", "Alice", "hello again", false))
	if reply != "" {
		t.Fatalf("expected cooldown silence, got %q", reply)
	}

	r.now = func() time.Time { return base.Add(31 * time.Second) }
	reply = r.Process(context.Background(), inbound("c1", "Alice", "still there?", false))
	if reply != "sure" {
		t.Fatalf("expected reply after cooldown floor, got %q", reply)
	}
}

// typingRecorder counts typing begin/end calls per chat.
type typingRecorder struct {
	begins int
	ends   int
}

func (tr *typingRecorder) BeginTyping(chatID string) { tr.begins++ }
func (tr *typingRecorder) EndTyping(chatID string)   { tr.ends++ }

func TestProcess_TypingBalancedOnGenerationFailure(t *testing.T) {
	fp := &fakeProvider{err: errors.New("api down")}
	r := newTestResponder(t, fp, 0.99)
	tr := &typingRecorder{}
	r.SetTypingNotifier(tr)

	if reply := r.Process(context.Background(), inbound("c1", "Alice", "hi bot", true)); reply != "" {
		t.Fatalf("expected silence on provider error, got %q", reply)
	}
	if tr.begins != 1 || tr.ends != 1 {
		t.Fatalf("typing begin/end = %d/%d, want balanced 1/1", tr.begins, tr.ends)
	}

	// A blank reply is also a failed generation and must close the session.
	fp2 := &fakeProvider{replies: []string{"   "}}
	r2 := newTestResponder(t, fp2, 0.99)
	tr2 := &typingRecorder{}
	r2.SetTypingNotifier(tr2)

	if reply := r2.Process(context.Background(), inbound("c1", "Alice", "hi bot", true)); reply != "" {
		t.Fatalf("expected silence on blank reply, got %q", reply)
	}
	if tr2.begins != 1 || tr2.ends != 1 {
		t.Fatalf("typing begin/end = %d/%d, want balanced 1/1", tr2.begins, tr2.ends)
	}
}

func TestProcess_TypingLeftOpenForDelivery(t *testing.T) {
	fp := &fakeProvider{replies: []string{"hello"}}
	r := newTestResponder(t, fp, 0.99)
	tr := &typingRecorder{}
	r.SetTypingNotifier(tr)

	if reply := r.Process(context.Background(), inbound("c1", "Alice", "hi bot", true)); reply != "hello" {
		t.Fatalf("expected reply, got %q", reply)
	}
	// The channel adapter ends typing when it sends the reply.
	if tr.begins != 1 || tr.ends != 0 {
		t.Fatalf("typing begin/end = %d/%d, want 1/0", tr.begins, tr.ends)
	}
}

func TestProcess_ProviderErrorStaysSilent(t *testing.T) {
	fp := &fakeProvider{err: errors.New("api down")}
	r := newTestResponder(t, fp, 0.99)

	reply := r.Process(context.Background(), inbound("c1", "Alice", "hi bot", true))
	if reply != "" {
		t.Fatalf("expected silence on provider error, got %q", reply)
	}

	// The failed generation leaves only the user entry in context.
	entries := r.personas.ContextForChannel("c1").Recent("c1", 0)
	if len(entries) != 1 || entries[0].IsBot {
		t.Fatalf("unexpected context after failure: %#v", entries)
	}
}

func TestProcess_RetryRegeneratesLastReply(t *testing.T) {
	fp := &fakeProvider{replies: []string{"first", "second"}}
	r := newTestResponder(t, fp, 0.99)

	if reply := r.Process(context.Background(), inbound("c1", "Alice", "hi bot", true)); reply != "first" {
		t.Fatalf("expected first reply, got %q", reply)
	}

	reply := r.Process(context.Background(), inbound("c1", "Alice", "!retry", false))
	if reply != "second" {
		t.Fatalf("expected regenerated reply, got %q", reply)
	}

	entries := r.personas.ContextForChannel("c1").Recent("c1", 0)
	if len(entries) != 2 {
		t.Fatalf("expected user entry plus regenerated reply, got %d entries", len(entries))
	}
	if entries[1].Message != "second" {
		t.Fatalf("old reply not replaced in context: %#v", entries[1])
	}
}

func TestProcess_RetryWithNothingToRetry(t *testing.T) {
	fp := &fakeProvider{replies: []string{"hi"}}
	r := newTestResponder(t, fp, 0.99)

	reply := r.Process(context.Background(), inbound("c1", "Alice", "!retry", false))
	if !strings.Contains(reply, "Nothing to retry") {
		t.Fatalf("expected nothing-to-retry notice, got %q", reply)
	}
	if fp.calls != 0 {
		t.Fatal("provider should not be called")
	}
}

func TestProcess_PersonaCommands(t *testing.T) {
	fp := &fakeProvider{replies: []string{"arr"}}
	r := newTestResponder(t, fp, 0.99)
	ctx := context.Background()

	reply := r.Process(ctx, inbound("c1", "Alice", "!persona list", false))
	if !strings.Contains(reply, "Assistant") {
		t.Fatalf("expected default personality in list, got %q", reply)
	}

	reply = r.Process(ctx, inbound("c1", "Alice", "!persona create Pirate | Talk like a pirate.", false))
	if !strings.Contains(reply, "Created personality Pirate") {
		t.Fatalf("unexpected create reply: %q", reply)
	}

	reply = r.Process(ctx, inbound("c1", "Alice", "!persona set Pirate", false))
	if !strings.Contains(reply, "Now speaking as Pirate") {
		t.Fatalf("unexpected set reply: %q", reply)
	}
	if r.personas.Active("c1").Name != "Pirate" {
		t.Fatal("active personality not switched")
	}

	reply = r.Process(ctx, inbound("c1", "Alice", "!persona info Pirate", false))
	if !strings.Contains(reply, "Talk like a pirate.") {
		t.Fatalf("expected prompt in info output, got %q", reply)
	}

	reply = r.Process(ctx, inbound("c1", "Alice", "!persona set Ghost", false))
	if !strings.Contains(reply, "not found") {
		t.Fatalf("expected not-found reply, got %q", reply)
	}

	// The replying personality drives the system prompt.
	if reply := r.Process(ctx, inbound("c1", "Alice", "ahoy", true)); reply != "arr" {
		t.Fatalf("expected reply, got %q", reply)
	}
	if fp.lastSystem != "Talk like a pirate." {
		t.Fatalf("expected pirate prompt, got %q", fp.lastSystem)
	}
}

func TestProcess_AutoCommands(t *testing.T) {
	fp := &fakeProvider{replies: []string{"hi"}}
	r := newTestResponder(t, fp, 0.99)
	ctx := context.Background()

	reply := r.Process(ctx, inbound("c1", "Alice", "!auto off", false))
	if !strings.Contains(reply, "disabled") {
		t.Fatalf("unexpected off reply: %q", reply)
	}
	if r.engine.Settings().Get().Enabled {
		t.Fatal("auto-responses still enabled")
	}

	reply = r.Process(ctx, inbound("c1", "Alice", "!auto here", false))
	if !strings.Contains(reply, "auto-responses") {
		t.Fatalf("unexpected here reply: %q", reply)
	}
	if got := r.engine.Settings().Get().DesignatedChannelID; got != "c1" {
		t.Fatalf("designated channel not set, got %q", got)
	}

	reply = r.Process(ctx, inbound("c1", "Alice", "!auto on", false))
	if !strings.Contains(reply, "enabled") {
		t.Fatalf("unexpected on reply: %q", reply)
	}

	reply = r.Process(ctx, inbound("c1", "Alice", "!auto status", false))
	if !strings.Contains(reply, "enabled") || !strings.Contains(reply, "c1") {
		t.Fatalf("unexpected status reply: %q", reply)
	}
}

func TestProcess_ContextCommands(t *testing.T) {
	fp := &fakeProvider{replies: []string{"hello"}}
	r := newTestResponder(t, fp, 0.99)
	ctx := context.Background()

	if reply := r.Process(ctx, inbound("c1", "Alice", "hi bot", true)); reply == "" {
		t.Fatal("expected a reply")
	}

	reply := r.Process(ctx, inbound("c1", "Alice", "!context show", false))
	if !strings.Contains(reply, "Alice: hi bot") {
		t.Fatalf("expected history in show output, got %q", reply)
	}

	reply = r.Process(ctx, inbound("c1", "Alice", "!context clear", false))
	if !strings.Contains(reply, "cleared") {
		t.Fatalf("unexpected clear reply: %q", reply)
	}
	if got := r.personas.ContextForChannel("c1").Len("c1"); got != 0 {
		t.Fatalf("context not cleared, %d entries left", got)
	}
}

func TestProcess_HelpAndStats(t *testing.T) {
	fp := &fakeProvider{replies: []string{"hi"}}
	r := newTestResponder(t, fp, 0.99)
	ctx := context.Background()

	reply := r.Process(ctx, inbound("c1", "Alice", "!help", false))
	if !strings.Contains(reply, "Commands:") {
		t.Fatalf("unexpected help reply: %q", reply)
	}

	reply = r.Process(ctx, inbound("c1", "Alice", "!stats", false))
	if !strings.Contains(reply, "disabled") {
		t.Fatalf("expected archiving-disabled notice, got %q", reply)
	}

	// Unrecognized prefix text is not treated as a command.
	if reply := r.Process(ctx, inbound("c1", "Alice", "!!!", false)); reply != "" {
		t.Fatalf("expected silence for non-command, got %q", reply)
	}
}

func TestProcessDirect_AlwaysReplies(t *testing.T) {
	fp := &fakeProvider{replies: []string{"direct answer"}}
	r := newTestResponder(t, fp, 0.99)

	reply, err := r.ProcessDirect(context.Background(), inbound("console", "You", "hello there", false))
	if err != nil {
		t.Fatalf("process direct: %v", err)
	}
	if reply != "direct answer" {
		t.Fatalf("expected direct reply, got %q", reply)
	}
}
