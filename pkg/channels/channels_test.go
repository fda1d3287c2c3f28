package channels

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/chime-bot/chime/pkg/bus"
	"github.com/chime-bot/chime/pkg/config"
)

func TestBaseChannelAllowlist(t *testing.T) {
	open := NewBaseChannel("discord", bus.NewMessageBus(), nil)
	if !open.IsAllowed("anyone") {
		t.Fatal("empty allowlist should allow everyone")
	}

	restricted := NewBaseChannel("discord", bus.NewMessageBus(), []string{"123", "@alice"})
	if !restricted.IsAllowed("123") {
		t.Error("listed ID should be allowed")
	}
	if !restricted.IsAllowed("999|alice") {
		t.Error("compound ID with listed username should be allowed")
	}
	if restricted.IsAllowed("456") {
		t.Error("unlisted ID should be rejected")
	}
}

func TestSplitMessageShortContent(t *testing.T) {
	chunks := splitMessage("hello", 1500)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("unexpected chunks: %#v", chunks)
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	content := strings.Repeat("line one\n", 30)
	chunks := splitMessage(content, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if len(chunk) > 100 {
			t.Fatalf("chunk exceeds limit: %d chars", len(chunk))
		}
	}
}

func TestSplitMessageKeepsCodeBlockTogether(t *testing.T) {
	code := "```\n" + strings.Repeat("x := 1\n", 12) + "```"
	content := strings.Repeat("padding words here\n", 3) + code
	chunks := splitMessage(content, 80)

	for _, chunk := range chunks {
		if strings.Count(chunk, "```")%2 != 0 {
			t.Fatalf("chunk splits a code block:\n%s", chunk)
		}
	}
}

// TestSplitMessageRuneBoundaries verifies the hard-limit fallback never cuts
// a multi-byte character when the text has no newline or space to split on.
func TestSplitMessageRuneBoundaries(t *testing.T) {
	content := strings.Repeat("日本語のテキストだよ", 40)
	chunks := splitMessage(content, 100)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Fatalf("chunk %d is not valid UTF-8: %q", i, chunk)
		}
		if len(chunk) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d bytes", i, len(chunk))
		}
	}
	if strings.Join(chunks, "") != content {
		t.Fatal("chunks do not reassemble into the original text")
	}
}

// TestDiscordTypingSessionDrains verifies begin/end calls balance the pending
// count so the refresh goroutine does not outlive a failed reply.
func TestDiscordTypingSessionDrains(t *testing.T) {
	c, err := NewDiscordChannel(config.DiscordConfig{Token: "t"}, bus.NewMessageBus())
	if err != nil {
		t.Fatalf("new discord channel: %v", err)
	}

	c.BeginTyping("chan")
	c.BeginTyping("chan")
	c.EndTyping("chan")

	c.typingMu.Lock()
	sess, alive := c.typing["chan"]
	c.typingMu.Unlock()
	if !alive || sess.pending != 1 {
		t.Fatalf("expected one pending typing session, alive=%v", alive)
	}

	c.EndTyping("chan")
	c.typingMu.Lock()
	_, alive = c.typing["chan"]
	c.typingMu.Unlock()
	if alive {
		t.Fatal("typing session should be gone once every begin is balanced")
	}

	// Draining an unknown channel is a no-op.
	c.EndTyping("other")
}

func TestManagerStatus(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.Discord.Token = "t"

	m, err := NewManager(cfg, bus.NewMessageBus())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	status, ok := m.GetStatus()["discord"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing discord status: %#v", m.GetStatus())
	}
	if status["running"] != false {
		t.Errorf("discord should not be running, status = %#v", status)
	}
}

func TestMentionHelpers(t *testing.T) {
	if got := stripMention("<@42> hello", "42"); got != "hello" {
		t.Errorf("stripMention = %q", got)
	}
	if got := stripMention("<@!42> hello", "42"); got != "hello" {
		t.Errorf("stripMention nickname form = %q", got)
	}
	if got := stripMention("no mention", "42"); got != "no mention" {
		t.Errorf("stripMention without token = %q", got)
	}
}
