package respond

import (
	"math/rand"
	"time"

	"github.com/chime-bot/chime/pkg/convo"
	"github.com/chime-bot/chime/pkg/logger"
)

// Engine decides whether to autonomously reply to a message. The randomness
// source is injected so tests can supply deterministic sequences.
type Engine struct {
	settings *SettingsStore
	cooldown *CooldownTracker
	rng      *rand.Rand
}

func NewEngine(settings *SettingsStore, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		settings: settings,
		cooldown: NewCooldownTracker(),
		rng:      rng,
	}
}

func (e *Engine) Settings() *SettingsStore {
	return e.settings
}

// IsDesignatedChannel reports whether channelID is the one eligible for
// autonomous responses. An unset designated channel matches nothing.
func (e *Engine) IsDesignatedChannel(channelID string) bool {
	s := e.settings.Get()
	return s.DesignatedChannelID != "" && s.DesignatedChannelID == channelID
}

// ChanceAt computes the current trigger probability without rolling.
// Callers can simulate a decision without mutating state.
func (e *Engine) ChanceAt(text string, keywords map[string]float64, recent []convo.Entry, now time.Time) float64 {
	s := e.settings.Get()
	return Chance(text, keywords, recent, ChanceParams{
		Base:           s.BaseChance,
		Max:            s.MaxChance,
		SoftCooldownOK: e.cooldown.CheckSoft(now, time.Duration(s.MinSecondsBetween)*time.Second),
	})
}

// ShouldRespond runs the full trigger decision: enablement, channel match,
// hard cooldown, then a uniform draw against the calculated chance. It has
// no side effects beyond the cooldown read; on a positive decision the
// caller is responsible for calling Record once the reply is sent.
func (e *Engine) ShouldRespond(channelID, text string, keywords map[string]float64, recent []convo.Entry, now time.Time) bool {
	s := e.settings.Get()

	if !s.Enabled {
		return false
	}
	if !e.IsDesignatedChannel(channelID) {
		return false
	}
	if !e.cooldown.CheckHard(now,
		time.Duration(s.MinSecondsBetween)*time.Second,
		s.MaxPerWindow,
		time.Duration(s.WindowSeconds)*time.Second,
	) {
		logger.DebugC("respond", "Hard cooldown active, skipping")
		return false
	}

	chance := e.ChanceAt(text, keywords, recent, now)
	roll := e.rng.Float64()

	if roll < chance {
		logger.InfoCF("respond", "Auto-response triggered", map[string]interface{}{
			"roll":   roll,
			"chance": chance,
		})
		return true
	}

	logger.DebugCF("respond", "Auto-response not triggered", map[string]interface{}{
		"roll":   roll,
		"chance": chance,
	})
	return false
}

// Record marks a sent response for cooldown tracking.
func (e *Engine) Record(now time.Time) {
	s := e.settings.Get()
	e.cooldown.Record(now, time.Duration(s.WindowSeconds)*time.Second)
}
