package respond

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chime-bot/chime/pkg/convo"
	"github.com/chime-bot/chime/pkg/logger"
)

// techTerms flags an ongoing technical conversation: two hits across the
// last few context entries double the chance.
var techTerms = []string{"code", "program", "software", "bug", "error", "help"}

const contextScanDepth = 5

// ChanceParams are the settings-derived inputs to the calculator.
// SoftCooldownOK is whether CheckSoft passed at decision time.
type ChanceParams struct {
	Base           float64
	Max            float64
	SoftCooldownOK bool
}

// Chance computes the trigger probability for a message. Pure and
// deterministic: independent signals compose multiplicatively from the base
// chance and the result is clamped to [0, Max].
func Chance(text string, keywords map[string]float64, recent []convo.Entry, p ChanceParams) float64 {
	chance := p.Base
	lower := strings.ToLower(text)

	for keyword, multiplier := range keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			chance *= multiplier
			logger.DebugCF("respond", "Keyword matched", map[string]interface{}{
				"keyword":    keyword,
				"multiplier": multiplier,
			})
		}
	}

	if strings.Contains(text, "?") {
		chance *= 2.0
	}
	if strings.Contains(text, "!") {
		chance *= 1.5
	}

	if ratio := upperRatio(text); ratio > 0.3 {
		chance *= 2.0
		logger.DebugCF("respond", "High caps ratio", map[string]interface{}{"ratio": ratio})
	}

	// Very short or very long messages are less conversationally inviting
	// than medium ones.
	switch length := utf8.RuneCountInString(text); {
	case length < 5:
		chance *= 0.3
	case length > 200:
		chance *= 0.5
	case length >= 10 && length <= 100:
		chance *= 1.5
	}

	if mentions := techMentions(recent); mentions >= 2 {
		chance *= 2.0
		logger.DebugCF("respond", "Technical conversation detected", map[string]interface{}{"mentions": mentions})
	}

	if !p.SoftCooldownOK {
		chance *= 0.1
	}

	if chance > p.Max {
		chance = p.Max
	}
	if chance < 0 {
		chance = 0
	}
	return chance
}

// upperRatio is the share of uppercase letters over the total rune count.
func upperRatio(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	upper := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(total)
}

// techMentions counts (entry, term) pairs with a substring hit over the
// last contextScanDepth entries.
func techMentions(recent []convo.Entry) int {
	start := len(recent) - contextScanDepth
	if start < 0 {
		start = 0
	}

	mentions := 0
	for _, e := range recent[start:] {
		lower := strings.ToLower(e.Message)
		for _, term := range techTerms {
			if strings.Contains(lower, term) {
				mentions++
			}
		}
	}
	return mentions
}
