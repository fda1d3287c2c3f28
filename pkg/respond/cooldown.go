package respond

import (
	"sync"
	"time"
)

// CooldownTracker records when triggered responses were sent and answers
// whether a new one is rate-limited. State is process-local and resets on
// restart; it only throttles burstiness within a session.
type CooldownTracker struct {
	mu            sync.Mutex
	lastResponse  time.Time
	responseTimes []time.Time
}

func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		responseTimes: make([]time.Time, 0, 16),
	}
}

// CheckHard reports whether a response is allowed at now: the minimum gap
// since the last response must have elapsed AND the sliding-window cap must
// not be reached.
func (t *CooldownTracker) CheckHard(now time.Time, minBetween time.Duration, maxPerWindow int, window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastResponse.IsZero() && now.Sub(t.lastResponse) < minBetween {
		return false
	}

	windowStart := now.Add(-window)
	recent := 0
	for _, ts := range t.responseTimes {
		if ts.After(windowStart) {
			recent++
		}
	}
	return recent < maxPerWindow
}

// CheckSoft applies only the minimum-gap condition. The calculator uses it
// to dampen the chance while the decision still holds the hard veto.
func (t *CooldownTracker) CheckSoft(now time.Time, minBetween time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastResponse.IsZero() && now.Sub(t.lastResponse) < minBetween {
		return false
	}
	return true
}

// Record marks a triggered response at now and prunes entries older than
// twice the window.
func (t *CooldownTracker) Record(now time.Time, window time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastResponse = now
	t.responseTimes = append(t.responseTimes, now)

	cutoff := now.Add(-2 * window)
	kept := t.responseTimes[:0]
	for _, ts := range t.responseTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.responseTimes = kept
}
