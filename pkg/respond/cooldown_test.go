package respond

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// TestCooldown_HardFloor verifies the minimum gap between responses:
// blocked 10s after a record, clear again at 31s.
func TestCooldown_HardFloor(t *testing.T) {
	tr := NewCooldownTracker()
	const minBetween = 30 * time.Second
	const window = 300 * time.Second

	tr.Record(t0, window)

	if tr.CheckHard(t0.Add(10*time.Second), minBetween, 3, window) {
		t.Error("expected hard block 10s after a response")
	}
	if !tr.CheckHard(t0.Add(31*time.Second), minBetween, 3, window) {
		t.Error("expected clearance 31s after a response")
	}
}

// TestCooldown_WindowCap verifies the sliding-window limit: three records
// in a 300s window block a fourth until the window slides past.
func TestCooldown_WindowCap(t *testing.T) {
	tr := NewCooldownTracker()
	const minBetween = 0
	const window = 300 * time.Second

	for i := 0; i < 3; i++ {
		tr.Record(t0.Add(time.Duration(i)*40*time.Second), window)
	}

	if tr.CheckHard(t0.Add(120*time.Second), minBetween, 3, window) {
		t.Error("expected window cap to block a fourth response")
	}
	// All three records fall out of the window once it slides past them.
	if !tr.CheckHard(t0.Add(381*time.Second), minBetween, 3, window) {
		t.Error("expected clearance after the window elapsed")
	}
}

// TestCooldown_SoftIgnoresWindow verifies the soft check only applies the
// floor condition, not the window cap.
func TestCooldown_SoftIgnoresWindow(t *testing.T) {
	tr := NewCooldownTracker()
	const window = 300 * time.Second

	for i := 0; i < 3; i++ {
		tr.Record(t0.Add(time.Duration(i)*40*time.Second), window)
	}

	at := t0.Add(120 * time.Second) // 40s after the last record
	if !tr.CheckSoft(at, 30*time.Second) {
		t.Error("soft check should pass once the floor elapsed, despite a full window")
	}
	if tr.CheckSoft(t0.Add(90*time.Second), 30*time.Second) {
		t.Error("soft check should fail inside the floor")
	}
}

// TestCooldown_FreshTrackerAllows verifies the zero state is unblocked
func TestCooldown_FreshTrackerAllows(t *testing.T) {
	tr := NewCooldownTracker()
	if !tr.CheckHard(t0, 30*time.Second, 3, 300*time.Second) {
		t.Error("a fresh tracker should allow a response")
	}
	if !tr.CheckSoft(t0, 30*time.Second) {
		t.Error("a fresh tracker should pass the soft check")
	}
}

// TestCooldown_RecordPrunes verifies entries older than 2× the window are
// dropped on record.
func TestCooldown_RecordPrunes(t *testing.T) {
	tr := NewCooldownTracker()
	const window = 300 * time.Second

	tr.Record(t0, window)
	tr.Record(t0.Add(700*time.Second), window) // t0 is now older than 2×window

	if got := len(tr.responseTimes); got != 1 {
		t.Fatalf("responseTimes length = %d, want 1 after prune", got)
	}
}
