// Package activity tracks when the host scene last changed and whether an
// export is in flight.
package activity

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Tracker records content-change signals. Changes arriving while an export
// is running do not move the timestamp; they mark the export as stale so the
// stream loop can send the next frame without pacing.
type Tracker struct {
	clk  clock.Clock
	gate Gate

	mu         sync.Mutex
	lastChange time.Time
	exporting  bool
	pending    bool
}

// NewTracker creates a tracker whose last change is "now". A nil clock uses
// the wall clock.
func NewTracker(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{clk: clk, lastChange: clk.Now()}
}

// Gate returns the export gate owned by this tracker.
func (t *Tracker) Gate() *Gate {
	return &t.gate
}

// RecordChange is the host's "content changed" hook.
func (t *Tracker) RecordChange() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exporting {
		t.pending = true
		return
	}
	t.lastChange = t.clk.Now()
}

// Touch moves the last change timestamp to now regardless of export state.
func (t *Tracker) Touch() {
	t.mu.Lock()
	t.lastChange = t.clk.Now()
	t.mu.Unlock()
}

// LastChange returns the timestamp of the last recorded change.
func (t *Tracker) LastChange() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastChange
}

// IdleFor returns how long the scene has been unchanged.
func (t *Tracker) IdleFor() time.Duration {
	t.mu.Lock()
	last := t.lastChange
	t.mu.Unlock()
	return t.clk.Since(last)
}

// BeginExport marks an export as in flight.
func (t *Tracker) BeginExport() {
	t.mu.Lock()
	t.exporting = true
	t.mu.Unlock()
}

// EndExport clears the in-flight flag. The pending flag survives until
// TakePending.
func (t *Tracker) EndExport() {
	t.mu.Lock()
	t.exporting = false
	t.mu.Unlock()
}

// Exporting reports whether an export is in flight.
func (t *Tracker) Exporting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exporting
}

// TakePending reports whether a change arrived during an export and clears it.
func (t *Tracker) TakePending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.pending
	t.pending = false
	return p
}

// Reset clears both flags and releases the gate. Called on disconnect.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.exporting = false
	t.pending = false
	t.mu.Unlock()
	t.gate.Release()
}
