package activity

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_IdleForFollowsClock(t *testing.T) {
	mock := clock.NewMock()
	tr := NewTracker(mock)

	assert.Equal(t, time.Duration(0), tr.IdleFor())
	mock.Add(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, tr.IdleFor())

	tr.RecordChange()
	assert.Equal(t, time.Duration(0), tr.IdleFor())
	assert.Equal(t, mock.Now(), tr.LastChange())
}

func TestTracker_ChangeDuringExportSetsPending(t *testing.T) {
	mock := clock.NewMock()
	tr := NewTracker(mock)
	before := tr.LastChange()

	tr.BeginExport()
	mock.Add(time.Second)
	tr.RecordChange()
	tr.EndExport()

	assert.Equal(t, before, tr.LastChange(), "timestamp must not move during export")
	assert.True(t, tr.TakePending())
	assert.False(t, tr.TakePending(), "TakePending clears the flag")
}

func TestTracker_NoPendingWithoutExport(t *testing.T) {
	tr := NewTracker(clock.NewMock())
	tr.RecordChange()
	assert.False(t, tr.TakePending())
}

func TestTracker_TouchIgnoresExportState(t *testing.T) {
	mock := clock.NewMock()
	tr := NewTracker(mock)
	tr.BeginExport()
	mock.Add(3 * time.Second)
	tr.Touch()
	assert.Equal(t, mock.Now(), tr.LastChange())
	assert.False(t, tr.TakePending())
}

func TestTracker_ResetClearsFlagsAndGate(t *testing.T) {
	tr := NewTracker(clock.NewMock())
	require.True(t, tr.Gate().TryAcquire())
	tr.BeginExport()
	tr.RecordChange()

	tr.Reset()

	assert.False(t, tr.Exporting())
	assert.False(t, tr.TakePending())
	assert.False(t, tr.Gate().Held())
}

func TestGate_TryAcquireIsExclusive(t *testing.T) {
	var g Gate
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.True(t, g.Held())
	g.Release()
	g.Release()
	assert.False(t, g.Held())
	assert.True(t, g.TryAcquire())
}
