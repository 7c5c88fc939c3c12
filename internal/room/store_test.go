// internal/room/store_test.go
package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetOrCreate(t *testing.T) {
	s := NewStore(Settings{}, 0, nil)
	r := s.GetOrCreate("alpha")
	require.NotNil(t, r)
	assert.Equal(t, "alpha", r.ID())

	again := s.GetOrCreate("alpha")
	assert.Same(t, r, again)
	assert.Equal(t, 1, s.Len())

	_, ok := s.Get("beta")
	assert.False(t, ok)
}

func TestSweepIdleReapsOnlyStaleRooms(t *testing.T) {
	s := NewStore(Settings{}, 20*time.Millisecond, nil)

	stale := s.GetOrCreate("stale")
	require.True(t, stale.Join("p0").Applied)
	rt := &mockRoute{}
	require.True(t, stale.AttachRoute("p0", rt).Applied)

	time.Sleep(30 * time.Millisecond)

	fresh := s.GetOrCreate("fresh")
	require.True(t, fresh.Join("q0").Applied)

	removed := s.SweepIdle()
	assert.Equal(t, []string{"stale"}, removed)
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("stale")
	assert.False(t, ok)
	_, ok = s.Get("fresh")
	assert.True(t, ok)

	// the doomed room's players heard about it
	expired := rt.byType(EventRoomExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, "idle timeout", expired[0].Reason)
}

func TestSweepIdleSparesActiveRooms(t *testing.T) {
	s := NewStore(Settings{}, 50*time.Millisecond, nil)
	r := s.GetOrCreate("busy")
	require.True(t, r.Join("p0").Applied)

	time.Sleep(30 * time.Millisecond)
	require.True(t, r.Join("p1").Applied) // activity resets the idle clock
	time.Sleep(30 * time.Millisecond)

	assert.Empty(t, s.SweepIdle())
	assert.Equal(t, 1, s.Len())
}

func TestExpireCancelsCountdown(t *testing.T) {
	s := NewStore(Settings{CountdownTick: 10 * time.Millisecond}, time.Nanosecond, nil)
	r := s.GetOrCreate("counting")
	for _, p := range []string{"p0", "p1"} {
		require.True(t, r.Join(p).Applied)
		require.True(t, r.SetReady(p, true).Applied)
	}
	require.True(t, r.StartGame("p0").Applied)
	require.True(t, r.Snapshot().Locked)

	s.SweepIdle()
	assert.Equal(t, 0, s.Len())

	// the countdown goroutine sees the cleared flag and never deals
	time.Sleep(60 * time.Millisecond)
	snap := r.Snapshot()
	assert.False(t, snap.GameActive)
	assert.False(t, snap.Locked)
}
