package room

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/treasurerace/board"
	"github.com/wfunc/treasurerace/timer"
)

func newTestRoom(t *testing.T, duration, tick time.Duration) *Room {
	t.Helper()
	tm := timer.NewTimerManager(2 * time.Millisecond)
	t.Cleanup(tm.Stop)
	return NewRoom(board.Pos{Row: 1, Col: 1}, 4, 4, duration, tick, tm)
}

func TestRoomManager_GetRoom(t *testing.T) {
	tm := timer.NewTimerManager(10 * time.Millisecond)
	defer tm.Stop()

	positions := []board.Pos{{Row: 0, Col: 1}, {Row: 2, Col: 3}}
	manager := NewRoomManager(positions, 4, 4, time.Second, 0, tm)

	assert.Equal(t, 2, manager.Len())
	room, exists := manager.GetRoom(board.Pos{Row: 2, Col: 3})
	require.True(t, exists)
	assert.Equal(t, 16, room.Slots())

	_, exists = manager.GetRoom(board.Pos{Row: 5, Col: 5})
	assert.False(t, exists)
	assert.Equal(t, 0, manager.Occupied())
}

func TestTryEnterExclusive(t *testing.T) {
	r := newTestRoom(t, time.Second, 0)

	lease, err := r.TryEnter(1, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), lease.SessionID)
	assert.Equal(t, StatusOccupied, r.GetStatus())

	_, err = r.TryEnter(2, Hooks{})
	assert.ErrorIs(t, err, ErrRoomBusy)

	id, ok := r.Occupant()
	assert.True(t, ok)
	assert.Equal(t, int64(1), id, "failed entry must not disturb the occupant")
}

func TestTryEnterConcurrentSingleWinner(t *testing.T) {
	r := newTestRoom(t, time.Second, 0)

	const workers = 32
	var granted, busy atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			<-start
			if _, err := r.TryEnter(id, Hooks{}); err == nil {
				granted.Add(1)
			} else if err == ErrRoomBusy {
				busy.Add(1)
			}
		}(int64(i))
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
	assert.Equal(t, int32(workers-1), busy.Load())
}

func TestTimeoutReleasesOnce(t *testing.T) {
	r := newTestRoom(t, 30*time.Millisecond, 0)

	var timeouts atomic.Int32
	start := time.Now()
	_, err := r.TryEnter(7, Hooks{OnTimeout: func() { timeouts.Add(1) }})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return r.GetStatus() == StatusUnoccupied }, time.Second, 2*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	require.Eventually(t, func() bool { return timeouts.Load() == 1 }, time.Second, 2*time.Millisecond)

	assert.False(t, r.Exit(7), "exit after timeout must not release again")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), timeouts.Load())
}

func TestExitCancelsTimeout(t *testing.T) {
	r := newTestRoom(t, 40*time.Millisecond, 0)

	var timeouts atomic.Int32
	_, err := r.TryEnter(3, Hooks{OnTimeout: func() { timeouts.Add(1) }})
	require.NoError(t, err)

	assert.False(t, r.Exit(4), "only the occupant can exit")
	assert.True(t, r.Exit(3))
	assert.False(t, r.Exit(3))
	assert.Equal(t, StatusUnoccupied, r.GetStatus())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), timeouts.Load())

	_, err = r.TryEnter(4, Hooks{})
	assert.NoError(t, err, "a released room can be entered again")
}

func TestExitRacingTimeoutReleasesOnce(t *testing.T) {
	const duration = 10 * time.Millisecond
	rounds := 200
	if testing.Short() {
		rounds = 20
	}
	r := newTestRoom(t, duration, 0)

	for i := 0; i < rounds; i++ {
		id := int64(i + 1)
		var timeouts, exits atomic.Int32
		entered := time.Now()
		_, err := r.TryEnter(id, Hooks{OnTimeout: func() { timeouts.Add(1) }})
		require.NoError(t, err)

		time.Sleep(time.Until(entered.Add(duration - time.Millisecond)))
		var wg sync.WaitGroup
		for n := 0; n < 4; n++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if r.Exit(id) {
					exits.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Eventually(t, func() bool {
			return exits.Load()+timeouts.Load() >= 1 && r.GetStatus() == StatusUnoccupied
		}, time.Second, time.Millisecond)
		time.Sleep(2 * duration)
		require.Equal(t, int32(1), exits.Load()+timeouts.Load(), "round %d released more than once", i)
	}
}

func TestStaleTimeoutDoesNotEvictNextOccupant(t *testing.T) {
	r := newTestRoom(t, 40*time.Millisecond, 0)

	_, err := r.TryEnter(1, Hooks{})
	require.NoError(t, err)
	require.True(t, r.Exit(1))

	_, err = r.TryEnter(2, Hooks{})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	id, ok := r.Occupant()
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)
}

func TestCountdownTicks(t *testing.T) {
	r := newTestRoom(t, 100*time.Millisecond, 20*time.Millisecond)

	var ticks atomic.Int32
	_, err := r.TryEnter(9, Hooks{OnTick: func(left time.Duration) {
		assert.Greater(t, left, time.Duration(0))
		ticks.Add(1)
	}})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, 2*time.Millisecond)
	require.True(t, r.Exit(9))

	time.Sleep(30 * time.Millisecond)
	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "ticks stop once the room is released")
}

func TestCollectSlot(t *testing.T) {
	r := newTestRoom(t, time.Second, 0)

	_, _, err := r.CollectSlot(5, 0)
	assert.ErrorIs(t, err, ErrNotOccupant)

	_, err = r.TryEnter(5, Hooks{})
	require.NoError(t, err)

	_, _, err = r.CollectSlot(5, 16)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, _, err = r.CollectSlot(5, -1)
	assert.ErrorIs(t, err, ErrInvalidSlot)

	ok, cleared, err := r.CollectSlot(5, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, cleared)

	ok, _, err = r.CollectSlot(5, 3)
	require.NoError(t, err)
	assert.False(t, ok, "a slot is collected at most once")

	assert.Equal(t, []int{3}, r.Collected())
	assert.Equal(t, 15, r.Remaining())
}

func TestClearingRoomBlocksReentry(t *testing.T) {
	r := newTestRoom(t, time.Second, 0)

	_, err := r.TryEnter(5, Hooks{})
	require.NoError(t, err)

	clearedCalls := 0
	for i := 0; i < r.Slots(); i++ {
		ok, cleared, err := r.CollectSlot(5, i)
		require.NoError(t, err)
		require.True(t, ok)
		if cleared {
			clearedCalls++
		}
	}
	assert.Equal(t, 1, clearedCalls)
	assert.True(t, r.IsCleared())
	assert.Equal(t, StatusOccupied, r.GetStatus(), "clearing does not evict the occupant")

	require.True(t, r.Exit(5))
	_, err = r.TryEnter(6, Hooks{})
	assert.ErrorIs(t, err, ErrRoomCleared)
}

func TestSlotIndex(t *testing.T) {
	r := newTestRoom(t, time.Second, 0)
	assert.Equal(t, 0, r.SlotIndex(board.Pos{Row: 0, Col: 0}))
	assert.Equal(t, 6, r.SlotIndex(board.Pos{Row: 1, Col: 2}))
	assert.Equal(t, 15, r.SlotIndex(board.Pos{Row: 3, Col: 3}))
	assert.Equal(t, -1, r.SlotIndex(board.Pos{Row: 4, Col: 0}))
}
