// room/room.go
package room

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/treasurerace/board"
)

var (
	ErrRoomBusy    = errors.New("room is occupied")
	ErrRoomCleared = errors.New("room has no treasures left")
	ErrNotOccupant = errors.New("session does not occupy this room")
	ErrInvalidSlot = errors.New("invalid room slot")
)

// RoomStatus 表示房间是否有人
type RoomStatus int

const (
	StatusUnoccupied RoomStatus = iota
	StatusOccupied
)

func (s RoomStatus) String() string {
	if s == StatusOccupied {
		return "occupied"
	}
	return "unoccupied"
}

// ReleaseReason says which path ended an occupancy cycle.
type ReleaseReason string

const (
	ReasonExit       ReleaseReason = "exit"
	ReasonTimeout    ReleaseReason = "timeout"
	ReasonDisconnect ReleaseReason = "disconnect"
)

type slot struct {
	mu        sync.Mutex
	collected bool
}

// Lease is one occupancy cycle. Whichever of timeout and exit flips
// released first performs the release.
type Lease struct {
	SessionID int64
	EnteredAt time.Time
	Deadline  time.Time

	released  atomic.Bool
	timeoutID int64
	tickID    int64
}

func (l *Lease) Released() bool {
	return l.released.Load()
}

// Room 是主地图上某个格子的宝藏房间
type Room struct {
	Pos  board.Pos
	Rows int
	Cols int

	duration time.Duration
	tick     time.Duration
	sched    Scheduler

	slots     []slot
	remaining atomic.Int32
	cleared   atomic.Bool

	// occupant holds the session id, 0 when unoccupied.
	occupant atomic.Int64

	leaseMutex sync.Mutex
	lease      *Lease
}

// NewRoom 创建一个新房间
func NewRoom(pos board.Pos, rows, cols int, duration, tick time.Duration, sched Scheduler) *Room {
	r := &Room{
		Pos:      pos,
		Rows:     rows,
		Cols:     cols,
		duration: duration,
		tick:     tick,
		sched:    sched,
		slots:    make([]slot, rows*cols),
	}
	r.remaining.Store(int32(rows * cols))
	return r
}

// TryEnter grants the room to sessionID without blocking. A busy room
// returns ErrRoomBusy and changes nothing.
func (r *Room) TryEnter(sessionID int64, hooks Hooks) (*Lease, error) {
	if r.cleared.Load() {
		return nil, ErrRoomCleared
	}
	if !r.occupant.CompareAndSwap(0, sessionID) {
		return nil, ErrRoomBusy
	}

	now := time.Now()
	l := &Lease{
		SessionID: sessionID,
		EnteredAt: now,
		Deadline:  now.Add(r.duration),
	}

	r.leaseMutex.Lock()
	defer r.leaseMutex.Unlock()
	r.lease = l

	l.timeoutID = r.sched.AddTimer(r.duration, 0, func() {
		if r.release(l) && hooks.OnTimeout != nil {
			hooks.OnTimeout()
		}
	})
	if r.tick > 0 && hooks.OnTick != nil {
		l.tickID = r.sched.AddTimer(r.tick, r.tick, func() {
			if l.Released() {
				return
			}
			if left := time.Until(l.Deadline); left > 0 {
				hooks.OnTick(left)
			}
		})
	}
	return l, nil
}

// Exit releases the room if sessionID currently holds it. It reports whether
// this call did the release; false means the countdown got there first.
func (r *Room) Exit(sessionID int64) bool {
	r.leaseMutex.Lock()
	l := r.lease
	r.leaseMutex.Unlock()

	if l == nil || l.SessionID != sessionID {
		return false
	}
	return r.release(l)
}

func (r *Room) release(l *Lease) bool {
	if !l.released.CompareAndSwap(false, true) {
		return false
	}

	r.leaseMutex.Lock()
	r.sched.RemoveTimer(l.timeoutID)
	if l.tickID != 0 {
		r.sched.RemoveTimer(l.tickID)
	}
	if r.lease == l {
		r.lease = nil
	}
	r.leaseMutex.Unlock()

	r.occupant.Store(0)
	return true
}

// CollectSlot takes slot idx for the occupant. clearedNow is true for the one
// call that took the last slot.
func (r *Room) CollectSlot(sessionID int64, idx int) (collected bool, clearedNow bool, err error) {
	if sessionID == 0 || r.occupant.Load() != sessionID {
		return false, false, ErrNotOccupant
	}
	if idx < 0 || idx >= len(r.slots) {
		return false, false, ErrInvalidSlot
	}

	s := &r.slots[idx]
	s.mu.Lock()
	if s.collected {
		s.mu.Unlock()
		return false, false, nil
	}
	s.collected = true
	s.mu.Unlock()

	if r.remaining.Add(-1) == 0 {
		return true, r.cleared.CompareAndSwap(false, true), nil
	}
	return true, false, nil
}

// SlotIndex maps a room-local coordinate to a slot index, -1 when outside.
func (r *Room) SlotIndex(local board.Pos) int {
	if local.Row < 0 || local.Row >= r.Rows || local.Col < 0 || local.Col >= r.Cols {
		return -1
	}
	return local.Row*r.Cols + local.Col
}

// Collected lists the indices of slots already taken.
func (r *Room) Collected() []int {
	var out []int
	for i := range r.slots {
		s := &r.slots[i]
		s.mu.Lock()
		if s.collected {
			out = append(out, i)
		}
		s.mu.Unlock()
	}
	return out
}

func (r *Room) Slots() int {
	return len(r.slots)
}

func (r *Room) Remaining() int {
	return int(r.remaining.Load())
}

func (r *Room) IsCleared() bool {
	return r.cleared.Load()
}

func (r *Room) Duration() time.Duration {
	return r.duration
}

// Occupant returns the occupying session id.
func (r *Room) Occupant() (int64, bool) {
	id := r.occupant.Load()
	return id, id != 0
}

// GetStatus 获取房间状态
func (r *Room) GetStatus() RoomStatus {
	if r.occupant.Load() != 0 {
		return StatusOccupied
	}
	return StatusUnoccupied
}

// --- 房间管理器 ---

// Manager indexes rooms by main-map position. The map is filled once in
// NewRoomManager and only read afterwards.
type Manager struct {
	rooms map[board.Pos]*Room
}

// NewRoomManager 为每个房间格子创建一个房间
func NewRoomManager(positions []board.Pos, rows, cols int, duration, tick time.Duration, sched Scheduler) *Manager {
	m := &Manager{rooms: make(map[board.Pos]*Room, len(positions))}
	for _, pos := range positions {
		m.rooms[pos] = NewRoom(pos, rows, cols, duration, tick, sched)
	}
	return m
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(pos board.Pos) (*Room, bool) {
	room, exists := m.rooms[pos]
	return room, exists
}

func (m *Manager) Len() int {
	return len(m.rooms)
}

// Occupied counts rooms that currently have an occupant.
func (m *Manager) Occupied() int {
	n := 0
	for _, room := range m.rooms {
		if room.GetStatus() == StatusOccupied {
			n++
		}
	}
	return n
}

// Cleared counts exhausted rooms.
func (m *Manager) Cleared() int {
	n := 0
	for _, room := range m.rooms {
		if room.IsCleared() {
			n++
		}
	}
	return n
}
