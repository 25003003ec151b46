package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/wfunc/treasurerace/board"
	"github.com/wfunc/treasurerace/network"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrOutboxFull    = errors.New("session outbox full")
)

const DefaultOutboxSize = 64

// Session is one connected player. Outgoing lines are queued and written by a
// single goroutine, so a receiver sees them in the order they were queued.
type Session struct {
	ID   int64
	Conn network.Connection

	mutex     sync.RWMutex
	pos       board.Pos
	roomLocal board.Pos
	room      *board.Pos
	preEntry  board.Pos
	score     int
	closed    bool

	outbox    chan string
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewSession(id int64, conn network.Connection, outboxSize int) *Session {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     id,
		Conn:   conn,
		outbox: make(chan string, outboxSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.writeLoop()
	return s
}

func (s *Session) GetID() int64 {
	return s.ID
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Send queues a line without blocking. A full outbox means the client is not
// keeping up; the caller treats that like a broken connection.
func (s *Session) Send(line string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.outbox <- line:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Close stops accepting lines, flushes what is queued and closes the
// connection. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mutex.Lock()
		s.closed = true
		s.mutex.Unlock()
		close(s.done)
		s.cancel()
	})
	return nil
}

func (s *Session) IsClosed() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.closed
}

func (s *Session) writeLoop() {
	defer s.Conn.Close()
	for {
		select {
		case line := <-s.outbox:
			if err := s.Conn.Send(line); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			for {
				select {
				case line := <-s.outbox:
					if err := s.Conn.Send(line); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Session) Position() board.Pos {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.pos
}

func (s *Session) SetPosition(p board.Pos) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pos = p
}

func (s *Session) Score() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.score
}

// AddScore only ever increases the score.
func (s *Session) AddScore(n int) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if n > 0 {
		s.score += n
	}
	return s.score
}

// InRoom returns the main-map position of the room being occupied.
func (s *Session) InRoom() (board.Pos, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.room == nil {
		return board.Pos{}, false
	}
	return *s.room, true
}

// EnterRoom remembers the current position and moves the player to the
// room's first slot. It fails if the session is already in a room.
func (s *Session) EnterRoom(roomPos board.Pos) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.room != nil {
		return false
	}
	p := roomPos
	s.room = &p
	s.preEntry = s.pos
	s.roomLocal = board.Pos{}
	return true
}

// LeaveRoom snaps the player back to where it stood before entering room
// roomPos. It does nothing if the session is not in that room.
func (s *Session) LeaveRoom(roomPos board.Pos) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.room == nil || *s.room != roomPos {
		return false
	}
	s.room = nil
	s.pos = s.preEntry
	s.roomLocal = board.Pos{}
	return true
}

func (s *Session) RoomPosition() board.Pos {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomLocal
}

func (s *Session) SetRoomPosition(p board.Pos) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomLocal = p
}

// Session管理器
type Manager struct {
	sessions map[int64]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.AddFunc(session, nil)
}

// AddFunc registers session and runs init under the registry write lock, so
// no broadcast reaches the session until init has finished.
func (m *Manager) AddFunc(session *Session, init func()) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if init != nil {
		init()
	}
	m.sessions[session.ID] = session
}

// Remove reports whether the session was registered.
func (m *Manager) Remove(sessionID int64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	return true
}

func (m *Manager) Get(sessionID int64) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// All returns a snapshot ordered by id.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	m.mutex.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every registered session.
func (m *Manager) CloseAll() {
	for _, session := range m.All() {
		session.Close()
	}
}
