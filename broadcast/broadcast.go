// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/treasurerace/logger"
	"github.com/wfunc/treasurerace/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// 广播接口
type Broadcaster interface {
	NotifyOthers(event string, excludeID int64) int
	NotifyAll(event string) int
	NotifyUser(sessionID int64, line string) error
}

// Publisher mirrors broadcast events to an external feed.
type Publisher interface {
	Publish(event string) error
	Close() error
}

// Dispatcher fans events out to registered sessions. A session that cannot
// take an event is closed; its connection goroutine then runs the normal
// disconnect cleanup.
type Dispatcher struct {
	sessionManager *session.Manager
	mirror         Publisher
}

func NewDispatcher(sessionManager *session.Manager, mirror Publisher) *Dispatcher {
	return &Dispatcher{
		sessionManager: sessionManager,
		mirror:         mirror,
	}
}

// NotifyOthers delivers event to every session except excludeID and returns
// how many accepted it.
func (d *Dispatcher) NotifyOthers(event string, excludeID int64) int {
	delivered := 0
	for _, s := range d.sessionManager.All() {
		if s.ID == excludeID {
			continue
		}
		if d.deliver(s, event) {
			delivered++
		}
	}
	d.publish(event)
	return delivered
}

func (d *Dispatcher) NotifyAll(event string) int {
	return d.NotifyOthers(event, 0)
}

func (d *Dispatcher) NotifyUser(sessionID int64, line string) error {
	s, ok := d.sessionManager.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if !d.deliver(s, line) {
		return session.ErrSessionClosed
	}
	return nil
}

func (d *Dispatcher) deliver(s *session.Session, line string) bool {
	if err := s.Send(line); err != nil {
		if !errors.Is(err, session.ErrSessionClosed) {
			logger.Log.Warnf("Dropping session %d after failed send: %v", s.ID, err)
		}
		s.Close()
		return false
	}
	return true
}

func (d *Dispatcher) publish(event string) {
	if d.mirror == nil {
		return
	}
	if err := d.mirror.Publish(event); err != nil {
		logger.Log.Warnf("Event mirror publish failed: %v", err)
	}
}
