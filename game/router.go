package game

import (
	"errors"
	"time"

	"github.com/wfunc/treasurerace/board"
	"github.com/wfunc/treasurerace/command"
	"github.com/wfunc/treasurerace/logger"
	"github.com/wfunc/treasurerace/network"
	"github.com/wfunc/treasurerace/room"
	"github.com/wfunc/treasurerace/session"
)

// Result is what a command produced. Replies go to the caller, Events to every
// other session and Announcements to everyone.
type Result struct {
	Replies       []string
	Events        []string
	Announcements []string
	Disconnect    bool
}

func reply(lines ...string) Result {
	return Result{Replies: lines}
}

// HandleLine parses one input line from s and applies it.
func (g *Game) HandleLine(s *session.Session, line string) Result {
	start := time.Now()

	cmd, err := command.Parse(line)
	if err != nil {
		logger.Log.Debugf("Player %d sent invalid command %q", s.ID, line)
		g.obs.CommandHandled("invalid", time.Since(start))
		return reply(network.TextInvalidCommand)
	}

	res := g.Handle(s, cmd)
	g.obs.CommandHandled(cmd.Kind.String(), time.Since(start))
	return res
}

// Handle applies a parsed command for s.
func (g *Game) Handle(s *session.Session, cmd command.Command) Result {
	if err := g.phase.GetCurrentState().HandleAction(s, cmd.Kind.String()); err != nil {
		return reply(network.TextGameOver)
	}

	switch cmd.Kind {
	case command.Move:
		return g.move(s, cmd)
	case command.Collect:
		return g.collect(s, cmd)
	case command.EnterRoom:
		return g.enterRoom(s, cmd)
	case command.CollectInRoom:
		return g.collectInRoom(s, cmd)
	case command.ExitRoom:
		return g.exitRoom(s, cmd)
	case command.Ranking:
		return reply(g.RankingTable()...)
	case command.Disconnect:
		return Result{Replies: []string{network.TextGoodbye}, Disconnect: true}
	default:
		return reply(network.TextInvalidCommand)
	}
}

func (g *Game) move(s *session.Session, cmd command.Command) Result {
	if roomPos, in := s.InRoom(); in {
		return g.moveInRoom(s, roomPos, cmd)
	}

	dest := s.Position().Add(cmd.DRow, cmd.DCol)
	if !g.Board.InBounds(dest) {
		return reply(network.TextInvalidMove)
	}
	s.SetPosition(dest)

	res := reply(network.Moved(dest.Row, dest.Col))
	if g.Board.IsTreasureCell(dest) {
		g.collectAt(s, dest, &res)
	}
	return res
}

func (g *Game) moveInRoom(s *session.Session, roomPos board.Pos, cmd command.Command) Result {
	r, ok := g.Rooms.GetRoom(roomPos)
	if !ok {
		return reply(network.TextNotInRoom)
	}
	dest := s.RoomPosition().Add(cmd.DRow, cmd.DCol)
	if r.SlotIndex(dest) < 0 {
		return reply(network.TextInvalidMove)
	}
	s.SetRoomPosition(dest)
	return reply(network.MovedInRoom(dest.Row, dest.Col))
}

func (g *Game) collect(s *session.Session, cmd command.Command) Result {
	if roomPos, in := s.InRoom(); in {
		if cmd.HasPos {
			return reply(network.TextAlreadyInRoom)
		}
		r, ok := g.Rooms.GetRoom(roomPos)
		if !ok {
			return reply(network.TextNotInRoom)
		}
		return g.collectSlot(s, roomPos, r, r.SlotIndex(s.RoomPosition()))
	}

	target := s.Position()
	if cmd.HasPos {
		target = cmd.Pos
		if !g.Board.InBounds(target) {
			return reply(network.TextInvalidPos)
		}
	}

	var res Result
	g.collectAt(s, target, &res)
	return res
}

// collectAt races for the treasure at p. The winner scores; everyone else
// hears there is nothing left.
func (g *Game) collectAt(s *session.Session, p board.Pos, res *Result) {
	if !g.Board.TryCollect(p) {
		res.Replies = append(res.Replies, network.TextNothingHere)
		return
	}

	s.AddScore(1)
	remaining := g.Board.Remaining()
	res.Replies = append(res.Replies, network.TextCollected)
	res.Events = append(res.Events, network.Collect(p.Row, p.Col))
	g.obs.TreasureCollected("map", remaining)
	logger.Log.Debugf("Player %d collected %s, %d left", s.ID, p, remaining)

	if remaining == 0 {
		g.finish(res)
	}
}

// finish ends the match. Only the caller whose transition succeeds gets the
// announcements.
func (g *Game) finish(res *Result) {
	if err := g.phase.ChangeState(g.finished); err != nil {
		return
	}
	result := g.result.Load()
	if result == nil {
		return
	}
	if len(result.Players) > 0 {
		w := result.Players[0]
		res.Announcements = append(res.Announcements, network.Winner(w.PlayerID, w.Score))
	}
	res.Announcements = append(res.Announcements, g.ranking.Table(result.Players)...)
}

func (g *Game) enterRoom(s *session.Session, cmd command.Command) Result {
	if _, in := s.InRoom(); in {
		return reply(network.TextAlreadyInRoom)
	}

	target := s.Position()
	if cmd.HasPos {
		target = cmd.Pos
		if !g.Board.InBounds(target) {
			return reply(network.TextInvalidPos)
		}
	}

	r, ok := g.Rooms.GetRoom(target)
	if !ok {
		return reply(network.TextNoRoomHere)
	}
	if g.Board.IsRoomCleared(target) {
		g.obs.RoomEntry("cleared", g.Rooms.Occupied())
		return reply(network.TextRoomCleared)
	}
	if !s.EnterRoom(target) {
		return reply(network.TextAlreadyInRoom)
	}

	if _, err := r.TryEnter(s.ID, g.roomHooks(s, target)); err != nil {
		s.LeaveRoom(target)
		switch {
		case errors.Is(err, room.ErrRoomCleared):
			g.obs.RoomEntry("cleared", g.Rooms.Occupied())
			return reply(network.TextRoomCleared)
		default:
			g.obs.RoomEntry("busy", g.Rooms.Occupied())
			return reply(network.TextRoomBusy)
		}
	}
	g.obs.RoomEntry("granted", g.Rooms.Occupied())
	logger.Log.Debugf("Player %d entered room %s", s.ID, target)

	res := reply(network.EnterRoom(target.Row, target.Col))
	for _, idx := range r.Collected() {
		res.Replies = append(res.Replies, network.CollectInRoom(target.Row, target.Col, idx))
	}
	res.Replies = append(res.Replies, network.RoomEntered(seconds(r.Duration())))
	return res
}

// roomHooks run on timer goroutines, so they write through the dispatcher
// rather than returning a Result.
func (g *Game) roomHooks(s *session.Session, roomPos board.Pos) room.Hooks {
	return room.Hooks{
		OnTick: func(left time.Duration) {
			g.Dispatcher.NotifyUser(s.ID, network.TimeLeft(seconds(left)))
		},
		OnTimeout: func() {
			g.obs.RoomReleased(string(room.ReasonTimeout), g.Rooms.Occupied())
			if !s.LeaveRoom(roomPos) {
				return
			}
			logger.Log.Debugf("Player %d timed out of room %s", s.ID, roomPos)
			back := s.Position()
			g.Dispatcher.NotifyUser(s.ID, network.TextRoomTimeout)
			g.Dispatcher.NotifyUser(s.ID, network.Position(back.Row, back.Col))
		},
	}
}

func (g *Game) collectInRoom(s *session.Session, cmd command.Command) Result {
	roomPos, in := s.InRoom()
	if !in {
		return reply(network.TextNotInRoom)
	}
	if cmd.Pos != roomPos {
		return reply(network.TextNotThisRoom)
	}
	r, ok := g.Rooms.GetRoom(roomPos)
	if !ok {
		return reply(network.TextNotInRoom)
	}
	return g.collectSlot(s, roomPos, r, cmd.Slot)
}

func (g *Game) collectSlot(s *session.Session, roomPos board.Pos, r *room.Room, idx int) Result {
	collected, clearedNow, err := r.CollectSlot(s.ID, idx)
	switch {
	case errors.Is(err, room.ErrNotOccupant):
		return reply(network.TextNotInRoom)
	case errors.Is(err, room.ErrInvalidSlot):
		return reply(network.TextInvalidSlot)
	case err != nil:
		logger.Log.Warnf("Room collect at %s failed: %v", roomPos, err)
		return reply(network.TextInvalidCommand)
	}
	if !collected {
		return reply(network.TextNothingHere)
	}

	s.AddScore(1)
	res := reply(network.TextCollected)
	res.Events = append(res.Events, network.CollectInRoom(roomPos.Row, roomPos.Col, idx))
	g.obs.TreasureCollected("room", g.Board.Remaining())

	if clearedNow {
		g.Board.MarkRoomCleared(roomPos)
		line := network.RoomExhausted(roomPos.Row, roomPos.Col)
		res.Replies = append(res.Replies, line)
		res.Events = append(res.Events, line)
	}
	return res
}

func (g *Game) exitRoom(s *session.Session, cmd command.Command) Result {
	roomPos, in := s.InRoom()
	if !in {
		return reply(network.TextNotInRoom)
	}
	if cmd.HasPos && cmd.Pos != roomPos {
		return reply(network.TextNotThisRoom)
	}

	r, ok := g.Rooms.GetRoom(roomPos)
	if !ok || !r.Exit(s.ID) {
		// the timeout got there first and will snap s back itself
		return reply(network.TextNotInRoom)
	}
	s.LeaveRoom(roomPos)
	g.obs.RoomReleased(string(room.ReasonExit), g.Rooms.Occupied())

	back := s.Position()
	return reply(network.TextLeftRoom, network.Position(back.Row, back.Col))
}

// seconds rounds up, so a client never sees zero while time is left.
func seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
