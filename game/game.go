// Package game owns the shared match state: board, rooms, sessions, timers and
// the match phase. Connection handlers drive it through Join, HandleLine and
// Leave.
package game

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/treasurerace/board"
	"github.com/wfunc/treasurerace/broadcast"
	"github.com/wfunc/treasurerace/command"
	"github.com/wfunc/treasurerace/config"
	"github.com/wfunc/treasurerace/logger"
	"github.com/wfunc/treasurerace/models"
	"github.com/wfunc/treasurerace/network"
	"github.com/wfunc/treasurerace/persistence"
	"github.com/wfunc/treasurerace/room"
	"github.com/wfunc/treasurerace/services"
	"github.com/wfunc/treasurerace/session"
	"github.com/wfunc/treasurerace/state"
	"github.com/wfunc/treasurerace/timer"
)

type Config struct {
	Rows            int
	Cols            int
	Treasures       int
	RoomRows        int
	RoomCols        int
	RoomDuration    time.Duration
	RoomTick        time.Duration
	Seed            int64
	TimerResolution time.Duration
	OutboxSize      int
}

func FromConfig(cfg *config.Config) Config {
	return Config{
		Rows:            cfg.Game.Rows,
		Cols:            cfg.Game.Cols,
		Treasures:       cfg.Game.Treasures,
		RoomRows:        cfg.Game.RoomRows,
		RoomCols:        cfg.Game.RoomCols,
		RoomDuration:    cfg.Game.RoomDuration,
		RoomTick:        cfg.Game.RoomTick,
		Seed:            cfg.Game.Seed,
		TimerResolution: cfg.Game.TimerResolution,
		OutboxSize:      cfg.Server.OutboxSize,
	}
}

// Observer receives gameplay measurements. monitor.Monitor implements it.
type Observer interface {
	PlayerJoined()
	PlayerLeft()
	CommandHandled(command string, d time.Duration)
	TreasureCollected(where string, remaining int)
	RoomEntry(outcome string, occupied int)
	RoomReleased(reason string, occupied int)
	SetTreasuresRemaining(n int)
}

type nopObserver struct{}

func (nopObserver) PlayerJoined() {}
func (nopObserver) PlayerLeft() {}
func (nopObserver) CommandHandled(string, time.Duration) {}
func (nopObserver) TreasureCollected(string, int) {}
func (nopObserver) RoomEntry(string, int) {}
func (nopObserver) RoomReleased(string, int) {}
func (nopObserver) SetTreasuresRemaining(int) {}

type Option func(*Game)

func WithObserver(o Observer) Option {
	return func(g *Game) { g.obs = o }
}

// WithMirror publishes every broadcast event to p as well.
func WithMirror(p broadcast.Publisher) Option {
	return func(g *Game) { g.mirror = p }
}

// WithDatabase stores the result of the finished match in db.
func WithDatabase(db persistence.Database) Option {
	return func(g *Game) { g.db = db }
}

// OnFinish registers fn to run once when the match ends.
func OnFinish(fn func(*models.MatchResult)) Option {
	return func(g *Game) { g.finishHooks = append(g.finishHooks, fn) }
}

type Game struct {
	cfg       Config
	matchID   string
	startedAt time.Time

	Board      *board.Board
	Rooms      *room.Manager
	Sessions   *session.Manager
	Dispatcher *broadcast.Dispatcher

	timers   *timer.TimerManager
	phase    *state.BaseStateMachine
	finished *state.FinishedState
	ranking  *services.RankingService

	obs         Observer
	mirror      broadcast.Publisher
	db          persistence.Database
	finishHooks []func(*models.MatchResult)
	result      atomic.Pointer[models.MatchResult]

	nextID   atomic.Int64
	rngMutex sync.Mutex
	rng      *rand.Rand
	records  sync.WaitGroup
}

func New(cfg Config, opts ...Option) (*Game, error) {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.RoomRows <= 0 || cfg.RoomCols <= 0 {
		cfg.RoomRows, cfg.RoomCols = 4, 4
	}
	if cfg.RoomDuration <= 0 {
		cfg.RoomDuration = 10 * time.Second
	}
	// the join snapshot must fit in the outbox
	if need := cfg.Treasures + 8; cfg.OutboxSize < need {
		cfg.OutboxSize = max(need, session.DefaultOutboxSize)
	}

	b, err := board.New(cfg.Rows, cfg.Cols, cfg.Treasures, cfg.Seed)
	if err != nil {
		return nil, err
	}

	g := &Game{
		cfg:      cfg,
		matchID:  uuid.NewString(),
		Board:    b,
		Sessions: session.NewManager(),
		timers:   timer.NewTimerManager(cfg.TimerResolution),
		obs:      nopObserver{},
		rng:      rand.New(rand.NewSource(cfg.Seed ^ time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.Rooms = room.NewRoomManager(b.RoomCells(), cfg.RoomRows, cfg.RoomCols, cfg.RoomDuration, cfg.RoomTick, g.timers)
	g.Dispatcher = broadcast.NewDispatcher(g.Sessions, g.mirror)
	g.ranking = services.NewRankingService(g.db)

	playing := state.NewPlayingState(g)
	g.finished = state.NewFinishedState(g,
		command.ExitRoom.String(),
		command.Ranking.String(),
		command.Disconnect.String(),
	)
	g.phase = state.NewMatchStateMachine(g, playing, g.finished)

	return g, nil
}

// --- state.GameContext ---

func (g *Game) GetID() string {
	return g.matchID
}

func (g *Game) AllCollected() bool {
	return g.Board.IsAllCollected()
}

func (g *Game) OnStart() {
	g.startedAt = time.Now()
	g.obs.SetTreasuresRemaining(g.Board.Remaining())
}

// OnFinish runs once, under the phase machine lock. It must not touch the
// phase machine.
func (g *Game) OnFinish() {
	ranked := g.Ranking()
	result := &models.MatchResult{
		MatchID:    g.matchID,
		Seed:       g.Board.Seed(),
		Rows:       g.Board.Rows(),
		Cols:       g.Board.Cols(),
		Treasures:  g.cfg.Treasures,
		Players:    ranked,
		StartedAt:  g.startedAt,
		FinishedAt: time.Now(),
	}
	if winner, ok := g.ranking.Winner(ranked); ok {
		result.WinnerID = winner.PlayerID
		logger.Log.Infow("Match won", "match", g.matchID, "player", winner.PlayerID, "score", winner.Score)
	}
	g.result.Store(result)

	for _, fn := range g.finishHooks {
		fn(result)
	}

	g.records.Add(1)
	go func() {
		defer g.records.Done()
		if err := g.ranking.Record(context.Background(), result); err != nil {
			logger.Log.Errorf("Failed to record match result: %v", err)
		}
	}()
}

// Result is the final result, nil while the match is running.
func (g *Game) Result() *models.MatchResult {
	return g.result.Load()
}

func (g *Game) Phase() string {
	return g.phase.GetCurrentState().GetID()
}

func (g *Game) MatchID() string {
	return g.matchID
}

// --- session lifecycle ---

// Join registers a new session for conn and queues its greeting: the seed,
// the untaken treasures, the welcome banner and the start position. The
// greeting is queued under the registry lock, so no broadcast can slip in
// between.
func (g *Game) Join(conn network.Connection) *session.Session {
	id := g.nextID.Add(1)
	s := session.NewSession(id, conn, g.cfg.OutboxSize)
	s.SetPosition(g.randomStart())

	g.Sessions.AddFunc(s, func() {
		s.Send(network.Seed(g.Board.Seed()))
		for _, p := range g.Board.Treasures() {
			s.Send(network.Collect(p.Row, p.Col))
		}
		s.Send(network.Welcome(id))
		pos := s.Position()
		s.Send(network.Position(pos.Row, pos.Col))
	})

	g.obs.PlayerJoined()
	logger.Log.Infof("Player %d joined from %s", id, conn.RemoteAddr())
	g.Dispatcher.NotifyOthers(network.PlayerJoined(id), id)
	return s
}

// Leave deregisters s, force-releases its room and closes it. Safe to call
// more than once.
func (g *Game) Leave(s *session.Session) {
	if !g.Sessions.Remove(s.ID) {
		s.Close()
		return
	}

	if pos, in := s.InRoom(); in {
		if r, ok := g.Rooms.GetRoom(pos); ok && r.Exit(s.ID) {
			s.LeaveRoom(pos)
			g.obs.RoomReleased(string(room.ReasonDisconnect), g.Rooms.Occupied())
		}
	}

	s.Close()
	g.obs.PlayerLeft()
	logger.Log.Infof("Player %d left with %d treasures", s.ID, s.Score())
	g.Dispatcher.NotifyOthers(network.PlayerLeft(s.ID), s.ID)
}

func (g *Game) randomStart() board.Pos {
	g.rngMutex.Lock()
	defer g.rngMutex.Unlock()
	return board.Pos{Row: g.rng.Intn(g.Board.Rows()), Col: g.rng.Intn(g.Board.Cols())}
}

// --- read side ---

// Ranking ranks the connected players.
func (g *Game) Ranking() []models.PlayerResult {
	all := g.Sessions.All()
	scores := make([]models.PlayerResult, 0, len(all))
	for _, s := range all {
		scores = append(scores, models.PlayerResult{PlayerID: s.ID, Score: s.Score()})
	}
	return g.ranking.Rank(scores)
}

func (g *Game) RankingTable() []string {
	return g.ranking.Table(g.Ranking())
}

func (g *Game) Status() models.Status {
	return models.Status{
		MatchID:            g.matchID,
		Phase:              g.Phase(),
		Seed:               g.Board.Seed(),
		Players:            g.Sessions.Count(),
		TreasuresRemaining: g.Board.Remaining(),
		RoomsOccupied:      g.Rooms.Occupied(),
		RoomsCleared:       g.Rooms.Cleared(),
	}
}

// Close stops the room timers and waits for a pending result write.
func (g *Game) Close() {
	g.timers.Stop()
	g.records.Wait()
}
