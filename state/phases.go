package state

import (
	"errors"

	"github.com/wfunc/treasurerace/logger"
)

const (
	PhasePlaying  = "playing"
	PhaseFinished = "finished"
)

// ErrGameFinished rejects board-changing actions once the match is over.
var ErrGameFinished = errors.New("game finished")

// PlayingState 对局进行中
type PlayingState struct {
	GameStateBase
}

func NewPlayingState(game GameContext) *PlayingState {
	return &PlayingState{
		GameStateBase: GameStateBase{ID: PhasePlaying, Game: game},
	}
}

func (s *PlayingState) OnEnter() {
	logger.Log.Infof("Match %s started", s.Game.GetID())
	s.Game.OnStart()
}

// FinishedState 对局结束: the main map is empty. Players may still leave rooms,
// look at the ranking and disconnect.
type FinishedState struct {
	GameStateBase
	allowed map[string]bool
}

func NewFinishedState(game GameContext, allowedActions ...string) *FinishedState {
	allowed := make(map[string]bool, len(allowedActions))
	for _, a := range allowedActions {
		allowed[a] = true
	}
	return &FinishedState{
		GameStateBase: GameStateBase{ID: PhaseFinished, Game: game},
		allowed:       allowed,
	}
}

func (s *FinishedState) OnEnter() {
	logger.Log.Infof("Match %s finished", s.Game.GetID())
	s.Game.OnFinish()
}

func (s *FinishedState) HandleAction(player Player, action string) error {
	if s.allowed[action] {
		return nil
	}
	return ErrGameFinished
}

// NewMatchStateMachine starts in playing and allows finishing only once every
// main-map treasure is gone.
func NewMatchStateMachine(game GameContext, playing *PlayingState, finished *FinishedState) *BaseStateMachine {
	sm := NewBaseStateMachine(playing)
	sm.AddTransition(playing, finished, game.AllCollected)
	return sm
}
