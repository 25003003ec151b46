package state

import (
	"sync"
	"sync/atomic"
	"testing"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID            string
	OnEnterCalled bool
	OnExitCalled  bool
}

func (m *MockState) OnEnter() {
	m.OnEnterCalled = true
}

func (m *MockState) OnExit() {
	m.OnExitCalled = true
}

func (m *MockState) GetID() string {
	return m.ID
}

func (m *MockState) HandleAction(player Player, action string) error {
	return nil
}

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
}

// mockGame is a test double for GameContext.
type mockGame struct {
	allCollected atomic.Bool
	starts       atomic.Int32
	finishes     atomic.Int32
}

func (g *mockGame) GetID() string      { return "match-1" }
func (g *mockGame) AllCollected() bool { return g.allCollected.Load() }
func (g *mockGame) OnStart()           { g.starts.Add(1) }
func (g *mockGame) OnFinish()          { g.finishes.Add(1) }

type mockPlayer int64

func (p mockPlayer) GetID() int64 { return int64(p) }

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseStateMachine(initialState)

	if !initialState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the initial state")
	}

	if sm.GetCurrentState() != initialState {
		t.Error("GetCurrentState should return the initial state")
	}
}

func TestStateMachine_ChangeState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseStateMachine(initialState)
	initialState.reset() // Reset after initialization

	err := sm.ChangeState(nextState)
	if err != nil {
		t.Fatalf("ChangeState should not return an error, but got: %v", err)
	}

	if !initialState.OnExitCalled {
		t.Error("Expected OnExit to be called on the old state")
	}

	if !nextState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the new state")
	}

	if sm.GetCurrentState() != nextState {
		t.Error("GetCurrentState should return the new state")
	}
}

func TestStateMachine_SameStateRejected(t *testing.T) {
	a := &MockState{ID: "A"}
	sm := NewBaseStateMachine(a)
	a.reset()

	if err := sm.ChangeState(&MockState{ID: "A"}); err != ErrAlreadyInState {
		t.Fatalf("Expected ErrAlreadyInState, got %v", err)
	}
	if a.OnExitCalled {
		t.Error("OnExit should not run for a rejected transition")
	}
}

func TestStateMachine_AddAndUseTransition(t *testing.T) {
	stateA := &MockState{ID: "A"}
	stateB := &MockState{ID: "B"}
	stateC := &MockState{ID: "C"}

	sm := NewBaseStateMachine(stateA)

	// Add a valid transition from A to B
	err := sm.AddTransition(stateA, stateB, func() bool { return true })
	if err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	// Add a blocked transition from B to C
	err = sm.AddTransition(stateB, stateC, func() bool { return false })
	if err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	// --- Test valid transition ---
	stateA.reset()
	err = sm.ChangeState(stateB)
	if err != nil {
		t.Errorf("Expected transition from A to B to be allowed, but got error: %v", err)
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to be B, but got %s", sm.GetCurrentState().GetID())
	}

	// --- Test blocked transition ---
	stateB.reset()
	err = sm.ChangeState(stateC)
	if err != ErrTransitionNotAllowed {
		t.Errorf("Expected ErrTransitionNotAllowed, but got: %v", err)
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to remain B after a blocked transition, but got %s", sm.GetCurrentState().GetID())
	}
	if stateB.OnExitCalled {
		t.Error("OnExit should not be called on the current state if transition is blocked")
	}
	if stateC.OnEnterCalled {
		t.Error("OnEnter should not be called on the new state if transition is blocked")
	}
}

func TestMatchStateMachine_FinishRequiresEmptyMap(t *testing.T) {
	game := &mockGame{}
	playing := NewPlayingState(game)
	finished := NewFinishedState(game, "exit_room")
	sm := NewMatchStateMachine(game, playing, finished)

	if game.starts.Load() != 1 {
		t.Fatalf("Expected OnStart once, got %d", game.starts.Load())
	}
	if err := sm.ChangeState(finished); err != ErrTransitionNotAllowed {
		t.Fatalf("Expected ErrTransitionNotAllowed while treasures remain, got %v", err)
	}

	game.allCollected.Store(true)
	if err := sm.ChangeState(finished); err != nil {
		t.Fatalf("Expected finish to be allowed, got %v", err)
	}
	if sm.GetCurrentState().GetID() != PhaseFinished {
		t.Fatalf("Expected phase %s, got %s", PhaseFinished, sm.GetCurrentState().GetID())
	}
}

func TestMatchStateMachine_FinishOnlyOnce(t *testing.T) {
	game := &mockGame{}
	game.allCollected.Store(true)
	playing := NewPlayingState(game)
	finished := NewFinishedState(game)
	sm := NewMatchStateMachine(game, playing, finished)

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sm.ChangeState(finished) == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 {
		t.Fatalf("Expected exactly one successful finish, got %d", ok.Load())
	}
	if game.finishes.Load() != 1 {
		t.Fatalf("Expected OnFinish once, got %d", game.finishes.Load())
	}
}

func TestFinishedState_HandleAction(t *testing.T) {
	game := &mockGame{}
	finished := NewFinishedState(game, "exit_room", "ranking")
	player := mockPlayer(1)

	if err := finished.HandleAction(player, "ranking"); err != nil {
		t.Errorf("ranking should be allowed, got %v", err)
	}
	if err := finished.HandleAction(player, "move"); err != ErrGameFinished {
		t.Errorf("move should be rejected with ErrGameFinished, got %v", err)
	}
	if err := NewPlayingState(game).HandleAction(player, "move"); err != nil {
		t.Errorf("playing accepts every action, got %v", err)
	}
}
