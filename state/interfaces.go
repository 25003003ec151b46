// state/interfaces.go
package state

// Player defines the minimal interface for a player entity that a state needs to interact with.
type Player interface {
	GetID() int64
}

// GameContext is what a match phase needs from the game.
// This breaks the import cycle between game and state.
type GameContext interface {
	GetID() string
	AllCollected() bool
	OnStart()
	OnFinish()
}
