// Package command turns one line of client input into a Command.
package command

import (
	"errors"
	"strconv"
	"strings"

	"github.com/wfunc/treasurerace/board"
	"github.com/wfunc/treasurerace/network"
)

var ErrInvalidCommand = errors.New("invalid command")

type Kind int

const (
	Move Kind = iota + 1
	Collect
	EnterRoom
	CollectInRoom
	ExitRoom
	Disconnect
	Ranking
)

var kindNames = map[Kind]string{
	Move:          "move",
	Collect:       "collect",
	EnterRoom:     "enter_room",
	CollectInRoom: "collect_in_room",
	ExitRoom:      "exit_room",
	Disconnect:    "disconnect",
	Ranking:       "ranking",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// Command is a parsed client request. Pos is meaningful only when HasPos is
// set; Slot only for CollectInRoom.
type Command struct {
	Kind   Kind
	DRow   int
	DCol   int
	Pos    board.Pos
	HasPos bool
	Slot   int
}

var shortMoves = map[string][2]int{
	network.CmdUp:    {-1, 0},
	network.CmdDown:  {1, 0},
	network.CmdLeft:  {0, -1},
	network.CmdRight: {0, 1},
}

// Parse recognises exactly the protocol grammar; anything else, including a
// known verb with the wrong number of arguments, is ErrInvalidCommand.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrInvalidCommand
	}
	verb, args := fields[0], fields[1:]

	if delta, ok := shortMoves[verb]; ok && len(args) == 0 {
		return Command{Kind: Move, DRow: delta[0], DCol: delta[1]}, nil
	}

	switch verb {
	case network.CmdMove:
		nums, err := ints(args, 2)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: Move, DRow: nums[0], DCol: nums[1]}, nil

	case network.CmdCollectHere:
		return bare(Collect, args)

	case network.MsgCollect:
		return located(Collect, args)

	case network.CmdEnterHere, network.CmdEnterHereAlias:
		return bare(EnterRoom, args)

	case network.MsgAccessRoom:
		return located(EnterRoom, args)

	case network.MsgCollectInRoom:
		nums, err := ints(args, 3)
		if err != nil {
			return Command{}, err
		}
		return Command{
			Kind:   CollectInRoom,
			Pos:    board.Pos{Row: nums[0], Col: nums[1]},
			HasPos: true,
			Slot:   nums[2],
		}, nil

	case network.MsgExitRoom:
		return located(ExitRoom, args)

	case network.CmdQuit, network.MsgLeaveGame:
		return bare(Disconnect, args)

	case network.CmdRanking:
		return bare(Ranking, args)
	}
	return Command{}, ErrInvalidCommand
}

func bare(kind Kind, args []string) (Command, error) {
	if len(args) != 0 {
		return Command{}, ErrInvalidCommand
	}
	return Command{Kind: kind}, nil
}

func located(kind Kind, args []string) (Command, error) {
	nums, err := ints(args, 2)
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: kind, Pos: board.Pos{Row: nums[0], Col: nums[1]}, HasPos: true}, nil
}

func ints(args []string, want int) ([]int, error) {
	if len(args) != want {
		return nil, ErrInvalidCommand
	}
	out := make([]int, want)
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, ErrInvalidCommand
		}
		out[i] = n
	}
	return out, nil
}
