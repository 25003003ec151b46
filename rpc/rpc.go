package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/treasurerace/logger"
	"github.com/wfunc/treasurerace/models"
	"github.com/wfunc/treasurerace/persistence"
)

var (
	ErrNoLeaderboard = errors.New("leaderboard not available")
	ErrUnknownMatch  = errors.New("unknown match")
)

// ServiceName is the net/rpc name GameService is registered under.
const ServiceName = "GameService"

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers service on a private rpc.Server.
func NewServer(addr string, service *GameService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, service); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// StatusProvider is the read-only view of a running match.
type StatusProvider interface {
	Status() models.Status
	Ranking() []models.PlayerResult
}

// GameService is the struct that exposes RPC methods.
type GameService struct {
	provider    StatusProvider
	leaderboard persistence.Leaderboard
}

// NewGameService serves p. lb may be nil when the store keeps no
// leaderboard.
func NewGameService(p StatusProvider, lb persistence.Leaderboard) *GameService {
	return &GameService{provider: p, leaderboard: lb}
}

// StatusArgs.MatchID, when set, must name the running match.
type StatusArgs struct {
	MatchID string
}

type StatusReply struct {
	Status models.Status
}

// Status reports the match phase, player count and what is left to collect.
func (gs *GameService) Status(args *StatusArgs, reply *StatusReply) error {
	status := gs.provider.Status()
	if args.MatchID != "" && args.MatchID != status.MatchID {
		return ErrUnknownMatch
	}
	reply.Status = status
	return nil
}

type RankingArgs struct {
	Limit int
}

type RankingReply struct {
	Players []models.PlayerResult
}

// Ranking returns the current ranking, truncated to Limit when positive.
func (gs *GameService) Ranking(args *RankingArgs, reply *RankingReply) error {
	players := gs.provider.Ranking()
	if args.Limit > 0 && len(players) > args.Limit {
		players = players[:args.Limit]
	}
	reply.Players = players
	return nil
}

// Leaderboard returns the best single-match scores across finished matches.
func (gs *GameService) Leaderboard(args *RankingArgs, reply *RankingReply) error {
	if gs.leaderboard == nil {
		return ErrNoLeaderboard
	}
	n := int64(args.Limit)
	if n <= 0 {
		n = 10
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	players, err := gs.leaderboard.Leaderboard(ctx, n)
	if err != nil {
		return err
	}
	reply.Players = players
	return nil
}
