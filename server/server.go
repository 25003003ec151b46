package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/treasurerace/config"
	"github.com/wfunc/treasurerace/game"
	"github.com/wfunc/treasurerace/logger"
	"github.com/wfunc/treasurerace/models"
	"github.com/wfunc/treasurerace/monitor"
	"github.com/wfunc/treasurerace/network"
	"github.com/wfunc/treasurerace/persistence"
	gamerpc "github.com/wfunc/treasurerace/rpc"
	"github.com/wfunc/treasurerace/session"
)

type GameServer struct {
	cfg         config.ServerConfig
	game        *game.Game
	monitor     *monitor.Monitor
	leaderboard persistence.Leaderboard
	upgrader    websocket.Upgrader

	listener      net.Listener
	wsListener    net.Listener
	httpServer    *http.Server
	rpcServer     *gamerpc.Server
	healthServer  *gamerpc.HealthServer
	metricsServer *http.Server

	mutex        sync.Mutex
	closed       bool
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

type Option func(*GameServer)

// WithMonitor serves m on the metrics address.
func WithMonitor(m *monitor.Monitor) Option {
	return func(s *GameServer) { s.monitor = m }
}

// WithLeaderboard exposes all-time totals over the admin RPC.
func WithLeaderboard(lb persistence.Leaderboard) Option {
	return func(s *GameServer) { s.leaderboard = lb }
}

func NewGameServer(cfg config.ServerConfig, g *game.Game, opts ...Option) *GameServer {
	s := &GameServer{
		cfg:  cfg,
		game: g,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds every configured listener and serves in the background. A bind
// failure closes whatever was already opened and is returned.
func (s *GameServer) Start() error {
	listener, err := net.Listen("tcp", s.cfg.TCPAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.TCPAddress, err)
	}
	s.listener = listener

	if s.cfg.WSAddress != "" {
		wsListener, err := net.Listen("tcp", s.cfg.WSAddress)
		if err != nil {
			s.stopListeners()
			return fmt.Errorf("listen %s: %w", s.cfg.WSAddress, err)
		}
		s.wsListener = wsListener

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.handleWebSocket)
		s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Log.Infof("WebSocket listening on %s", wsListener.Addr())
			if err := s.httpServer.Serve(wsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Errorf("WebSocket server stopped: %v", err)
			}
		}()
	}

	if s.cfg.RPCAddress != "" {
		rpcServer, err := gamerpc.NewServer(s.cfg.RPCAddress, gamerpc.NewGameService(s.game, s.leaderboard))
		if err != nil {
			s.stopListeners()
			return fmt.Errorf("rpc listen %s: %w", s.cfg.RPCAddress, err)
		}
		s.rpcServer = rpcServer
		go rpcServer.Start()
	}

	if s.cfg.GRPCAddress != "" {
		healthServer, err := gamerpc.NewHealthServer(s.cfg.GRPCAddress)
		if err != nil {
			s.stopListeners()
			return fmt.Errorf("grpc listen %s: %w", s.cfg.GRPCAddress, err)
		}
		s.healthServer = healthServer
		go healthServer.Start()
	}

	if s.cfg.MetricsAddress != "" && s.monitor != nil {
		s.metricsServer = s.monitor.StartServer(s.cfg.MetricsAddress)
	}

	s.wg.Add(1)
	go s.acceptLoop()

	logger.Log.Infof("Game server listening on %s", listener.Addr())
	return nil
}

// Addr is the bound TCP address.
func (s *GameServer) Addr() net.Addr {
	return s.listener.Addr()
}

// WSAddr is the bound WebSocket address, nil when disabled.
func (s *GameServer) WSAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// MatchFinished flips the health status once the map is empty.
func (s *GameServer) MatchFinished(result *models.MatchResult) {
	if s.healthServer != nil {
		s.healthServer.SetServing(false)
	}
	logger.Log.Infof("Match %s over, %d players ranked", result.MatchID, len(result.Players))
}

func (s *GameServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Log.Errorf("Accept error: %v", err)
			continue
		}
		if !s.track() {
			conn.Close()
			return
		}
		go s.handleConnection(network.NewTCPConnection(conn))
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	if !s.track() {
		conn.Close()
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

// track counts a new connection goroutine unless shutdown has begun.
func (s *GameServer) track() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *GameServer) isClosed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

func (s *GameServer) handleConnection(conn network.Connection) {
	defer s.wg.Done()

	sess := s.game.Join(conn)
	logger.Log.Infof("New connection from %s, session ID: %d", conn.RemoteAddr(), sess.GetID())
	defer func() {
		s.game.Leave(sess)
		logger.Log.Infof("Connection closed from %s, session ID: %d", conn.RemoteAddr(), sess.GetID())
	}()

	// a session that joined after CloseAll would never be woken
	if s.isClosed() {
		return
	}
	if s.cfg.IdleTimeout > 0 {
		conn.SetHeartbeat(s.cfg.IdleTimeout)
	}

	for {
		select {
		case <-sess.Context().Done():
			return
		default:
		}

		line, err := conn.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !sess.IsClosed() {
				logger.Log.Debugf("Read from session %d failed: %v", sess.GetID(), err)
			}
			return
		}

		res := s.game.HandleLine(sess, line)
		s.deliver(sess, res)
		if res.Disconnect {
			return
		}
	}
}

// deliver sends replies to sess before fanning out, so the caller hears its
// own result first.
func (s *GameServer) deliver(sess *session.Session, res game.Result) {
	for _, line := range res.Replies {
		if err := sess.Send(line); err != nil {
			sess.Close()
			break
		}
	}
	for _, event := range res.Events {
		s.game.Dispatcher.NotifyOthers(event, sess.GetID())
	}
	for _, line := range res.Announcements {
		s.game.Dispatcher.NotifyAll(line)
	}
}

func (s *GameServer) stopListeners() {
	if s.listener != nil {
		s.listener.Close()
	}
	if s.wsListener != nil {
		s.wsListener.Close()
	}
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
	if s.healthServer != nil {
		s.healthServer.Stop()
	}
}

// Shutdown stops accepting, closes every session and waits for the
// connection goroutines to finish.
func (s *GameServer) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mutex.Lock()
		s.closed = true
		s.mutex.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if s.httpServer != nil {
			s.httpServer.Shutdown(ctx)
		}
		s.stopListeners()
		if s.metricsServer != nil {
			s.metricsServer.Shutdown(ctx)
		}

		s.game.Sessions.CloseAll()
		s.wg.Wait()
		logger.Log.Info("Game server stopped")
	})
}
