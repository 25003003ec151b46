package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/treasurerace/broadcast"
	"github.com/wfunc/treasurerace/config"
	"github.com/wfunc/treasurerace/game"
	"github.com/wfunc/treasurerace/logger"
	"github.com/wfunc/treasurerace/models"
	"github.com/wfunc/treasurerace/monitor"
	"github.com/wfunc/treasurerace/persistence"
	"github.com/wfunc/treasurerace/server"
)

func main() {
	// Initialize logger
	if err := logger.Init("info", false); err != nil {
		panic(err)
	}

	err := run()
	logger.Sync()
	if err != nil {
		logger.Log.Fatal(err)
	}
}

// run wires the server and blocks until a signal arrives. Every resource it
// opens is closed before it returns.
func run() error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return fmt.Errorf("invalid log configuration: %w", err)
	}
	cfg.Watch(func(fresh *config.Config) {
		if err := logger.SetLevel(fresh.Log.Level); err != nil {
			logger.Log.Warnf("Ignoring log level %q: %v", fresh.Log.Level, err)
			return
		}
		logger.Log.Infof("Log level now %s", logger.Level())
	})

	// Initialize Database
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open %s result store: %w", cfg.Database.Driver, err)
	}
	defer db.Close()
	logger.Log.Infof("Result store: %s", cfg.Database.Driver)

	mon := monitor.NewMonitor("tesouro")

	var gameServer *server.GameServer
	opts := []game.Option{
		game.WithObserver(mon),
		game.WithDatabase(db),
		game.OnFinish(func(result *models.MatchResult) {
			gameServer.MatchFinished(result)
		}),
	}

	if cfg.NATS.URL != "" {
		publisher, err := broadcast.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			logger.Log.Warnf("Spectator feed disabled: %v", err)
		} else {
			defer publisher.Close()
			opts = append(opts, game.WithMirror(publisher))
		}
	}

	g, err := game.New(game.FromConfig(cfg), opts...)
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	defer g.Close()
	logger.Log.Infof("Match %s: %dx%d board, %d treasures, seed %d",
		g.MatchID(), g.Board.Rows(), g.Board.Cols(), cfg.Game.Treasures, g.Board.Seed())

	// Initialize Game Server
	serverOpts := []server.Option{server.WithMonitor(mon)}
	if lb, ok := db.(persistence.Leaderboard); ok {
		serverOpts = append(serverOpts, server.WithLeaderboard(lb))
	}
	gameServer = server.NewGameServer(cfg.Server, g, serverOpts...)

	// Start Server
	if err := gameServer.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Log.Infof("Received %s, shutting down", sig)

	gameServer.Shutdown()
	return nil
}
