// Package main provides the SAMud telnet server: a multiplayer text
// world set in San Antonio.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/samud/samud/internal/config"
	"github.com/samud/samud/internal/game/command"
	"github.com/samud/samud/internal/game/session"
	"github.com/samud/samud/internal/handlers"
	"github.com/samud/samud/internal/observability"
	"github.com/samud/samud/internal/server"
	"github.com/samud/samud/internal/storage/postgres"
	"github.com/samud/samud/internal/telnet"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting SAMud server",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
	)

	ctx := context.Background()
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	users := postgres.NewUserRepository(pool.DB())
	worldRepo := postgres.NewWorldRepository(pool.DB(), cfg.World.StartRoom)

	graph, err := worldRepo.LoadGraph(ctx)
	if err != nil {
		logger.Fatal("loading world", zap.Error(err))
	}
	logger.Info("world loaded",
		zap.Int("rooms", graph.RoomCount()),
		zap.Int64("start_room", graph.StartRoom()),
	)

	world := session.NewManager(graph, worldRepo, logger)
	dispatcher := command.NewDispatcher(command.DefaultRegistry(), logger)
	registry := handlers.NewConnectionRegistry()
	sessionHandler := handlers.NewSessionHandler(users, worldRepo, world, dispatcher, registry, logger)
	acceptor := telnet.NewAcceptor(cfg.Telnet, sessionHandler, logger)

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	lifecycle.Add("telnet", &server.FuncService{
		StartFn: func() error {
			return acceptor.ListenAndServe()
		},
		StopFn: func() {
			// Close live sessions first so Stop's drain does not wait
			// on idle players.
			registry.CloseAll()
			acceptor.Stop()
		},
	})

	logger.Info("server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("telnet_addr", cfg.Telnet.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
