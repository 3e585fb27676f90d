package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appcfg "github.com/park285/tictac-server/internal/config"
	"github.com/park285/tictac-server/internal/dispatch"
	"github.com/park285/tictac-server/internal/httpapi"
	"github.com/park285/tictac-server/internal/obslog"
	"github.com/park285/tictac-server/internal/room"
	"github.com/park285/tictac-server/internal/session"
	"github.com/park285/tictac-server/internal/storebuilder"
	"github.com/park285/tictac-server/internal/transport"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := storebuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_init_failed", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store_close_failed", zap.Error(err))
		}
	}()

	sessions := session.NewManager(st, session.WithBcryptCost(cfg.BcryptCost))
	rooms := room.NewManager(st)
	d := dispatch.New(sessions, rooms, st, dispatch.Options{
		ChatLogLimit:     cfg.ChatLogLimit,
		ChatLogMax:       cfg.ChatLogMax,
		LeaderboardLimit: cfg.LeaderboardLimit,
	})

	type server struct {
		name string
		run  func(context.Context) error
	}
	servers := []server{{"tcp", func(ctx context.Context) error {
		return transport.NewTCPServer(d, transport.WithMaxLineBytes(cfg.MaxLineBytes)).ListenAndServe(ctx, cfg.ListenAddr)
	}}}
	if cfg.WSAddr != "" {
		servers = append(servers, server{"ws", func(ctx context.Context) error {
			return transport.NewWSServer(d, transport.WithMaxLineBytes(cfg.MaxLineBytes)).ListenAndServe(ctx, cfg.WSAddr)
		}})
	}
	if cfg.HTTPAddr != "" {
		servers = append(servers, server{"http", func(ctx context.Context) error {
			return httpapi.New(rooms, sessions, st, cfg.LeaderboardLimit).ListenAndServe(ctx, cfg.HTTPAddr)
		}})
	}

	// The first server to fail takes the others down with it.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, len(servers))
	for _, s := range servers {
		go func() {
			err := s.run(runCtx)
			if err != nil {
				logger.Error("server_failed", zap.String("server", s.name), zap.Error(err))
				cancel()
			}
			done <- err
		}()
	}
	logger.Info("server_started",
		zap.String("listen", cfg.ListenAddr),
		zap.String("ws", cfg.WSAddr),
		zap.String("http", cfg.HTTPAddr),
		zap.String("store", cfg.StoreBackend))

	var failed bool
	for range servers {
		if err := <-done; err != nil {
			failed = true
		}
	}
	logger.Info("server_stopped", zap.Int("rooms", rooms.Count()))
	if failed {
		_ = logger.Sync()
		_ = st.Close()
		log.Fatal("server exited with errors")
	}
}
