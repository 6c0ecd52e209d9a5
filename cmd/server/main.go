package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/voxchat/server/internal/adapters/http"
	"github.com/voxchat/server/internal/config"
	"github.com/voxchat/server/internal/hub"
	"github.com/voxchat/server/internal/registry"
	"github.com/voxchat/server/internal/roomstate"
	"github.com/voxchat/server/internal/store"
	"github.com/voxchat/server/internal/transport/ws"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var st store.Store
	switch cfg.Store {
	case "memory":
		st = store.NewMemory()
		log.Info().Msg("using in-memory store")
	default:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
		}
		st = store.NewRedis(client, cfg.KeyPrefix)
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	}

	reg := registry.New(st, cfg.ConnectionTTL, cfg.PeersTTL)
	rooms := roomstate.New(st, roomstate.TTLs{
		ChatLog: cfg.ChatLogTTL,
		Members: cfg.MembersTTL,
		Peers:   cfg.PeersTTL,
	})

	srv := ws.NewServer(cfg.ReadLimit, cfg.PingPeriod)
	h := hub.New(srv, reg, rooms)
	srv.BindSession(h)

	r := router.SetupRouter(ctx, cfg, srv, st)
	addr := fmt.Sprintf(":%d", cfg.Port)

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("VoxChat server started")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
