package main

import (
	"context"
	"database/sql"

	"github.com/mcdev12/studyhall/go/internal/api"
	"github.com/mcdev12/studyhall/go/internal/auth"
	"github.com/mcdev12/studyhall/go/internal/cache"
	"github.com/mcdev12/studyhall/go/internal/gateway"
	"github.com/mcdev12/studyhall/go/internal/messages"
	"github.com/mcdev12/studyhall/go/internal/relay"
	"github.com/mcdev12/studyhall/go/internal/rooms"
	"github.com/mcdev12/studyhall/go/internal/timer"
	"github.com/mcdev12/studyhall/go/internal/timerlog"
	"github.com/mcdev12/studyhall/go/internal/users"
	"github.com/rs/zerolog/log"
)

// Services bundles every wired component of the application.
type Services struct {
	Auth    *api.AuthHandler
	Rooms   *api.RoomsHandler
	Gateway *gateway.Service

	replayCache *cache.ReplayCache
	eventRelay  *relay.JetStreamRelay
}

func setupServices(ctx context.Context, cfg *Config, db *sql.DB) (*Services, error) {
	userRepo := users.NewRepository(db)
	roomRepo := rooms.NewRepository(db)
	msgRepo := messages.NewRepository(db)
	timerRepo := timerlog.NewRepository(db)

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		AccessTokenDuration: cfg.tokenDuration(),
		Issuer:              cfg.Auth.Issuer,
	})
	hasher := auth.NewPasswordHasher()

	engine := timer.NewEngine()

	svcs := &Services{}

	// Redis-backed replay cache and JetStream relay are optional; the gateway
	// degrades to Postgres-only replay and no firehose without them.
	var replayCache gateway.ReplayCache
	if cfg.Redis.Enabled {
		rc, err := cache.NewReplayCache(ctx, cache.Config{
			Addr:   cfg.Redis.Addr,
			DB:     cfg.Redis.DB,
			Prefix: cfg.Redis.Prefix,
			Limit:  cfg.Gateway.ReplayLimit,
			TTL:    cache.DefaultConfig().TTL,
		})
		if err != nil {
			return nil, err
		}
		svcs.replayCache = rc
		replayCache = rc
		log.Info().Str("addr", cfg.Redis.Addr).Msg("replay cache enabled")
	}

	var eventRelay gateway.EventRelay
	if cfg.NATS.Enabled {
		relayCfg := relay.DefaultConfig()
		relayCfg.URL = cfg.NATS.URL
		relayCfg.StreamName = cfg.NATS.StreamName
		relayCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		jr, err := relay.NewJetStreamRelay(relayCfg)
		if err != nil {
			return nil, err
		}
		svcs.eventRelay = jr
		eventRelay = jr
		log.Info().Str("url", cfg.NATS.URL).Msg("event relay enabled")
	}

	gwConfig := gateway.DefaultConfig()
	gwConfig.ReplayLimit = cfg.Gateway.ReplayLimit
	svcs.Gateway = gateway.NewService(gwConfig, gateway.Deps{
		Tokens:   jwtManager,
		Users:    userRepo,
		Rooms:    roomRepo,
		Messages: msgRepo,
		Engine:   engine,
		Cache:    replayCache,
		Relay:    eventRelay,
	})

	svcs.Auth = api.NewAuthHandler(userRepo, jwtManager, jwtManager, hasher)
	svcs.Rooms = api.NewRoomsHandler(roomRepo, msgRepo, timerRepo, userRepo, engine, jwtManager)

	return svcs, nil
}

// Close releases the optional external connections.
func (s *Services) Close() {
	if s.replayCache != nil {
		if err := s.replayCache.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close replay cache")
		}
	}
	if s.eventRelay != nil {
		if err := s.eventRelay.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close event relay")
		}
	}
}
