package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Ruthvikraj007/backend-buddies/internal/auth"
	"github.com/Ruthvikraj007/backend-buddies/internal/config"
	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
	"github.com/Ruthvikraj007/backend-buddies/internal/ratelimit"
	"github.com/Ruthvikraj007/backend-buddies/internal/relay"
	"github.com/Ruthvikraj007/backend-buddies/internal/server"
	"github.com/Ruthvikraj007/backend-buddies/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("configuration error")
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var verifier auth.Verifier
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connection failed")
		}
		cancel()
		defer rdb.Close()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
		verifier = auth.NewRedisVerifier(rdb)
	} else {
		verifier, err = auth.NewTokenVerifier(cfg.AuthPublicKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid auth public key")
		}
	}

	registry := presence.NewRegistry()
	broadcaster := relay.NewBroadcaster(registry, logger)
	router := relay.NewRouter(registry, logger)
	calls := relay.NewCallRelay(router, logger)

	var envelopes *ratelimit.Limiter
	if cfg.EnvelopesPerSecond > 0 {
		envelopes = ratelimit.New(cfg.EnvelopesPerSecond, time.Second)
	}
	dispatcher := relay.NewDispatcher(router, calls, envelopes, logger)

	var connOpts []ws.Option
	if cfg.MaxConns > 0 {
		connOpts = append(connOpts, ws.WithMaxConns(cfg.MaxConns))
	}
	if cfg.IdleTimeout > 0 {
		connOpts = append(connOpts, ws.WithIdleTimeout(cfg.IdleTimeout))
	}
	conns := ws.NewConnManager(logger, connOpts...)

	var handshakes *ratelimit.Limiter
	if cfg.HandshakesPerMinute > 0 {
		handshakes = ratelimit.New(cfg.HandshakesPerMinute, time.Minute)
	}
	handler := ws.NewHandler(verifier, registry, broadcaster, dispatcher, conns, handshakes, logger)

	srv := server.New(cfg.ListenAddr, handler, registry, conns, logger)
	logger.Info().Str("addr", cfg.ListenAddr).Str("env", cfg.Env).Msg("starting relay")
	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
