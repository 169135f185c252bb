// Command gatewayd runs a Discord gateway front-end pool: it holds one
// websocket session per shard in this pool's range, serializes forwarded
// dispatches into a uniform envelope, and publishes them onto NATS
// JetStream for downstream consumers.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/0xHoneyJar/loa-freeside/internal/gateway"
)

func main() {
	cfg, err := gateway.LoadConfig()
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg)

	logger.Info().
		Uint64("pool_id", cfg.PoolID).
		Uint64("total_shards", cfg.TotalShards).
		Msg("starting gateway pool")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := gateway.NewPrometheusMetrics()

	publisher, err := connectPublisher(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Warn().Err(err).Msg("starting without a broker connection; events will not be published")
	}

	pool, err := gateway.NewPool(
		cfg.PoolID,
		cfg.TotalShards,
		func(shardID uint32) gateway.GatewayShard {
			return gateway.NewDiscordShard(shardID, cfg.DiscordToken, cfg.Intents(), cfg.TotalShards, logger)
		},
		publisher,
		metrics,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct shard pool")
	}

	health := gateway.NewHealthServer(pool, publisher, metrics)

	httpServer := newHTTPServer(cfg.HTTPPort, health, logger)

	errCh := make(chan error, 2)

	go func() {
		errCh <- pool.Run(ctx)
	}()

	go func() {
		errCh <- httpServer.ListenAndServe(":" + cfg.HTTPPort)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("component exited unexpectedly")
		}
	}

	pool.Shutdown()
	cancel()

	if publisher != nil {
		publisher.Close()
	}

	_ = httpServer.Shutdown()
}

func connectPublisher(
	ctx context.Context,
	cfg *gateway.Config,
	logger zerolog.Logger,
	metrics gateway.Metrics,
) (*gateway.Publisher, error) {
	if len(cfg.NATSURLs) == 0 {
		metrics.SetNATSConnected(false)

		return nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	publisher, err := gateway.ConnectPublisher(connectCtx, cfg.NATSURLs)
	if err != nil {
		metrics.SetNATSConnected(false)

		return nil, err
	}

	metrics.SetNATSConnected(true)

	return publisher, nil
}

func newLogger(cfg *gateway.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer io.Writer = os.Stdout

	if path := os.Getenv("LOG_FILE"); path != "" {
		writer = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
		})
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
