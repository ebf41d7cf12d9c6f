package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/finvoice/ledgerd/internal/adapter/http"
	postgresRepo "github.com/finvoice/ledgerd/internal/adapter/repository/postgres"
	redisRepo "github.com/finvoice/ledgerd/internal/adapter/repository/redis"
	"github.com/finvoice/ledgerd/internal/domain"
	"github.com/finvoice/ledgerd/internal/infrastructure/config"
	"github.com/finvoice/ledgerd/internal/infrastructure/logging"
	"github.com/finvoice/ledgerd/internal/infrastructure/metrics"
	"github.com/finvoice/ledgerd/internal/infrastructure/postgres"
	"github.com/finvoice/ledgerd/internal/infrastructure/reaper"
	"github.com/finvoice/ledgerd/internal/infrastructure/redis"
	"github.com/finvoice/ledgerd/internal/usecase"
)

func main() {
	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	slogger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	m := metrics.New()

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	transferRepo := postgresRepo.NewTransferRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	tenantRepo := postgresRepo.NewTenantRepository(pool)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier(m)

	// Initialize the engine
	guard := usecase.NewIdempotencyGuard(idempotencyStore, cfg.IdempotencyTTL)
	processor := usecase.NewTransferProcessor(
		txManager, accountRepo, transferRepo, ledgerRepo, tenantRepo,
		guard, retrier,
		domain.CodeRange{Min: cfg.CodeMin, Max: cfg.CodeMax},
		m, slogger,
	)
	timeoutReaper := usecase.NewTimeoutReaper(transferRepo, processor, idGen, m, slogger)

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()

	go func() {
		sweeper := reaper.New(reaper.Config{
			Sweeper:   timeoutReaper,
			Logger:    slogger,
			BatchSize: cfg.ReaperBatchSize,
			Interval:  cfg.ReaperInterval,
		})
		if err := sweeper.Start(reaperCtx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("reaper stopped")
		}
	}()

	// Ops listener: health and metrics only
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		Postgres: pool,
		Redis: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.OpsPort),
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.OpsPort).Msg("starting ops listener")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ops listener failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")
	stopReaper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.OpsShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("ops listener forced to shutdown")
	}

	log.Info().Msg("stopped")
}
