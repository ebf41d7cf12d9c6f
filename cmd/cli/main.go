package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	postgresRepo "github.com/finvoice/ledgerd/internal/adapter/repository/postgres"
	"github.com/finvoice/ledgerd/internal/domain"
	"github.com/finvoice/ledgerd/internal/infrastructure/config"
	"github.com/finvoice/ledgerd/internal/infrastructure/postgres"
	"github.com/finvoice/ledgerd/internal/usecase"
)

var timeout time.Duration

func main() {
	rootCmd := &cobra.Command{
		Use:   "ledgerd-cli",
		Short: "ledgerd admin tool",
		Long:  `Administrative commands for the ledgerd transfer engine.`,
	}

	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}

				return postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}

				return postgres.RunMigrationsDown(cfg.DatabaseURL, cfg.MigrationsPath)
			},
		},
	)
	rootCmd.AddCommand(migrateCmd)

	reaperCmd := &cobra.Command{
		Use:   "reaper",
		Short: "Timeout reaper operations",
	}
	reaperCmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Void expired pending transfers once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *engine) error {
				voided, err := e.reaper.SweepExpired(ctx, e.cfg.ReaperBatchSize)
				if err != nil {
					return err
				}

				fmt.Printf("voided %d expired pending transfers\n", voided)

				return nil
			})
		},
	})
	rootCmd.AddCommand(reaperCmd)

	transferCmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer queries",
	}
	transferCmd.AddCommand(&cobra.Command{
		Use:   "get <tenant-id> <transfer-id>",
		Short: "Print a transfer as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *engine) error {
				transfers, err := e.processor.GetTransfersByID(ctx, args[0], []string{args[1]})
				if err != nil {
					return err
				}

				if transfers[0] == nil {
					return domain.ErrTransferNotFound
				}

				return printJSON(transfers[0])
			})
		},
	})
	rootCmd.AddCommand(transferCmd)

	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account queries",
	}
	accountCmd.AddCommand(&cobra.Command{
		Use:   "get <tenant-id> <account-id>",
		Short: "Print an account's balance counters as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *engine) error {
				account, err := e.accounts.GetByID(ctx, args[0], args[1])
				if err != nil {
					return err
				}

				return printJSON(account)
			})
		},
	})
	rootCmd.AddCommand(accountCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// engine bundles the wired-up components the CLI commands need.
type engine struct {
	cfg       *config.Config
	processor *usecase.TransferProcessor
	reaper    *usecase.TimeoutReaper
	accounts  *postgresRepo.AccountRepository
}

func withEngine(fn func(ctx context.Context, e *engine) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	transferRepo := postgresRepo.NewTransferRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	tenantRepo := postgresRepo.NewTenantRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier(nil)

	// The CLI runs without Redis; the transfers table primary key still
	// guarantees at-most-once application.
	guard := usecase.NewIdempotencyGuard(noopStore{}, cfg.IdempotencyTTL)

	processor := usecase.NewTransferProcessor(
		txManager, accountRepo, transferRepo, ledgerRepo, tenantRepo,
		guard, retrier,
		domain.CodeRange{Min: cfg.CodeMin, Max: cfg.CodeMax},
		nil, nil,
	)
	timeoutReaper := usecase.NewTimeoutReaper(transferRepo, processor, idGen, nil, nil)

	return fn(ctx, &engine{
		cfg:       cfg,
		processor: processor,
		reaper:    timeoutReaper,
		accounts:  accountRepo,
	})
}

type noopStore struct{}

func (noopStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, nil
}

func (noopStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}
