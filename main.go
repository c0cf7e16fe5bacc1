package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KBesada24/test-suite-manager/config"
	"github.com/KBesada24/test-suite-manager/repository"
	"github.com/KBesada24/test-suite-manager/services"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// cliOptions holds the persistent flags and the configuration they produce
type cliOptions struct {
	configPath string
	envFile    string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:               "test-suite-manager",
		Short:             "Multi-tenant test suite and test case manager",
		SilenceUsage:      true,
		PersistentPreRunE: opts.load,
		RunE:              opts.runServe,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and WebSocket server",
			RunE:  opts.runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the database schema",
			RunE:  opts.runMigrate,
		},
		newImportCmd(opts),
		newExportCmd(opts),
		newTreeCmd(opts),
	)
	return rootCmd
}

// load reads the .env file and the configuration and sets up the logger
func (o *cliOptions) load(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", o.envFile, err)
	}

	path := o.configPath
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
	o.cfg = cfg
	return nil
}

// openRepository connects to the configured database and applies the schema
func (o *cliOptions) openRepository(ctx context.Context) (*repository.Repository, error) {
	repo, err := repository.Open(o.cfg.DatabaseDriver, o.cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	repo.SetMaxOpenConns(o.cfg.DatabaseMaxOpenConns)

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

func (o *cliOptions) runMigrate(cmd *cobra.Command, args []string) error {
	repo, err := o.openRepository(cmd.Context())
	if err != nil {
		return err
	}
	defer repo.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", repo.Driver())
	return nil
}

// runServe runs the server, the websocket hub and the invitation sweeper
// until SIGINT or SIGTERM, then shuts them down together
func (o *cliOptions) runServe(cmd *cobra.Command, args []string) error {
	cfg := o.cfg
	logger := utils.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := o.openRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	logger.Info("Starting Test Suite Manager", map[string]interface{}{
		"version":     appVersion,
		"environment": cfg.Environment,
		"port":        cfg.Port,
		"database":    repo.Driver(),
	})

	a := newApplication(cfg, repo)
	g, gctx := errgroup.WithContext(ctx)

	if a.hub != nil {
		g.Go(func() error {
			a.hub.Run(gctx)
			return nil
		})
	}

	if cfg.EnableInvitationSweeper {
		sweeper, err := services.NewInvitationSweeper(a.invitations, cfg.InvitationSweepCron)
		if err != nil {
			return err
		}
		sweeper.Start()
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return sweeper.Stop(stopCtx)
		})
	}

	g.Go(func() error {
		address := cfg.GetServerAddress()
		logger.Info("Server starting", map[string]interface{}{
			"address":     address,
			"environment": cfg.Environment,
		})
		if err := a.fiber.Listen(address); err != nil {
			return fmt.Errorf("server failed on %s: %w", address, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.fiber.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", err)
		return err
	}

	logger.Info("Server shutdown completed successfully")
	return nil
}
