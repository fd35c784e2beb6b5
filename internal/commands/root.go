package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/liquida-dev/liquida/internal/buildinfo"
	"github.com/liquida-dev/liquida/internal/config"
	"github.com/liquida-dev/liquida/internal/logger"
	"github.com/liquida-dev/liquida/internal/store"
)

// openStore connects to the configured database. Tests replace it.
var openStore = func(ctx context.Context, cfg *config.Config) (store.Store, error) {
	return store.NewPostgres(ctx, cfg.Database.DSN)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "liquida",
		Short:   "Acquirer settlement ingestion and transaction lookup",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.FileName, "path to liquida.yaml")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}

// env is what every database-backed command needs.
type env struct {
	cfg *config.Config
	loc *time.Location
	log zerolog.Logger
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return &env{cfg: cfg, loc: loc, log: log}, nil
}

func (e *env) open(ctx context.Context) (store.Store, error) {
	s, err := openStore(ctx, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}
