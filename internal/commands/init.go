package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/liquida-dev/liquida/internal/config"
	"github.com/liquida-dev/liquida/internal/importer"
)

func newInitCommand() *cobra.Command {
	var dsn string
	var timezone string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a default liquida.yaml and create the import inbox",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir, dsn, timezone); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized liquida at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA zone for file timestamps and filters")

	return cmd
}

func runInit(dir, dsn, timezone string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default()
	if dsn != "" {
		cfg.Database.DSN = dsn
	}
	if timezone != "" {
		cfg.Locale.Timezone = timezone
		if _, err := cfg.Location(); err != nil {
			return err
		}
	}

	inbox := filepath.Join(dir, cfg.Import.InboxDir, importer.ProcessedDir)
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", inbox, err)
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
