package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liquida-dev/liquida/internal/store"
)

// migrator is implemented by stores with a schema to apply.
type migrator interface {
	Migrate(ctx context.Context) error
}

var _ migrator = (*store.Postgres)(nil)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			s, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := runMigrate(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func runMigrate(ctx context.Context, s store.Store) error {
	m, ok := s.(migrator)
	if !ok {
		return nil
	}
	return m.Migrate(ctx)
}
