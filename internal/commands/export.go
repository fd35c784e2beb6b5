package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/liquida-dev/liquida/internal/export"
	"github.com/liquida-dev/liquida/internal/model"
	"github.com/liquida-dev/liquida/internal/query"
	"github.com/liquida-dev/liquida/internal/store"
)

func newExportCommand() *cobra.Command {
	var params query.Params
	var out string
	var importID string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write transactions to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := params.Filter()
			if err != nil {
				return err
			}
			if importID != "" && (f.HasDate() || f.HasTime() || len(f.Acquirers) > 0 || len(f.Modalities) > 0) {
				return errors.New("--import cannot be combined with filter flags")
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			s, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			var records []model.TransactionRecord
			if importID != "" {
				records, err = importRecords(cmd.Context(), s, importID)
			} else {
				records, err = newBuilder(e, s).All(cmd.Context(), f)
			}
			if err != nil {
				return err
			}

			if out == "" {
				out = export.Filename(time.Now())
			} else if info, err := os.Stat(out); err == nil && info.IsDir() {
				out = filepath.Join(out, export.Filename(time.Now()))
			}
			if err := writeExport(out, records, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d transactions to %s\n", len(records), out)
			return nil
		},
	}

	addFilterFlags(cmd, &params)
	cmd.Flags().StringVar(&out, "out", "", "output file or directory (default transacoes_<timestamp>.csv)")
	cmd.Flags().StringVar(&importID, "import", "", "export the transactions of one import")

	return cmd
}

func importRecords(ctx context.Context, s store.Store, importID string) ([]model.TransactionRecord, error) {
	if _, err := s.GetImport(ctx, importID); err != nil {
		return nil, err
	}
	records, err := s.Query(ctx, store.Query{ImportID: importID})
	if err != nil {
		return nil, fmt.Errorf("loading import %s: %w", importID, err)
	}
	return records, nil
}

func writeExport(path string, records []model.TransactionRecord, e *env) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := export.WriteRecords(f, records, e.loc); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
