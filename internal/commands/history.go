package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/liquida-dev/liquida/internal/locale"
	"github.com/liquida-dev/liquida/internal/store"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent imports, newest first",
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

			imports, err := s.ImportHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(imports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No imports yet")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tIMPORTED AT\tFILE\tSTATUS\tROWS")
			for _, imp := range imports {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
					imp.ID,
					locale.FormatDateTime(imp.ImportedAt, e.loc),
					imp.Filename,
					imp.Status,
					imp.RowsImported,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", store.DefaultHistoryLimit, "number of imports to show")

	return cmd
}
