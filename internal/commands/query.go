package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/liquida-dev/liquida/internal/locale"
	"github.com/liquida-dev/liquida/internal/query"
	"github.com/liquida-dev/liquida/internal/store"
)

func newQueryCommand() *cobra.Command {
	var params query.Params
	var page, pageSize int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stored transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := params.Filter()
			if err != nil {
				return err
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

			res, err := newBuilder(e, s).Fetch(cmd.Context(), f, page, pageSize)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printResult(cmd.OutOrStdout(), res, e.loc)
		},
	}

	addFilterFlags(cmd, &params)
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per page (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}

func addFilterFlags(cmd *cobra.Command, p *query.Params) {
	cmd.Flags().StringVar(&p.StartDate, "start-date", "", "first day, YYYY-MM-DD or DD/MM/YYYY")
	cmd.Flags().StringVar(&p.EndDate, "end-date", "", "last day, inclusive")
	cmd.Flags().StringVar(&p.StartTime, "start-time", "", "earliest time of day, HH:MM (needs a date)")
	cmd.Flags().StringVar(&p.EndTime, "end-time", "", "latest time of day, HH:MM (needs a date)")
	cmd.Flags().StringSliceVar(&p.Acquirers, "acquirer", nil, "acquirer name; repeatable")
	cmd.Flags().StringSliceVar(&p.Modalities, "modality", nil, "DEBITO, CREDITO or PIX; repeatable")
}

func newBuilder(e *env, s store.Transactions) *query.Builder {
	return query.NewBuilder(s, e.loc,
		query.WithPageSize(e.cfg.Query.PageSize),
		query.WithFetchCap(e.cfg.Query.RefineFetchCap),
		query.WithLogger(e.log),
	)
}

func printResult(w io.Writer, res query.Result, loc *time.Location) error {
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "note: %s\n", d)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTRANSACTION\tESTABLISHMENT\tACQUIRER\tMODALITY\tGROSS\tNET")
	for _, r := range res.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			locale.FormatDateTime(r.TransactedAt, loc),
			r.TransactionID,
			r.Establishment,
			r.Acquirer,
			r.Modality,
			locale.FormatAmount(r.GrossAmount),
			locale.FormatAmount(r.NetAmount),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	pages := 1
	if res.PageSize > 0 && res.Total > 0 {
		pages = (res.Total + res.PageSize - 1) / res.PageSize
	}
	fmt.Fprintf(w, "\nPage %d of %d, %d transactions. Gross %s, net %s\n",
		res.Page, pages, res.Total,
		locale.FormatCurrency(res.Summary.Gross),
		locale.FormatCurrency(res.Summary.Net),
	)
	if res.Truncated {
		fmt.Fprintln(w, "warning: time-of-day filter ran over a truncated sample; narrow the date range")
	}
	return nil
}
