package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liquida-dev/liquida/internal/importer"
	"github.com/liquida-dev/liquida/internal/ingest"
	"github.com/liquida-dev/liquida/internal/persist"
)

func newImportCommand() *cobra.Command {
	var userID string
	var dryRun bool
	var inbox bool
	var format string

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import acquirer settlement CSV files",
		Args: func(cmd *cobra.Command, args []string) error {
			if inbox && len(args) > 0 {
				return errors.New("--inbox takes no file arguments")
			}
			if !inbox && len(args) == 0 {
				return errors.New("requires at least one file, or --inbox")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			registry := importer.DefaultRegistry(e.loc)
			parser := registry.Get(format)
			if parser == nil {
				return fmt.Errorf("unknown format %q (known: %s)", format, strings.Join(registry.Formats(), ", "))
			}
			if dryRun {
				files := args
				if inbox {
					scanned, err := importer.Scan(e.cfg.Import.InboxDir)
					if err != nil {
						return err
					}
					for _, f := range scanned {
						files = append(files, f.Path)
					}
				}
				return runDryRun(cmd.OutOrStdout(), parser, files)
			}

			s, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			engine := persist.NewEngine(s,
				persist.WithBatchSize(e.cfg.Import.BatchSize),
				persist.WithLogger(e.log),
			)
			svc := ingest.NewService(s, parser, engine, e.log)

			if inbox {
				return runInbox(cmd.Context(), cmd.OutOrStdout(), svc, e.cfg.Import.InboxDir, userID)
			}
			return runImport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), svc, args, userID)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner recorded on the import and its transactions")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and report without writing to the database")
	cmd.Flags().BoolVar(&inbox, "inbox", false, "import every CSV file in the configured inbox directory")
	cmd.Flags().StringVar(&format, "format", "acquirer", "layout of the input files")

	return cmd
}

func runDryRun(w io.Writer, parser importer.Parser, files []string) error {
	var failed int
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		res := parser.Parse(content)
		fmt.Fprintf(w, "%s: %s\n", filepath.Base(path), res.Summary())
		printMessages(w, res.Messages())
		if len(res.Records) == 0 {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files have nothing to import", failed, len(files))
	}
	return nil
}

func runImport(ctx context.Context, out, progressOut io.Writer, svc *ingest.Service, files []string, userID string) error {
	var failed int
	for _, path := range files {
		name := filepath.Base(path)
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		progress := make(chan int, 1)
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			for pct := range progress {
				fmt.Fprintf(progressOut, "\r%s: %3d%%", name, pct)
			}
		}()

		session := &persist.Session{}
		stop := context.AfterFunc(ctx, session.RequestStop)
		rep, err := svc.Import(ctx, ingest.Request{
			Filename: name,
			Content:  content,
			UserID:   userID,
			Progress: persist.ToChannel(progress),
			Session:  session,
		})
		stop()
		close(progress)
		<-printed
		if rep.Import.ID != "" {
			fmt.Fprintln(progressOut)
		}

		printReport(out, name, rep, err)
		if errors.Is(err, ingest.ErrStopped) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func runInbox(ctx context.Context, w io.Writer, svc *ingest.Service, dir, userID string) error {
	outcomes, err := svc.ProcessInbox(ctx, dir, userID)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintf(w, "No CSV files in %s\n", dir)
		return nil
	}

	var failed int
	for _, o := range outcomes {
		printReport(w, o.File.Name, o.Report, o.Err)
		if o.Moved {
			fmt.Fprintf(w, "  moved to %s\n", filepath.Join(dir, importer.ProcessedDir))
		}
		if o.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(outcomes))
	}
	return nil
}

func printReport(w io.Writer, name string, rep ingest.Report, err error) {
	if rep.Import.ID != "" {
		r := rep.Result
		fmt.Fprintf(w, "%s: %s (%d inserted, %d duplicates, %d errors", name, rep.Import.Status, r.Inserted, r.Duplicates, r.Errors)
		if r.Skipped > 0 {
			fmt.Fprintf(w, ", %d skipped", r.Skipped)
		}
		fmt.Fprintln(w, ")")
	}
	if err != nil {
		fmt.Fprintf(w, "  error: %v\n", err)
	}
	printMessages(w, rep.Parse.Messages())
}

func printMessages(w io.Writer, msgs []string) {
	for _, m := range msgs {
		fmt.Fprintf(w, "  %s\n", m)
	}
}
