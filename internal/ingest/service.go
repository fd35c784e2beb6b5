// Package ingest runs a file through parsing, import bookkeeping and
// batch persistence.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/liquida-dev/liquida/internal/importer"
	"github.com/liquida-dev/liquida/internal/metrics"
	"github.com/liquida-dev/liquida/internal/model"
	"github.com/liquida-dev/liquida/internal/persist"
	"github.com/liquida-dev/liquida/internal/store"
)

var (
	// ErrNoRecords is returned when a file yields no importable record.
	ErrNoRecords = errors.New("no records to import")
	// ErrStopped is returned when a stop was requested before persistence began.
	ErrStopped = errors.New("import stopped")
)

// Service imports acquirer files.
type Service struct {
	store  store.Store
	parser importer.Parser
	engine *persist.Engine
	log    zerolog.Logger
}

// NewService creates an import Service.
func NewService(s store.Store, p importer.Parser, e *persist.Engine, log zerolog.Logger) *Service {
	return &Service{store: s, parser: p, engine: e, log: log}
}

// Request describes one file to import.
type Request struct {
	Filename string
	Content  []byte
	UserID   string
	Progress persist.Progress
	Session  *persist.Session
}

// Report is the outcome of an import.
type Report struct {
	Import model.ImportRecord `json:"import"`
	Parse  importer.Result    `json:"parse"`
	Result model.BatchResult  `json:"result"`
}

// Parse parses content without touching the store.
func (s *Service) Parse(content []byte) importer.Result {
	return s.parser.Parse(content)
}

// Import parses req.Content, records a pending import, persists the records
// and sets the import's terminal status. The returned Report carries the
// parse diagnostics even when the error is non-nil.
func (s *Service) Import(ctx context.Context, req Request) (Report, error) {
	log := s.log.With().Str("file", req.Filename).Logger()

	rep := Report{Parse: s.parser.Parse(req.Content)}
	log.Info().
		Int("rows", rep.Parse.Rows).
		Int("records", len(rep.Parse.Records)).
		Int("diagnostics", len(rep.Parse.Diagnostics)).
		Msg("parsed file")
	if len(rep.Parse.Records) == 0 {
		return rep, fmt.Errorf("%s: %w", req.Filename, ErrNoRecords)
	}
	if req.Session != nil && req.Session.StopRequested() {
		return rep, ErrStopped
	}

	imp, err := s.store.CreateImport(ctx, model.ImportRecord{
		UserID:   req.UserID,
		Filename: req.Filename,
		Status:   model.ImportPending,
	})
	if err != nil {
		return rep, fmt.Errorf("creating import record: %w", err)
	}
	rep.Import = imp

	records := make([]model.TransactionRecord, len(rep.Parse.Records))
	for i, r := range rep.Parse.Records {
		r.ImportID = imp.ID
		r.UserID = req.UserID
		records[i] = r
	}

	rep.Result = s.engine.Run(ctx, records, req.Progress, req.Session)
	status := rep.Result.Status()

	// The status update must land even if the caller gave up mid-run.
	if err := s.store.UpdateImportStatus(context.WithoutCancel(ctx), imp.ID, status, rep.Result.Inserted); err != nil {
		return rep, fmt.Errorf("updating import status: %w", err)
	}
	rep.Import.Status = status
	rep.Import.RowsImported = rep.Result.Inserted
	metrics.ImportsTotal.WithLabelValues(string(status)).Inc()

	log.Info().
		Str("import_id", imp.ID).
		Str("status", string(status)).
		Int("inserted", rep.Result.Inserted).
		Int("duplicates", rep.Result.Duplicates).
		Int("errors", rep.Result.Errors).
		Int("skipped", rep.Result.Skipped).
		Msg("import finished")
	return rep, nil
}

// ImportFile reads path and imports it under its base name.
func (s *Service) ImportFile(ctx context.Context, path, userID string, progress persist.Progress) (Report, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return s.Import(ctx, Request{
		Filename: filepath.Base(path),
		Content:  content,
		UserID:   userID,
		Progress: progress,
	})
}

// InboxOutcome pairs an inbox file with its import outcome.
type InboxOutcome struct {
	File   importer.FileInfo
	Report Report
	Err    error
	Moved  bool
}

// ProcessInbox imports every CSV file in dir. Files whose import finished
// without errors or cancellation are moved to dir/processed.
func (s *Service) ProcessInbox(ctx context.Context, dir, userID string) ([]InboxOutcome, error) {
	files, err := importer.Scan(dir)
	if err != nil {
		return nil, err
	}

	var out []InboxOutcome
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rep, err := s.ImportFile(ctx, f.Path, userID, nil)
		o := InboxOutcome{File: f, Report: rep, Err: err}
		if err == nil && movable(rep.Import.Status) {
			if err := importer.MarkProcessed(dir, f.Name); err != nil {
				o.Err = err
			} else {
				o.Moved = true
			}
		}
		out = append(out, o)
	}
	return out, nil
}

func movable(status model.ImportStatus) bool {
	switch status {
	case model.ImportSuccess, model.ImportPartial, model.ImportDuplicate:
		return true
	}
	return false
}
