// Package persist writes parsed records to the store in sequential batches
// and classifies every record as inserted, duplicate, error or skipped.
package persist

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/liquida-dev/liquida/internal/metrics"
	"github.com/liquida-dev/liquida/internal/model"
	"github.com/liquida-dev/liquida/internal/store"
)

// DefaultBatchSize is the number of records sent per bulk insert.
const DefaultBatchSize = 100

// Progress percentages reported by Run.
const (
	ProgressStarted = 5
	ProgressCeiling = 95
	ProgressDone    = 100
)

// Engine persists records batch by batch. At most one batch is in flight.
type Engine struct {
	store     store.Transactions
	batchSize int
	log       zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize overrides DefaultBatchSize. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine writing to s.
func NewEngine(s store.Transactions, opts ...Option) *Engine {
	e := &Engine{store: s, batchSize: DefaultBatchSize, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run persists records and returns their classification. It never fails:
// every record ends up in exactly one of the result counters.
//
// progress may be nil. It receives ProgressStarted first, then one
// non-decreasing value per batch capped at ProgressCeiling, then
// ProgressDone, also when the run is stopped early.
//
// Stop requests on session, and ctx cancellation, are honored between
// batches only. A batch already handed to the store runs to completion and
// the remaining records are counted as skipped.
func (e *Engine) Run(ctx context.Context, records []model.TransactionRecord, progress Progress, session *Session) model.BatchResult {
	if session == nil {
		session = &Session{}
	}
	session.active.Store(true)
	defer session.active.Store(false)

	report := monotonic(progress)
	report(ProgressStarted)

	var (
		res      model.BatchResult
		total    = batchCount(len(records), e.batchSize)
		storeCtx = context.WithoutCancel(ctx)
	)
	for k := 0; k < total; k++ {
		start := k * e.batchSize
		if session.StopRequested() || ctx.Err() != nil {
			res.Skipped += len(records) - start
			e.log.Warn().
				Int("batch", k+1).
				Int("skipped", res.Skipped).
				Msg("persistence stopped before completion")
			break
		}

		end := min(start+e.batchSize, len(records))
		e.persistBatch(storeCtx, k+1, records[start:end], &res)
		report(min(ProgressStarted+(k+1)*(ProgressCeiling-ProgressStarted)/total, ProgressCeiling))
	}

	report(ProgressDone)
	metrics.RecordsTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
	return res
}

// persistBatch tries one bulk insert and falls back to per-record inserts
// when it fails, so duplicates can be told apart from real errors.
func (e *Engine) persistBatch(ctx context.Context, n int, batch []model.TransactionRecord, res *model.BatchResult) {
	began := time.Now()
	defer func() { metrics.BatchLatency.Observe(time.Since(began).Seconds()) }()

	inserted, err := e.store.InsertMany(ctx, batch)
	if err == nil {
		accepted := min(len(inserted), len(batch))
		dropped := len(batch) - accepted
		res.Inserted += accepted
		res.Duplicates += dropped
		metrics.BatchesTotal.WithLabelValues("bulk").Inc()
		metrics.RecordsTotal.WithLabelValues("inserted").Add(float64(accepted))
		metrics.RecordsTotal.WithLabelValues("duplicate").Add(float64(dropped))
		if dropped > 0 {
			e.log.Warn().Int("batch", n).Int("dropped", dropped).Msg("store accepted fewer rows than submitted")
		}
		return
	}

	e.log.Debug().Err(err).Int("batch", n).Int("size", len(batch)).Msg("bulk insert failed, retrying records individually")
	metrics.BatchesTotal.WithLabelValues("fallback").Inc()
	for _, rec := range batch {
		outcome := e.insertOne(ctx, rec)
		switch outcome {
		case outcomeInserted:
			res.Inserted++
		case outcomeDuplicate:
			res.Duplicates++
		default:
			res.Errors++
		}
		metrics.RecordsTotal.WithLabelValues(string(outcome)).Inc()
	}
}

type outcome string

const (
	outcomeInserted  outcome = "inserted"
	outcomeDuplicate outcome = "duplicate"
	outcomeError     outcome = "error"
)

func (e *Engine) insertOne(ctx context.Context, rec model.TransactionRecord) outcome {
	got, err := e.store.InsertOne(ctx, rec)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return outcomeDuplicate
	case err != nil:
		e.log.Warn().Err(err).Str("transaction_id", rec.TransactionID).Msg("insert failed")
		return outcomeError
	case got == nil:
		// Store skipped the row without reporting a conflict.
		return outcomeDuplicate
	default:
		return outcomeInserted
	}
}

func batchCount(n, size int) int {
	return (n + size - 1) / size
}
