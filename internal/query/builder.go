package query

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/liquida-dev/liquida/internal/metrics"
	"github.com/liquida-dev/liquida/internal/model"
	"github.com/liquida-dev/liquida/internal/store"
)

const (
	DefaultPageSize = 50
	// DefaultFetchCap bounds the rows fetched for a time-of-day refinement.
	DefaultFetchCap = 1000
	// scanChunk is the page size used when walking a whole population.
	scanChunk = 1000
)

// Result is one page of a filtered query. Total, Records and Summary always
// describe the same effective filter.
type Result struct {
	Records     []model.TransactionRecord `json:"records"`
	Total       int                       `json:"total"`
	Summary     model.Summary             `json:"summary"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	Refined     bool                      `json:"refined"`
	Truncated   bool                      `json:"truncated"` // refinement ran over a capped sample
	Diagnostics []string                  `json:"diagnostics,omitempty"`
}

// Builder executes filters against a store.
type Builder struct {
	store    store.Transactions
	loc      *time.Location
	pageSize int
	fetchCap int
	log      zerolog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithPageSize sets the default page size. Values below 1 are ignored.
func WithPageSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// WithFetchCap sets the refinement fetch cap. 0 fetches the whole
// date-filtered population.
func WithFetchCap(n int) Option {
	return func(b *Builder) {
		if n >= 0 {
			b.fetchCap = n
		}
	}
}

// WithLogger sets the builder logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// NewBuilder creates a Builder interpreting dates and times in loc.
func NewBuilder(s store.Transactions, loc *time.Location, opts ...Option) *Builder {
	if loc == nil {
		loc = time.Local
	}
	b := &Builder{
		store:    s,
		loc:      loc,
		pageSize: DefaultPageSize,
		fetchCap: DefaultFetchCap,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Location returns the zone used for local dates and times.
func (b *Builder) Location() *time.Location { return b.loc }

// Fetch returns page (1-based) of the records matching f, newest first.
// pageSize <= 0 uses the builder default. On error the Result is zero.
func (b *Builder) Fetch(ctx context.Context, f Filter, page, pageSize int) (Result, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = b.pageSize
	}
	plan := Build(f, b.loc)

	var (
		res Result
		err error
	)
	if plan.Refine {
		res, err = b.refine(ctx, plan, page, pageSize)
	} else {
		res, err = b.server(ctx, plan, page, pageSize)
	}
	if err != nil {
		return Result{}, err
	}
	res.Page, res.PageSize = page, pageSize
	res.Diagnostics = plan.Diagnostics
	return res, nil
}

// All returns every record matching f, unpaginated. Refinement always walks
// the whole date-filtered population, ignoring the fetch cap.
func (b *Builder) All(ctx context.Context, f Filter) ([]model.TransactionRecord, error) {
	plan := Build(f, b.loc)
	rows, err := b.scan(ctx, plan.Query)
	if err != nil {
		return nil, err
	}
	if !plan.Refine {
		return rows, nil
	}
	return b.keep(plan, rows), nil
}

// server answers a date-only filter entirely in the store.
func (b *Builder) server(ctx context.Context, plan Plan, page, pageSize int) (Result, error) {
	metrics.QueriesTotal.WithLabelValues("server").Inc()

	q := plan.Query
	q.Offset, q.Limit = pageOffset(page, pageSize), pageSize
	rows, err := b.store.Query(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("querying transactions: %w", err)
	}
	sum, err := b.store.Summarize(ctx, plan.Query)
	if err != nil {
		return Result{}, fmt.Errorf("summarizing transactions: %w", err)
	}
	return Result{Records: rows, Total: sum.Count, Summary: sum}, nil
}

// refine fetches the date-filtered rows, applies the time-of-day window
// locally, then pages and totals the filtered set.
func (b *Builder) refine(ctx context.Context, plan Plan, page, pageSize int) (Result, error) {
	metrics.QueriesTotal.WithLabelValues("refine").Inc()

	var (
		rows      []model.TransactionRecord
		truncated bool
		err       error
	)
	if b.fetchCap == 0 {
		rows, err = b.scan(ctx, plan.Query)
	} else {
		q := plan.Query
		q.Limit = b.fetchCap + 1
		rows, err = b.store.Query(ctx, q)
		if len(rows) > b.fetchCap {
			rows, truncated = rows[:b.fetchCap], true
		}
	}
	if err != nil {
		return Result{}, fmt.Errorf("querying transactions: %w", err)
	}
	if truncated {
		metrics.RefineTruncatedTotal.Inc()
		b.log.Warn().Int("cap", b.fetchCap).Msg("time-of-day refinement ran over a truncated sample")
	}

	kept := b.keep(plan, rows)
	res := Result{
		Total:     len(kept),
		Summary:   model.Summarize(kept),
		Refined:   true,
		Truncated: truncated,
	}
	if start := pageOffset(page, pageSize); start < len(kept) {
		res.Records = kept[start:min(start+pageSize, len(kept))]
	}
	return res, nil
}

// pageOffset returns the index of the first row of page, saturating at
// math.MaxInt so a huge page number reads as past the end.
func pageOffset(page, pageSize int) int {
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}

// scan walks every row matching q in chunks.
func (b *Builder) scan(ctx context.Context, q store.Query) ([]model.TransactionRecord, error) {
	var all []model.TransactionRecord
	for offset := 0; ; offset += scanChunk {
		q.Offset, q.Limit = offset, scanChunk
		rows, err := b.store.Query(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("querying transactions: %w", err)
		}
		all = append(all, rows...)
		if len(rows) < scanChunk {
			return all, nil
		}
	}
}

func (b *Builder) keep(plan Plan, rows []model.TransactionRecord) []model.TransactionRecord {
	var kept []model.TransactionRecord
	for _, r := range rows {
		if plan.Matches(r.TransactedAt, b.loc) {
			kept = append(kept, r)
		}
	}
	return kept
}
