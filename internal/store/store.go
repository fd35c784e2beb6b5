// Package store persists transactions and imports. Postgres is the
// production backend; Memory backs tests and dry runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/liquida-dev/liquida/internal/model"
)

var (
	// ErrDuplicate is returned when a record's (transaction id, acquirer
	// transaction id) pair already exists.
	ErrDuplicate = errors.New("duplicate transaction")
	ErrNotFound  = errors.New("not found")
)

// Transactions is the record side of the store.
type Transactions interface {
	// InsertMany inserts records in one statement and returns the rows the
	// store accepted. It may return fewer rows than submitted.
	InsertMany(ctx context.Context, records []model.TransactionRecord) ([]model.TransactionRecord, error)
	// InsertOne returns ErrDuplicate on a uniqueness violation. A nil record
	// with a nil error means the store skipped the row.
	InsertOne(ctx context.Context, record model.TransactionRecord) (*model.TransactionRecord, error)
	// Query returns the records matching q, newest first, honoring Offset and Limit.
	Query(ctx context.Context, q Query) ([]model.TransactionRecord, error)
	// Summarize aggregates every record matching q, ignoring Offset and Limit.
	Summarize(ctx context.Context, q Query) (model.Summary, error)
}

// Imports is the import-history side of the store.
type Imports interface {
	CreateImport(ctx context.Context, imp model.ImportRecord) (model.ImportRecord, error)
	UpdateImportStatus(ctx context.Context, id string, status model.ImportStatus, rowsImported int) error
	GetImport(ctx context.Context, id string) (model.ImportRecord, error)
	// ImportHistory returns the most recent imports, newest first.
	ImportHistory(ctx context.Context, limit int) ([]model.ImportRecord, error)
}

// Store combines both sides.
type Store interface {
	Transactions
	Imports
	Close()
}

// Query selects transactions. Zero fields do not constrain.
type Query struct {
	From       *time.Time // inclusive
	To         *time.Time // inclusive
	Acquirers  []string
	Modalities []model.Modality
	ImportID   string

	Offset int
	Limit  int // 0 means no limit
}

// Matches reports whether rec satisfies the filtering fields of q.
func (q Query) Matches(rec model.TransactionRecord) bool {
	if q.From != nil && rec.TransactedAt.Before(*q.From) {
		return false
	}
	if q.To != nil && rec.TransactedAt.After(*q.To) {
		return false
	}
	if q.ImportID != "" && rec.ImportID != q.ImportID {
		return false
	}
	if len(q.Acquirers) > 0 && !contains(q.Acquirers, rec.Acquirer) {
		return false
	}
	if len(q.Modalities) > 0 && !contains(q.Modalities, rec.Modality) {
		return false
	}
	return true
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// DefaultHistoryLimit is used when ImportHistory is called with limit <= 0.
const DefaultHistoryLimit = 20
