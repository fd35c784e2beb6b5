package store

import (
	"context"

	"github.com/liquida-dev/liquida/internal/model"
)

// MockStore is a Store for tests. Each call goes to the matching Fn field
// when set and to an in-memory store otherwise.
type MockStore struct {
	InsertManyFn         func(ctx context.Context, records []model.TransactionRecord) ([]model.TransactionRecord, error)
	InsertOneFn          func(ctx context.Context, record model.TransactionRecord) (*model.TransactionRecord, error)
	QueryFn              func(ctx context.Context, q Query) ([]model.TransactionRecord, error)
	SummarizeFn          func(ctx context.Context, q Query) (model.Summary, error)
	CreateImportFn       func(ctx context.Context, imp model.ImportRecord) (model.ImportRecord, error)
	UpdateImportStatusFn func(ctx context.Context, id string, status model.ImportStatus, rowsImported int) error
	GetImportFn          func(ctx context.Context, id string) (model.ImportRecord, error)
	ImportHistoryFn      func(ctx context.Context, limit int) ([]model.ImportRecord, error)

	Mem *Memory
}

// NewMockStore creates a MockStore backed by an empty Memory store.
func NewMockStore() *MockStore {
	return &MockStore{Mem: NewMemory()}
}

func (m *MockStore) Close() {}

// InsertMany implements Transactions.InsertMany
func (m *MockStore) InsertMany(ctx context.Context, records []model.TransactionRecord) ([]model.TransactionRecord, error) {
	if m.InsertManyFn != nil {
		return m.InsertManyFn(ctx, records)
	}
	return m.Mem.InsertMany(ctx, records)
}

// InsertOne implements Transactions.InsertOne
func (m *MockStore) InsertOne(ctx context.Context, record model.TransactionRecord) (*model.TransactionRecord, error) {
	if m.InsertOneFn != nil {
		return m.InsertOneFn(ctx, record)
	}
	return m.Mem.InsertOne(ctx, record)
}

// Query implements Transactions.Query
func (m *MockStore) Query(ctx context.Context, q Query) ([]model.TransactionRecord, error) {
	if m.QueryFn != nil {
		return m.QueryFn(ctx, q)
	}
	return m.Mem.Query(ctx, q)
}

// Summarize implements Transactions.Summarize
func (m *MockStore) Summarize(ctx context.Context, q Query) (model.Summary, error) {
	if m.SummarizeFn != nil {
		return m.SummarizeFn(ctx, q)
	}
	return m.Mem.Summarize(ctx, q)
}

// CreateImport implements Imports.CreateImport
func (m *MockStore) CreateImport(ctx context.Context, imp model.ImportRecord) (model.ImportRecord, error) {
	if m.CreateImportFn != nil {
		return m.CreateImportFn(ctx, imp)
	}
	return m.Mem.CreateImport(ctx, imp)
}

// UpdateImportStatus implements Imports.UpdateImportStatus
func (m *MockStore) UpdateImportStatus(ctx context.Context, id string, status model.ImportStatus, rowsImported int) error {
	if m.UpdateImportStatusFn != nil {
		return m.UpdateImportStatusFn(ctx, id, status, rowsImported)
	}
	return m.Mem.UpdateImportStatus(ctx, id, status, rowsImported)
}

// GetImport implements Imports.GetImport
func (m *MockStore) GetImport(ctx context.Context, id string) (model.ImportRecord, error) {
	if m.GetImportFn != nil {
		return m.GetImportFn(ctx, id)
	}
	return m.Mem.GetImport(ctx, id)
}

// ImportHistory implements Imports.ImportHistory
func (m *MockStore) ImportHistory(ctx context.Context, limit int) ([]model.ImportRecord, error) {
	if m.ImportHistoryFn != nil {
		return m.ImportHistoryFn(ctx, limit)
	}
	return m.Mem.ImportHistory(ctx, limit)
}
