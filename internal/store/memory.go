package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liquida-dev/liquida/internal/id"
	"github.com/liquida-dev/liquida/internal/model"
)

// Memory is an in-process Store with the same uniqueness rules as Postgres.
// InsertMany is all-or-nothing.
type Memory struct {
	mu      sync.RWMutex
	records []model.TransactionRecord
	keys    map[string]bool
	imports map[string]model.ImportRecord
	now     func() time.Time
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		keys:    make(map[string]bool),
		imports: make(map[string]model.ImportRecord),
		now:     time.Now,
	}
}

func (m *Memory) Close() {}

func (m *Memory) InsertMany(_ context.Context, records []model.TransactionRecord) ([]model.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(records))
	for i, r := range records {
		k := r.Key()
		if m.keys[k] || seen[k] {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.TransactionID, ErrDuplicate)
		}
		seen[k] = true
	}

	out := make([]model.TransactionRecord, 0, len(records))
	for _, r := range records {
		out = append(out, m.insertLocked(r))
	}
	return out, nil
}

func (m *Memory) InsertOne(_ context.Context, record model.TransactionRecord) (*model.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys[record.Key()] {
		return nil, ErrDuplicate
	}
	r := m.insertLocked(record)
	return &r, nil
}

func (m *Memory) insertLocked(r model.TransactionRecord) model.TransactionRecord {
	r.ID = id.New()
	r.CreatedAt = m.now().UTC()
	m.records = append(m.records, r)
	m.keys[r.Key()] = true
	return r
}

func (m *Memory) Query(_ context.Context, q Query) ([]model.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := m.matchLocked(q)
	q.Offset = max(q.Offset, 0)
	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (m *Memory) Summarize(_ context.Context, q Query) (model.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return model.Summarize(m.matchLocked(q)), nil
}

// matchLocked returns copies of the matching records, newest first.
func (m *Memory) matchLocked(q Query) []model.TransactionRecord {
	var out []model.TransactionRecord
	for _, r := range m.records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TransactedAt.Equal(out[j].TransactedAt) {
			return out[i].TransactedAt.After(out[j].TransactedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) CreateImport(_ context.Context, imp model.ImportRecord) (model.ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if imp.ID == "" {
		imp.ID = id.New()
	}
	if imp.Status == "" {
		imp.Status = model.ImportPending
	}
	if imp.ImportedAt.IsZero() {
		imp.ImportedAt = m.now().UTC()
	}
	m.imports[imp.ID] = imp
	return imp, nil
}

func (m *Memory) UpdateImportStatus(_ context.Context, importID string, status model.ImportStatus, rowsImported int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	imp, ok := m.imports[importID]
	if !ok {
		return fmt.Errorf("import %s: %w", importID, ErrNotFound)
	}
	imp.Status = status
	imp.RowsImported = rowsImported
	m.imports[importID] = imp
	return nil
}

func (m *Memory) GetImport(_ context.Context, importID string) (model.ImportRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	imp, ok := m.imports[importID]
	if !ok {
		return model.ImportRecord{}, fmt.Errorf("import %s: %w", importID, ErrNotFound)
	}
	return imp, nil
}

func (m *Memory) ImportHistory(_ context.Context, limit int) ([]model.ImportRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	out := make([]model.ImportRecord, 0, len(m.imports))
	for _, imp := range m.imports {
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ImportedAt.Equal(out[j].ImportedAt) {
			return out[i].ImportedAt.After(out[j].ImportedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
