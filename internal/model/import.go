package model

import "time"

// ImportStatus represents the lifecycle state of an import.
type ImportStatus string

const (
	ImportPending   ImportStatus = "pending"
	ImportSuccess   ImportStatus = "success"
	ImportPartial   ImportStatus = "partial"
	ImportError     ImportStatus = "error"
	ImportDuplicate ImportStatus = "duplicate" // nothing new: every record already existed
	ImportEmpty     ImportStatus = "empty"     // nothing inserted, duplicated or failed
	ImportCancelled ImportStatus = "cancelled"
)

// Terminal reports whether s is a final status.
func (s ImportStatus) Terminal() bool {
	return s != ImportPending && s != ""
}

// ImportRecord is one file-ingestion attempt.
type ImportRecord struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id,omitempty"`
	Filename     string       `json:"filename"`
	Status       ImportStatus `json:"status"`
	RowsImported int          `json:"rows_imported"`
	ImportedAt   time.Time    `json:"imported_at"`
}

// BatchResult classifies every record submitted to a persistence run.
type BatchResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
	Skipped    int `json:"skipped"` // never dispatched because the run was stopped
}

// Total returns the number of records the result accounts for.
func (r BatchResult) Total() int {
	return r.Inserted + r.Duplicates + r.Errors + r.Skipped
}

// Status derives the terminal import status from a batch result.
//
//	errors  inserted  duplicates  skipped  status
//	>0      0         any         0        error
//	>0      >0        any         0        partial
//	0       >0        >0          0        partial
//	0       >0        0           0        success
//	0       0         >0          0        duplicate
//	0       0         0           0        empty
//	any     any       any         >0       cancelled
func (r BatchResult) Status() ImportStatus {
	switch {
	case r.Skipped > 0:
		return ImportCancelled
	case r.Errors > 0 && r.Inserted == 0:
		return ImportError
	case r.Errors > 0:
		return ImportPartial
	case r.Inserted > 0 && r.Duplicates > 0:
		return ImportPartial
	case r.Inserted > 0:
		return ImportSuccess
	case r.Duplicates > 0:
		return ImportDuplicate
	default:
		return ImportEmpty
	}
}
