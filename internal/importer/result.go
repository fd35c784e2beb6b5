package importer

import (
	"fmt"
	"strings"

	"github.com/liquida-dev/liquida/internal/model"
)

// DiagnosticKind classifies a parse problem.
type DiagnosticKind string

const (
	KindFile      DiagnosticKind = "file"
	KindHeader    DiagnosticKind = "header"
	KindRejected  DiagnosticKind = "rejected"
	KindTimestamp DiagnosticKind = "timestamp"
	KindAmount    DiagnosticKind = "amount"
	KindQuote     DiagnosticKind = "quote"
)

// MaxDisplayedDiagnostics caps the row-level messages shown to a user.
const MaxDisplayedDiagnostics = 10

// Diagnostic is a human-readable parse message tied to a line of the file.
// Line is 1-based; 0 means the whole file.
type Diagnostic struct {
	Line    int            `json:"line"`
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Line <= 0 {
		return d.Message
	}
	return fmt.Sprintf("line %d: %s", d.Line, d.Message)
}

// Result is the outcome of parsing one file.
type Result struct {
	Records     []model.TransactionRecord `json:"-"`
	Diagnostics []Diagnostic              `json:"diagnostics"`
	Rows        int                       `json:"rows"`     // data rows read, blank lines excluded
	Rejected    int                       `json:"rejected"` // rows that produced no record
}

func (r *Result) addFile(msg string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Kind: KindFile, Message: msg})
}

// Messages renders diagnostics for display. File and header messages are
// always shown; row messages are capped at MaxDisplayedDiagnostics followed
// by a line counting the rest.
func (r Result) Messages() []string {
	var out []string
	shown, hidden := 0, 0
	for _, d := range r.Diagnostics {
		if d.Kind == KindFile || d.Kind == KindHeader {
			out = append(out, d.String())
			continue
		}
		if shown < MaxDisplayedDiagnostics {
			out = append(out, d.String())
			shown++
			continue
		}
		hidden++
	}
	if hidden > 0 {
		out = append(out, fmt.Sprintf("... and %d more", hidden))
	}
	return out
}

// Fatal reports whether the file could not be read far enough to yield rows.
func (r Result) Fatal() bool {
	return len(r.Records) == 0 && r.hasKind(KindFile)
}

func (r Result) hasKind(k DiagnosticKind) bool {
	for _, d := range r.Diagnostics {
		if d.Kind == k {
			return true
		}
	}
	return false
}

// Summary returns a one-line description of the parse.
func (r Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows, %d records", r.Rows, len(r.Records))
	if r.Rejected > 0 {
		fmt.Fprintf(&b, ", %d rejected", r.Rejected)
	}
	if n := len(r.Diagnostics); n > 0 {
		fmt.Fprintf(&b, ", %d diagnostics", n)
	}
	return b.String()
}
