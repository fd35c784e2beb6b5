package importer

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/liquida-dev/liquida/internal/id"
	"github.com/liquida-dev/liquida/internal/locale"
	"github.com/liquida-dev/liquida/internal/model"
)

// AcquirerParser parses the semicolon-delimited acquirer settlement export.
type AcquirerParser struct {
	loc *time.Location
	now func() time.Time
}

// ParserOption configures an AcquirerParser.
type ParserOption func(*AcquirerParser)

// WithClock overrides the wall clock used for timestamp fallbacks and synthetic ids.
func WithClock(now func() time.Time) ParserOption {
	return func(p *AcquirerParser) { p.now = now }
}

// NewAcquirerParser creates a parser that reads local wall-clock text in loc.
func NewAcquirerParser(loc *time.Location, opts ...ParserOption) *AcquirerParser {
	if loc == nil {
		loc = time.Local
	}
	p := &AcquirerParser{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Format returns the parser name.
func (p *AcquirerParser) Format() string { return "acquirer" }

// Row maps normalized header names to trimmed cell values.
type Row map[string]string

// Get returns the value of the first column in cols that is non-empty.
func (r Row) Get(cols ...int) string {
	for _, c := range cols {
		if v := r[normalizedColumns[c]]; v != "" {
			return v
		}
	}
	return ""
}

// Parse reads an export file. It never fails: problems are reported as
// diagnostics and the records list holds every row that could be converted.
func (p *AcquirerParser) Parse(content []byte) Result {
	var res Result

	var headers []string
	for i, text := range strings.Split(normalizeText(content), "\n") {
		line := i + 1
		rec, open := splitFields(text)
		if blank(rec) {
			continue
		}

		// First non-blank record is the header.
		if headers == nil {
			headers = trimAll(rec)
			if missing := MissingColumns(headers); len(missing) > 0 {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Line:    line,
					Kind:    KindHeader,
					Message: "missing columns: " + strings.Join(missing, ", "),
				})
			}
			continue
		}

		res.Rows++
		if open {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Line:    line,
				Kind:    KindQuote,
				Message: "unterminated quoted field, read as plain text",
			})
		}
		txn, diags, ok := p.RowToRecord(toRow(headers, rec), line)
		res.Diagnostics = append(res.Diagnostics, diags...)
		if !ok {
			res.Rejected++
			continue
		}
		res.Records = append(res.Records, txn)
	}

	switch {
	case headers == nil:
		res.addFile("file is empty: a header and at least one data row are required")
	case res.Rows == 0:
		res.addFile("no data rows found after the header")
	}
	return res
}

var digitRun = regexp.MustCompile(`\d+`)

// RowToRecord converts one data row. A row is rejected, with exactly one
// diagnostic, only when both the transaction id and the establishment are
// empty. Every other defect degrades a field to its default.
func (p *AcquirerParser) RowToRecord(row Row, line int) (model.TransactionRecord, []Diagnostic, bool) {
	txID := row.Get(ColTransactionID)
	establishment := row.Get(ColEstablishment)
	if txID == "" && establishment == "" {
		return model.TransactionRecord{}, []Diagnostic{{
			Line:    line,
			Kind:    KindRejected,
			Message: "transaction id and establishment are both empty",
		}}, false
	}

	var diags []Diagnostic
	now := p.now()

	exportedAt, exportOK := locale.ParseDateTime(row.Get(ColExportedAt), p.loc)
	transactedAt, ok := locale.ParseDateTime(row.Get(ColTransactedAt), p.loc)
	if !ok {
		if exportOK {
			transactedAt = exportedAt
		} else {
			transactedAt = now
			diags = append(diags, Diagnostic{
				Line:    line,
				Kind:    KindTimestamp,
				Message: fmt.Sprintf("unparsable transaction date %q, using current time", row.Get(ColTransactedAt)),
			})
		}
	}
	if !exportOK {
		exportedAt = now
	}

	var chargebackAt *time.Time
	if t, ok := locale.ParseDateTime(row.Get(ColChargebackAt), p.loc); ok {
		chargebackAt = &t
	}

	amount := func(name string, cols ...int) decimal.Decimal {
		text := row.Get(cols...)
		if text == "" {
			text = "0"
		}
		d, defaulted := locale.DecodeCurrency(text)
		if defaulted {
			diags = append(diags, Diagnostic{
				Line:    line,
				Kind:    KindAmount,
				Message: fmt.Sprintf("unparsable %s %q, using 0", name, text),
			})
		}
		return d
	}
	gross := amount("gross value", ColGross)
	net := amount("net value", ColNet)
	original := amount("original value", ColOriginal, ColGross)

	if txID == "" {
		txID = id.Synthesize(now)
	}
	acquirerTxID := row.Get(ColAcquirerTxID)
	if acquirerTxID == "" {
		acquirerTxID = txID
	}
	if establishment == "" {
		establishment = model.NotInformed
	}
	acquirer := row.Get(ColAcquirer)
	if acquirer == "" {
		acquirer = model.NotInformed
	}

	return model.TransactionRecord{
		ExportedAt:            exportedAt,
		TransactedAt:          transactedAt,
		ChargebackAt:          chargebackAt,
		TransactionID:         txID,
		AcquirerTransactionID: acquirerTxID,
		Establishment:         establishment,
		EstablishmentTaxID:    row.Get(ColEstablishmentTax),
		EstablishmentMCC:      row.Get(ColMCC),
		Accreditor:            row.Get(ColAccreditor),
		AccreditorTaxID:       row.Get(ColAccreditorTax),
		Representative:        row.Get(ColRepresentative),
		RepresentativeTaxID:   row.Get(ColRepresentTax),
		Cardholder:            row.Get(ColCardholder),
		Card:                  row.Get(ColCard),
		Customer:              row.Get(ColCustomer),
		Modality:              model.ParseModality(row.Get(ColModality)),
		Installments:          parseInstallments(row.Get(ColInstallments)),
		CardBrand:             row.Get(ColCardBrand),
		EquipmentSerial:       row.Get(ColEquipmentSerial),
		EquipmentID:           row.Get(ColEquipmentID),
		EquipmentModel:        row.Get(ColEquipmentModel),
		GrossAmount:           gross,
		NetAmount:             net,
		OriginalAmount:        original,
		Acquirer:              acquirer,
		Channel:               row.Get(ColChannel),
		Status:                row.Get(ColStatus),
		FailureReason:         row.Get(ColFailureReason),
		Plan:                  row.Get(ColPlan),
		NSU:                   row.Get(ColNSU),
		Split:                 row.Get(ColSplit),
		ParentTransaction:     row.Get(ColParentTx),
	}, diags, true
}

// parseInstallments extracts the first run of digits: "3x" -> 3. Zero and
// digit-free text yield nil.
func parseInstallments(s string) *int {
	m := digitRun.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil || n == 0 {
		return nil
	}
	return &n
}

// normalizeText strips a UTF-8 BOM, decodes ISO-8859-1 input and converts
// \r\n and \r line endings to \n.
func normalizeText(content []byte) string {
	content = bytes.TrimPrefix(content, []byte("\uFEFF"))
	if !utf8.Valid(content) {
		if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content); err == nil {
			content = decoded
		}
	}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// splitFields splits one line on ';'. A field wrapped in double quotes, with
// "" standing for a quote, is unquoted only when its closing quote is followed
// by ';' or the end of the line. Any other quote is kept as text, so a stray
// quote never spills into the next line. open reports a quoted field with no
// closing quote, which usually means a cell that spanned lines.
func splitFields(line string) (fields []string, open bool) {
	for {
		if strings.HasPrefix(line, `"`) {
			v, n, closed := unquote(line)
			if closed {
				fields = append(fields, v)
				if n == len(line) {
					return fields, open
				}
				line = line[n+1:]
				continue
			}
			if n < 0 {
				open = true
			}
		}
		field, rest, more := strings.Cut(line, ";")
		fields = append(fields, field)
		if !more {
			return fields, open
		}
		line = rest
	}
}

// unquote reads the quoted field at the start of s. On success n is the index
// just past the closing quote. n is -1 when s ends inside the quotes.
func unquote(s string) (v string, n int, closed bool) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '"' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		if i+1 == len(s) || s[i+1] == ';' {
			return b.String(), i + 1, true
		}
		return "", 0, false
	}
	return "", -1, false
}

func toRow(headers, rec []string) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		key := NormalizeHeader(h)
		if _, seen := row[key]; seen {
			continue
		}
		var v string
		if i < len(rec) {
			v = strings.TrimSpace(rec[i])
		}
		row[key] = v
	}
	return row
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, s := range rec {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func blank(rec []string) bool {
	for _, s := range rec {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}
