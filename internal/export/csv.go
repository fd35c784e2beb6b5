// Package export writes transaction records back out in the acquirer file layout.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/liquida-dev/liquida/internal/importer"
	"github.com/liquida-dev/liquida/internal/locale"
	"github.com/liquida-dev/liquida/internal/model"
)

const (
	bom       = "\uFEFF"
	delimiter = ";"
)

// WriteRecords writes records as a spreadsheet-friendly export: UTF-8 BOM,
// unquoted header, every data field quoted, ';' between fields. Dates are
// rendered in loc. The output parses back through importer.AcquirerParser.
func WriteRecords(w io.Writer, records []model.TransactionRecord, loc *time.Location) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(bom + strings.Join(importer.Columns, delimiter) + "\n"); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, rec := range records {
		if _, err := bw.WriteString(quoteRow(MarshalRecord(rec, loc)) + "\n"); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing export: %w", err)
	}
	return nil
}

// MarshalRecord converts a record to export cells, in importer.Columns order.
func MarshalRecord(rec model.TransactionRecord, loc *time.Location) []string {
	row := make([]string, importer.NumColumns)
	row[importer.ColExportedAt] = locale.FormatDateTime(rec.ExportedAt, loc)
	row[importer.ColTransactedAt] = locale.FormatDateTime(rec.TransactedAt, loc)
	if rec.ChargebackAt != nil {
		row[importer.ColChargebackAt] = locale.FormatDateTime(*rec.ChargebackAt, loc)
	}
	row[importer.ColTransactionID] = rec.TransactionID
	row[importer.ColAcquirerTxID] = rec.AcquirerTransactionID
	row[importer.ColEstablishment] = rec.Establishment
	row[importer.ColEstablishmentTax] = rec.EstablishmentTaxID
	row[importer.ColMCC] = rec.EstablishmentMCC
	row[importer.ColAccreditor] = rec.Accreditor
	row[importer.ColAccreditorTax] = rec.AccreditorTaxID
	row[importer.ColRepresentative] = rec.Representative
	row[importer.ColRepresentTax] = rec.RepresentativeTaxID
	row[importer.ColCardholder] = rec.Cardholder
	row[importer.ColCard] = rec.Card
	row[importer.ColCustomer] = rec.Customer
	row[importer.ColModality] = string(rec.Modality)
	if rec.Installments != nil {
		row[importer.ColInstallments] = strconv.Itoa(*rec.Installments)
	}
	row[importer.ColCardBrand] = rec.CardBrand
	row[importer.ColEquipmentSerial] = rec.EquipmentSerial
	row[importer.ColEquipmentID] = rec.EquipmentID
	row[importer.ColEquipmentModel] = rec.EquipmentModel
	row[importer.ColGross] = locale.FormatAmount(rec.GrossAmount)
	row[importer.ColNet] = locale.FormatAmount(rec.NetAmount)
	row[importer.ColAcquirer] = rec.Acquirer
	row[importer.ColChannel] = rec.Channel
	row[importer.ColStatus] = rec.Status
	row[importer.ColFailureReason] = rec.FailureReason
	row[importer.ColPlan] = rec.Plan
	row[importer.ColNSU] = rec.NSU
	row[importer.ColSplit] = rec.Split
	row[importer.ColParentTx] = rec.ParentTransaction
	row[importer.ColOriginal] = locale.FormatAmount(rec.OriginalAmount)
	return row
}

// quoteRow quotes every cell, doubling embedded quotes.
func quoteRow(cells []string) string {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		quoted[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
	}
	return strings.Join(quoted, delimiter)
}

// Filename returns the default download name for an export taken at t.
func Filename(t time.Time) string {
	return "transacoes_" + t.Format("20060102_150405") + ".csv"
}
