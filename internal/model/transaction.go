package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Modality is the payment method class of a transaction. It is an open set:
// values outside the known constants are kept as given.
type Modality string

const (
	ModalityDebit  Modality = "DEBITO"
	ModalityCredit Modality = "CREDITO"
	ModalityPix    Modality = "PIX"
)

// ParseModality upper-cases and trims s. Empty input yields PIX.
func ParseModality(s string) Modality {
	m := strings.ToUpper(strings.TrimSpace(s))
	if m == "" {
		return ModalityPix
	}
	return Modality(m)
}

// Known reports whether m is one of the recognized modalities.
func (m Modality) Known() bool {
	switch m {
	case ModalityDebit, ModalityCredit, ModalityPix:
		return true
	}
	return false
}

// NotInformed is stored for establishment and acquirer names missing from the source.
const NotInformed = "NÃO INFORMADO"

// TransactionRecord is one settled payment event from an acquirer export.
type TransactionRecord struct {
	ID       string `json:"id"` // store-assigned
	ImportID string `json:"import_id"`
	UserID   string `json:"user_id,omitempty"`

	ExportedAt   time.Time  `json:"exported_at"`
	TransactedAt time.Time  `json:"transacted_at"`
	ChargebackAt *time.Time `json:"chargeback_at,omitempty"`

	TransactionID         string `json:"transaction_id"`
	AcquirerTransactionID string `json:"acquirer_transaction_id"`

	Establishment       string `json:"establishment"`
	EstablishmentTaxID  string `json:"establishment_tax_id"`
	EstablishmentMCC    string `json:"establishment_mcc,omitempty"`
	Accreditor          string `json:"accreditor"`
	AccreditorTaxID     string `json:"accreditor_tax_id"`
	Representative      string `json:"representative,omitempty"`
	RepresentativeTaxID string `json:"representative_tax_id,omitempty"`
	Cardholder          string `json:"cardholder,omitempty"`
	Card                string `json:"card,omitempty"`
	Customer            string `json:"customer,omitempty"`

	Modality     Modality `json:"modality"`
	Installments *int     `json:"installments,omitempty"`
	CardBrand    string   `json:"card_brand,omitempty"`

	EquipmentSerial string `json:"equipment_serial,omitempty"`
	EquipmentID     string `json:"equipment_id,omitempty"`
	EquipmentModel  string `json:"equipment_model,omitempty"`

	GrossAmount    decimal.Decimal `json:"gross_amount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	OriginalAmount decimal.Decimal `json:"original_amount"`

	Acquirer          string `json:"acquirer"`
	Channel           string `json:"channel"`
	Status            string `json:"status"`
	FailureReason     string `json:"failure_reason,omitempty"`
	Plan              string `json:"plan,omitempty"`
	NSU               string `json:"nsu,omitempty"`
	Split             string `json:"split"`
	ParentTransaction string `json:"parent_transaction"`

	CreatedAt time.Time `json:"created_at"`
}

// Key returns the store uniqueness key of the record.
func (r TransactionRecord) Key() string {
	return r.TransactionID + "\x00" + r.AcquirerTransactionID
}

// Summary aggregates a filtered set of transactions.
type Summary struct {
	Count int             `json:"count"`
	Gross decimal.Decimal `json:"gross"`
	Net   decimal.Decimal `json:"net"`
}

// Summarize totals gross and net amounts over records.
func Summarize(records []TransactionRecord) Summary {
	s := Summary{Count: len(records), Gross: decimal.Zero, Net: decimal.Zero}
	for _, r := range records {
		s.Gross = s.Gross.Add(r.GrossAmount)
		s.Net = s.Net.Add(r.NetAmount)
	}
	return s
}
