package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Columns is the acquirer export header, in file order.
var Columns = []string{
	"DATA EXPORTACÃO",
	"DATA DA TRANSAÇÃO",
	"DATA DO ESTORNO",
	"ID DA TRANSAÇÃO",
	"ID DA TRANSAÇÃO NA ADQUIRENTE",
	"ESTABELECIMENTO",
	"CPF/CNPJ ESTABELECIMENTO",
	"MCC DO ESTABELECIMENTO",
	"CREDENCIADORA",
	"CPF/CNPJ CREDENCIADORA",
	"REPRESENTANTE",
	"CPF/CNPJ REPRESENTANTE",
	"PORTADOR",
	"CARTÃO",
	"CLIENTE",
	"MODALIDADE",
	"PARCELAS",
	"BANDEIRA",
	"SERIAL DO EQUIPAMENTO",
	"NÚMERO DE IDENTIFICAÇÃO DO EQUIPAMENTO",
	"MODELO DO EQUIPAMENTO",
	"VALOR BRUTO",
	"VALOR LÍQUIDO",
	"ADQUIRENTE",
	"CANAL",
	"STATUS",
	"MOTIVO DE FALHA",
	"PLANO",
	"NSU",
	"SPLIT",
	"TRANSAÇÃO PRINCIPAL",
	"VALOR ORIGINAL",
}

const (
	NumColumns          = 32
	ColExportedAt       = 0
	ColTransactedAt     = 1
	ColChargebackAt     = 2
	ColTransactionID    = 3
	ColAcquirerTxID     = 4
	ColEstablishment    = 5
	ColEstablishmentTax = 6
	ColMCC              = 7
	ColAccreditor       = 8
	ColAccreditorTax    = 9
	ColRepresentative   = 10
	ColRepresentTax     = 11
	ColCardholder       = 12
	ColCard             = 13
	ColCustomer         = 14
	ColModality         = 15
	ColInstallments     = 16
	ColCardBrand        = 17
	ColEquipmentSerial  = 18
	ColEquipmentID      = 19
	ColEquipmentModel   = 20
	ColGross            = 21
	ColNet              = 22
	ColAcquirer         = 23
	ColChannel          = 24
	ColStatus           = 25
	ColFailureReason    = 26
	ColPlan             = 27
	ColNSU              = 28
	ColSplit            = 29
	ColParentTx         = 30
	ColOriginal         = 31
)

// RequiredColumns must be present in every import header.
var RequiredColumns = []int{
	ColTransactedAt,
	ColTransactionID,
	ColModality,
	ColGross,
	ColNet,
}

// stripMarks builds a fresh transformer per call; chained transformers keep state.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NormalizeHeader upper-cases h, strips diacritics and collapses whitespace,
// so "Data da Transação " and "DATA DA TRANSACAO" compare equal.
func NormalizeHeader(h string) string {
	s, _, err := transform.String(stripMarks(), h)
	if err != nil {
		s = h
	}
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// normalizedColumns maps column index to normalized header name.
var normalizedColumns = func() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = NormalizeHeader(c)
	}
	return out
}()

// MissingColumns returns the display names of required columns absent from headers.
func MissingColumns(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[NormalizeHeader(h)] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !present[normalizedColumns[col]] {
			missing = append(missing, Columns[col])
		}
	}
	return missing
}
