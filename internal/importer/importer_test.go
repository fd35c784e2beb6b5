package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/liquida-dev/liquida/internal/id"
	"github.com/liquida-dev/liquida/internal/model"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestParser(t *testing.T) *AcquirerParser {
	return NewAcquirerParser(saoPaulo(t), WithClock(func() time.Time { return fixedNow }))
}

// csvLine builds a full-width data line with the given column values.
func csvLine(values map[int]string) string {
	cells := make([]string, NumColumns)
	for col, v := range values {
		cells[col] = v
	}
	return strings.Join(cells, ";")
}

func fullHeader() string { return strings.Join(Columns, ";") }

func TestAcquirerParser_Fixture(t *testing.T) {
	data, err := os.ReadFile("testdata/acquirer_sample.csv")
	require.NoError(t, err)
	loc := saoPaulo(t)

	res := newTestParser(t).Parse(data)
	require.Len(t, res.Records, 3)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 1, res.Rejected)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, KindRejected, res.Diagnostics[0].Kind)
	assert.Equal(t, 6, res.Diagnostics[0].Line)

	first := res.Records[0]
	assert.True(t, first.TransactedAt.Equal(time.Date(2024, 1, 5, 9, 0, 0, 0, loc)))
	assert.True(t, first.ExportedAt.Equal(time.Date(2024, 1, 5, 23, 59, 59, 0, loc)))
	assert.Equal(t, "TX1001", first.TransactionID)
	assert.Equal(t, "ACQ-1001", first.AcquirerTransactionID)
	assert.Equal(t, "Padaria Pão Quente", first.Establishment)
	assert.Equal(t, model.ModalityCredit, first.Modality)
	require.NotNil(t, first.Installments)
	assert.Equal(t, 3, *first.Installments)
	assert.Equal(t, "1234.56", first.GrossAmount.StringFixed(2))
	assert.Equal(t, "1200.00", first.NetAmount.StringFixed(2))
	assert.Equal(t, "Stone", first.Acquirer)
	assert.Nil(t, first.ChargebackAt)

	second := res.Records[1]
	assert.Equal(t, "TX1002", second.AcquirerTransactionID)
	assert.Equal(t, model.ModalityDebit, second.Modality)
	assert.Equal(t, "50.00", second.OriginalAmount.StringFixed(2))
	assert.Nil(t, second.Installments)

	third := res.Records[2]
	assert.Equal(t, model.ModalityPix, third.Modality)
	assert.Equal(t, model.NotInformed, third.Acquirer)
}

func TestAcquirerParser_MissingColumns(t *testing.T) {
	content := "ID DA TRANSAÇÃO;ESTABELECIMENTO\nTX1;Loja\n"

	res := newTestParser(t).Parse([]byte(content))
	require.Len(t, res.Records, 1)

	var header, timestamp []Diagnostic
	for _, d := range res.Diagnostics {
		switch d.Kind {
		case KindHeader:
			header = append(header, d)
		case KindTimestamp:
			timestamp = append(timestamp, d)
		}
	}
	require.Len(t, header, 1)
	assert.Equal(t, "missing columns: DATA DA TRANSAÇÃO, MODALIDADE, VALOR BRUTO, VALOR LÍQUIDO", header[0].Message)
	require.Len(t, timestamp, 1, "wall-clock fallback is reported")

	rec := res.Records[0]
	assert.True(t, rec.TransactedAt.Equal(fixedNow))
	assert.True(t, rec.GrossAmount.IsZero())
	assert.Equal(t, model.ModalityPix, rec.Modality)
}

func TestAcquirerParser_HeaderAccentsAndCase(t *testing.T) {
	content := "Data da Transacao;Id da Transacao;Estabelecimento;Modalidade;Valor Bruto;Valor Liquido\n" +
		"10/02/2024 08:15;TX9;Loja;pix;R$ 10,00;R$ 9,90\n"

	res := newTestParser(t).Parse([]byte(content))
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "10.00", res.Records[0].GrossAmount.StringFixed(2))
	assert.Equal(t, 8, res.Records[0].TransactedAt.Hour())
}

func TestAcquirerParser_EmptyInput(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse(nil)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, KindFile, res.Diagnostics[0].Kind)
	assert.True(t, res.Fatal())

	res = p.Parse([]byte(fullHeader() + "\n\n;;;\n"))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, KindFile, res.Diagnostics[0].Kind)
	assert.Contains(t, res.Diagnostics[0].Message, "no data rows")
	assert.Zero(t, res.Rows)
}

func TestAcquirerParser_QuotedDelimiter(t *testing.T) {
	content := fullHeader() + "\n" + csvLine(map[int]string{
		ColTransactedAt:  "01/02/2024 10:00:00",
		ColTransactionID: "TX1",
		ColEstablishment: `"Loja; Centro"`,
		ColGross:         `"1.000,00"`,
		ColNet:           "990,00",
	}) + "\n"

	res := newTestParser(t).Parse([]byte(content))
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Loja; Centro", res.Records[0].Establishment)
	assert.Equal(t, "1000.00", res.Records[0].GrossAmount.StringFixed(2))
}

func TestAcquirerParser_StrayQuoteStaysOnItsLine(t *testing.T) {
	row := func(id, establishment string) string {
		return csvLine(map[int]string{
			ColTransactedAt:  "01/02/2024 10:00:00",
			ColTransactionID: id,
			ColEstablishment: establishment,
			ColGross:         "10,00",
			ColNet:           "9,90",
		})
	}
	content := strings.Join([]string{
		fullHeader(),
		row("T1", `"JOAO" LANCHES`),
		row("T2", "Loja 2"),
		row("T3", `Bar "do Zé"`),
		row("T4", "Loja 4"),
	}, "\r\n") + "\r\n"

	res := newTestParser(t).Parse([]byte(content))
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, 4, res.Rows)
	require.Len(t, res.Records, 4)
	for i, want := range []struct{ id, establishment string }{
		{"T1", `"JOAO" LANCHES`},
		{"T2", "Loja 2"},
		{"T3", `Bar "do Zé"`},
		{"T4", "Loja 4"},
	} {
		assert.Equal(t, want.id, res.Records[i].TransactionID)
		assert.Equal(t, want.establishment, res.Records[i].Establishment)
	}
}

func TestAcquirerParser_UnterminatedQuote(t *testing.T) {
	content := fullHeader() + "\n" +
		csvLine(map[int]string{ColTransactionID: "T1", ColEstablishment: `"Loja`}) + "\n" +
		csvLine(map[int]string{ColTransactionID: "T2", ColEstablishment: "Loja 2"}) + "\n"

	res := newTestParser(t).Parse([]byte(content))
	require.Len(t, res.Records, 2)
	assert.Equal(t, `"Loja`, res.Records[0].Establishment)
	assert.Equal(t, "T2", res.Records[1].TransactionID)

	var quote []Diagnostic
	for _, d := range res.Diagnostics {
		if d.Kind == KindQuote {
			quote = append(quote, d)
		}
	}
	require.Len(t, quote, 1)
	assert.Equal(t, 2, quote[0].Line)
}

func TestSplitFields(t *testing.T) {
	tests := []struct {
		line string
		want []string
		open bool
	}{
		{"a;b;c", []string{"a", "b", "c"}, false},
		{"a;;", []string{"a", "", ""}, false},
		{`"a;b";c`, []string{"a;b", "c"}, false},
		{`"say ""hi""";x`, []string{`say "hi"`, "x"}, false},
		{`"JOAO" LANCHES;x`, []string{`"JOAO" LANCHES`, "x"}, false},
		{`x;Bar "do Zé"`, []string{"x", `Bar "do Zé"`}, false},
		{`"";x`, []string{"", "x"}, false},
		{`"open;x`, []string{`"open`, "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, open := splitFields(tt.line)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.open, open)
		})
	}
}

func TestAcquirerParser_ByteOrderMarkAndLatin1(t *testing.T) {
	p := newTestParser(t)
	body := "DATA DA TRANSAÇÃO;ID DA TRANSAÇÃO;ESTABELECIMENTO;MODALIDADE;VALOR BRUTO;VALOR LÍQUIDO\n" +
		"01/02/2024 10:00;TX1;Açaí da Praça;PIX;5,00;5,00\n"

	res := p.Parse([]byte("\uFEFF" + body))
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Records, 1)

	latin1, err := charmap.ISO8859_1.NewEncoder().String(body)
	require.NoError(t, err)
	res = p.Parse([]byte(latin1))
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Açaí da Praça", res.Records[0].Establishment)
}

func TestAcquirerParser_TimestampFallsBackToExportDate(t *testing.T) {
	loc := saoPaulo(t)
	content := fullHeader() + "\n" + csvLine(map[int]string{
		ColExportedAt:    "02/02/2024 07:00:00",
		ColTransactedAt:  "not a date",
		ColTransactionID: "TX1",
	}) + "\n"

	res := newTestParser(t).Parse([]byte(content))
	require.Len(t, res.Records, 1)
	assert.Empty(t, res.Diagnostics)
	assert.True(t, res.Records[0].TransactedAt.Equal(time.Date(2024, 2, 2, 7, 0, 0, 0, loc)))
}

func TestAcquirerParser_BadAmount(t *testing.T) {
	content := fullHeader() + "\n" + csvLine(map[int]string{
		ColTransactedAt:  "01/02/2024 10:00:00",
		ColTransactionID: "TX1",
		ColGross:         "abc",
		ColNet:           "R$ 3,00",
	}) + "\n"

	res := newTestParser(t).Parse([]byte(content))
	require.Len(t, res.Records, 1)
	require.Len(t, res.Diagnostics, 2, "gross and the original value that falls back to it")
	assert.Equal(t, KindAmount, res.Diagnostics[0].Kind)
	assert.Equal(t, 2, res.Diagnostics[0].Line)
	assert.True(t, res.Records[0].GrossAmount.IsZero())
	assert.Equal(t, "3.00", res.Records[0].NetAmount.StringFixed(2))
}

func TestAcquirerParser_SynthesizesTransactionID(t *testing.T) {
	content := fullHeader() + "\n" + csvLine(map[int]string{
		ColTransactedAt:  "01/02/2024 10:00:00",
		ColEstablishment: "Loja",
	}) + "\n"

	res := newTestParser(t).Parse([]byte(content))
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.True(t, id.IsSynthesized(rec.TransactionID))
	assert.Equal(t, rec.TransactionID, rec.AcquirerTransactionID)
}

func TestParseInstallments(t *testing.T) {
	tests := []struct {
		input string
		want  int // 0 means nil
	}{
		{"3x", 3},
		{"12", 12},
		{"em 2 vezes", 2},
		{"0", 0},
		{"", 0},
		{"à vista", 0},
	}
	for _, tt := range tests {
		got := parseInstallments(tt.input)
		if tt.want == 0 {
			assert.Nil(t, got, "parseInstallments(%q)", tt.input)
			continue
		}
		require.NotNil(t, got, "parseInstallments(%q)", tt.input)
		assert.Equal(t, tt.want, *got)
	}
}

func TestResult_MessagesCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("ID DA TRANSAÇÃO;ESTABELECIMENTO\n")
	for i := 0; i < 15; i++ {
		b.WriteString(";;orphan\n")
	}

	res := newTestParser(t).Parse([]byte(b.String()))
	assert.Equal(t, 15, res.Rejected)
	assert.Empty(t, res.Records)

	msgs := res.Messages()
	// header diagnostic, 10 row messages, then the overflow line
	require.Len(t, msgs, 12)
	assert.True(t, strings.HasPrefix(msgs[0], "line 1: missing columns"))
	assert.Equal(t, "... and 5 more", msgs[11])
}

func TestDiagnostic_String(t *testing.T) {
	assert.Equal(t, "line 4: bad", Diagnostic{Line: 4, Message: "bad"}.String())
	assert.Equal(t, "whole file", Diagnostic{Message: "whole file"}.String())
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "DATA DA TRANSACAO", NormalizeHeader("  Data da  Transação "))
	assert.Equal(t, NormalizeHeader("VALOR LÍQUIDO"), NormalizeHeader("valor liquido"))
	assert.Empty(t, MissingColumns(Columns))
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(NewAcquirerParser(time.UTC))
	assert.NotNil(t, r.Get("Acquirer"))
	assert.NotNil(t, r.Get("ACQUIRER"))
	assert.Equal(t, []string{"acquirer"}, r.Formats())
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(NewAcquirerParser(time.UTC))
	assert.Panics(t, func() { r.Register(NewAcquirerParser(time.UTC)) })
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(time.UTC)
	assert.NotNil(t, r.Get("acquirer"))
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendas.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "vendas.csv", files[0].Name)
	assert.Equal(t, int64(4), files[0].Size)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	processed := filepath.Join(dir, ProcessedDir)
	require.NoError(t, os.MkdirAll(processed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_MissingDir(t *testing.T) {
	files, err := Scan(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendas.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "vendas.csv"))

	_, err := os.Stat(filepath.Join(dir, "vendas.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, ProcessedDir, "vendas.csv"))
	assert.NoError(t, err)
}

func TestMarkProcessed_MissingFile(t *testing.T) {
	err := MarkProcessed(t.TempDir(), "ghost.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("moving %s", "ghost.csv"))
}
