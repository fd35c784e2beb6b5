package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquida-dev/liquida/internal/importer"
	"github.com/liquida-dev/liquida/internal/model"
	"github.com/liquida-dev/liquida/internal/query"
	"github.com/liquida-dev/liquida/internal/store"
)

type fixture struct {
	server *httptest.Server
	store  store.Store
	imp    model.ImportRecord
}

func newFixture(t *testing.T, s store.Store) fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	ctx := context.Background()

	if s == nil {
		s = store.NewMemory()
	}
	imp, err := s.CreateImport(ctx, model.ImportRecord{Filename: "vendas.csv", Status: model.ImportSuccess})
	require.NoError(t, err)

	var recs []model.TransactionRecord
	for i, h := range []int{9, 13, 18} {
		recs = append(recs, model.TransactionRecord{
			ImportID:              imp.ID,
			TransactionID:         "TX" + string(rune('A'+i)),
			AcquirerTransactionID: "TX" + string(rune('A'+i)),
			Establishment:         "Padaria",
			Acquirer:              []string{"Stone", "Cielo", "Stone"}[i],
			Modality:              model.ModalityPix,
			TransactedAt:          time.Date(2024, 1, 5, h, 0, 0, 0, loc),
			ExportedAt:            time.Date(2024, 1, 6, 8, 0, 0, 0, loc),
			GrossAmount:           decimal.NewFromInt(100),
			NetAmount:             decimal.NewFromInt(97),
			OriginalAmount:        decimal.NewFromInt(100),
		})
	}
	_, err = s.InsertMany(ctx, recs)
	require.NoError(t, err)

	h := NewHandler(s, query.NewBuilder(s, loc), zerolog.Nop())
	h.now = func() time.Time { return time.Date(2024, 1, 7, 10, 30, 0, 0, time.UTC) }
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return fixture{server: srv, store: s, imp: imp}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := get(t, f.server.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestListTransactions(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name    string
		query   string
		total   int
		refined bool
	}{
		{"no filter", "", 3, false},
		{"date only", "?startDate=2024-01-05&endDate=2024-01-05", 3, false},
		{"time window", "?startDate=2024-01-05&endDate=2024-01-05&startTime=10:00&endTime=17:00", 1, true},
		{"acquirer", "?acquirer=Stone", 2, false},
		{"other day", "?startDate=2024-02-01", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, f.server.URL+"/api/v1/transactions"+tt.query)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			var res query.Result
			require.NoError(t, json.Unmarshal(body, &res))
			assert.Equal(t, tt.total, res.Total)
			assert.Len(t, res.Records, tt.total)
			assert.Equal(t, tt.refined, res.Refined)
			assert.Equal(t, tt.total, res.Summary.Count)
		})
	}
}

func TestListTransactions_EmptyIsArray(t *testing.T) {
	f := newFixture(t, nil)
	_, body := get(t, f.server.URL+"/api/v1/transactions?startDate=2030-01-01")
	assert.Contains(t, string(body), `"records":[]`)
}

func TestListTransactions_Paging(t *testing.T) {
	f := newFixture(t, nil)
	_, body := get(t, f.server.URL+"/api/v1/transactions?page=2&pageSize=2")

	var res query.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Page)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "TXA", res.Records[0].TransactionID)
}

func TestListTransactions_HugePage(t *testing.T) {
	f := newFixture(t, nil)
	for _, q := range []string{
		"?page=9223372036854775807&pageSize=50",
		"?page=9223372036854775807&pageSize=50&startDate=2024-01-05&startTime=08:00",
	} {
		resp, body := get(t, f.server.URL+"/api/v1/transactions"+q)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var res query.Result
		require.NoError(t, json.Unmarshal(body, &res))
		assert.Equal(t, 3, res.Total, q)
		assert.Empty(t, res.Records, q)
	}
}

func TestListTransactions_BadRequest(t *testing.T) {
	f := newFixture(t, nil)
	for _, q := range []string{"?startDate=tomorrow", "?startTime=25:00", "?page=x", "?pageSize=-1"} {
		resp, body := get(t, f.server.URL+"/api/v1/transactions"+q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		assert.Contains(t, string(body), `"error"`)
	}
}

func TestListTransactions_StoreError(t *testing.T) {
	mock := store.NewMockStore()
	mock.SummarizeFn = func(context.Context, store.Query) (model.Summary, error) {
		return model.Summary{}, errors.New("connection reset")
	}
	f := newFixture(t, mock)

	resp, body := get(t, f.server.URL+"/api/v1/transactions")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(body), "connection reset")
}

func TestExportTransactions(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := get(t, f.server.URL+"/api/v1/transactions/export?acquirer=Cielo")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "transacoes_20240107_103000.csv")

	loc, _ := time.LoadLocation("America/Sao_Paulo")
	parsed := importer.NewAcquirerParser(loc).Parse(body)
	require.Len(t, parsed.Records, 1)
	assert.Equal(t, "TXB", parsed.Records[0].TransactionID)
}

func TestImportHistory(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := get(t, f.server.URL+"/api/v1/imports?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var imports []model.ImportRecord
	require.NoError(t, json.Unmarshal(body, &imports))
	require.Len(t, imports, 1)
	assert.Equal(t, "vendas.csv", imports[0].Filename)

	resp, _ = get(t, f.server.URL+"/api/v1/imports?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportImport(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := get(t, f.server.URL+"/api/v1/imports/"+f.imp.ID+"/export")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(body), "\uFEFF"))
	assert.Equal(t, 4, strings.Count(string(body), "\n"), "header plus three rows")

	resp, _ = get(t, f.server.URL+"/api/v1/imports/missing/export")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	get(t, f.server.URL+"/health")

	resp, body := get(t, f.server.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "liquida_http_requests_total")
}
