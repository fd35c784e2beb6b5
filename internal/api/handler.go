// Package api serves read-only HTTP access to stored transactions and
// import history.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/liquida-dev/liquida/internal/export"
	"github.com/liquida-dev/liquida/internal/metrics"
	"github.com/liquida-dev/liquida/internal/model"
	"github.com/liquida-dev/liquida/internal/query"
	"github.com/liquida-dev/liquida/internal/store"
)

// Handler answers the transaction and import endpoints.
type Handler struct {
	store   store.Store
	queries *query.Builder
	log     zerolog.Logger
	now     func() time.Time
}

// NewHandler creates a Handler. Dates and times in requests are read in the
// builder's location.
func NewHandler(s store.Store, b *query.Builder, log zerolog.Logger) *Handler {
	return &Handler{store: s, queries: b, log: log, now: time.Now}
}

// Router registers every route on a new mux.Router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/transactions", h.ListTransactionsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/transactions/export", h.ExportTransactionsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/imports", h.ImportHistoryHandler).Methods(http.MethodGet)
	v1.HandleFunc("/imports/{id}/export", h.ExportImportHandler).Methods(http.MethodGet)
	return r
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, r.Method, "/health")
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/transactions"
	timer := prometheus.NewTimer(metrics.HTTPLatency.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	f, err := filterFromRequest(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), r.Method, endpoint)
		return
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), r.Method, endpoint)
		return
	}
	pageSize, err := intParam(r, "pageSize", 0)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), r.Method, endpoint)
		return
	}

	res, err := h.queries.Fetch(r.Context(), f, page, pageSize)
	if err != nil {
		h.log.Error().Err(err).Msg("listing transactions")
		h.respondError(w, http.StatusInternalServerError, "System error listing transactions", r.Method, endpoint)
		return
	}
	if res.Records == nil {
		res.Records = []model.TransactionRecord{}
	}
	h.respondJSON(w, http.StatusOK, res, r.Method, endpoint)
}

func (h *Handler) ExportTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/transactions/export"
	timer := prometheus.NewTimer(metrics.HTTPLatency.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	f, err := filterFromRequest(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), r.Method, endpoint)
		return
	}
	records, err := h.queries.All(r.Context(), f)
	if err != nil {
		h.log.Error().Err(err).Msg("exporting transactions")
		h.respondError(w, http.StatusInternalServerError, "System error exporting transactions", r.Method, endpoint)
		return
	}
	h.respondCSV(w, records, r.Method, endpoint)
}

func (h *Handler) ImportHistoryHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/imports"
	limit, err := intParam(r, "limit", store.DefaultHistoryLimit)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), r.Method, endpoint)
		return
	}
	imports, err := h.store.ImportHistory(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("loading import history")
		h.respondError(w, http.StatusInternalServerError, "System error loading import history", r.Method, endpoint)
		return
	}
	if imports == nil {
		imports = []model.ImportRecord{}
	}
	h.respondJSON(w, http.StatusOK, imports, r.Method, endpoint)
}

func (h *Handler) ExportImportHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/imports/{id}/export"
	timer := prometheus.NewTimer(metrics.HTTPLatency.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	id := mux.Vars(r)["id"]
	if _, err := h.store.GetImport(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "Import not found", r.Method, endpoint)
			return
		}
		h.log.Error().Err(err).Str("import_id", id).Msg("loading import")
		h.respondError(w, http.StatusInternalServerError, "System error loading import", r.Method, endpoint)
		return
	}
	records, err := h.store.Query(r.Context(), store.Query{ImportID: id})
	if err != nil {
		h.log.Error().Err(err).Str("import_id", id).Msg("exporting import")
		h.respondError(w, http.StatusInternalServerError, "System error exporting import", r.Method, endpoint)
		return
	}
	h.respondCSV(w, records, r.Method, endpoint)
}

func filterFromRequest(r *http.Request) (query.Filter, error) {
	q := r.URL.Query()
	return query.Params{
		StartDate:  q.Get("startDate"),
		EndDate:    q.Get("endDate"),
		StartTime:  q.Get("startTime"),
		EndTime:    q.Get("endTime"),
		Acquirers:  q["acquirer"],
		Modalities: q["modality"],
	}.Filter()
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	metrics.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}

func (h *Handler) respondCSV(w http.ResponseWriter, records []model.TransactionRecord, method, endpoint string) {
	metrics.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(http.StatusOK)).Inc()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(h.now())))
	if err := export.WriteRecords(w, records, h.queries.Location()); err != nil {
		h.log.Error().Err(err).Msg("writing csv response")
	}
}
