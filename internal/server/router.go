package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lumi/internal/metrics"
	"lumi/internal/weight"
)

// WeightResponse is the body returned for a single dataset lookup.
// Non-finite weights are encoded as "NaN", "+Inf" or "-Inf".
type WeightResponse struct {
	DatasetID weight.DatasetID `json:"dsid"`
	Weight    weight.JSONFloat `json:"weight"`
}

// TableResponse is the body returned for the whole table.
type TableResponse struct {
	Scale   weight.JSONFloat `json:"scale"`
	Weights []WeightResponse `json:"weights"`
}

// ScaleBody is the request and response body of the scale endpoints.
type ScaleBody struct {
	Scale *weight.JSONFloat `json:"scale"`
}

// SetWeightBody is the request body of PUT /api/v1/weights/{dsid}.
type SetWeightBody struct {
	Weight *weight.JSONFloat `json:"weight"`
}

// ApiV1Router manages routes for API version 1.
// All lookups return effective weights, i.e. already multiplied by the scale.
type ApiV1Router struct {
	// table — shared weight table; the router only uses its synchronized API.
	table *weight.SyncTable
	// unknown — recent lookups of datasets missing from the table.
	unknown *UnknownLog
}

// unknownLogSize is the number of unknown lookups kept for GET /api/v1/unknown.
const unknownLogSize = 100

// NewApiV1Router creates a new API v1 router over table.
func NewApiV1Router(table *weight.SyncTable) *ApiV1Router {
	return &ApiV1Router{
		table:   table,
		unknown: NewUnknownLog(unknownLogSize),
	}
}

// Mux returns the configured handler. Registered routes:
// - GET /api/v1/weights — all effective weights and the scale
// - DELETE /api/v1/weights — clear the table, scale is kept
// - GET /api/v1/weights/{dsid} — effective weight of one dataset
// - PUT /api/v1/weights/{dsid} — set the unscaled weight of one dataset
// - GET /api/v1/scale, PUT /api/v1/scale — read or replace the scale
// - GET /api/v1/unknown — recent lookups of unknown datasets, oldest first
func (ar *ApiV1Router) Mux() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(requestDuration)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/weights", ar.listHandler)
		r.Delete("/weights", ar.clearHandler)
		r.Get("/weights/{dsid}", ar.getHandler)
		r.Put("/weights/{dsid}", ar.setHandler)
		r.Get("/scale", ar.getScaleHandler)
		r.Put("/scale", ar.setScaleHandler)
		r.Get("/unknown", ar.unknownHandler)
	})

	return r
}

func (ar *ApiV1Router) listHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := ar.table.Snapshot()
	resp := TableResponse{
		Scale:   weight.JSONFloat(ar.table.Scale()),
		Weights: make([]WeightResponse, 0, len(snapshot)),
	}
	for id, wt := range snapshot {
		resp.Weights = append(resp.Weights, WeightResponse{DatasetID: id, Weight: weight.JSONFloat(wt)})
	}
	sortWeights(resp.Weights)
	writeJSON(w, http.StatusOK, resp)
}

func (ar *ApiV1Router) clearHandler(w http.ResponseWriter, r *http.Request) {
	ar.table.Clear()
	metrics.ObserveTable(0, ar.table.Scale())
	slog.Info("Weight table cleared")
	w.WriteHeader(http.StatusNoContent)
}

// getHandler answers 404 for an unknown dataset, never a zero weight.
func (ar *ApiV1Router) getHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDatasetID(w, r)
	if !ok {
		return
	}

	wt, err := ar.table.Weight(id)
	if errors.Is(err, weight.ErrUnknownDataset) {
		metrics.LookupsTotal.WithLabelValues(metrics.ResultUnknown).Inc()
		slog.Debug("Dataset not found", "dsid", id)
		ar.unknown.Push(id, time.Now())
		writeError(w, http.StatusNotFound, err)
		return
	}
	metrics.LookupsTotal.WithLabelValues(metrics.ResultFound).Inc()
	writeJSON(w, http.StatusOK, WeightResponse{DatasetID: id, Weight: weight.JSONFloat(wt)})
}

func (ar *ApiV1Router) setHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDatasetID(w, r)
	if !ok {
		return
	}

	var body SetWeightBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Weight == nil {
		slog.Warn("Unable to decode weight request body", "error", err)
		writeError(w, http.StatusUnprocessableEntity, errors.New("body must be {\"weight\": <number>}"))
		return
	}

	ar.table.SetWeight(id, float64(*body.Weight))
	metrics.ObserveTable(ar.table.Len(), ar.table.Scale())
	w.WriteHeader(http.StatusNoContent)
}

func (ar *ApiV1Router) getScaleHandler(w http.ResponseWriter, r *http.Request) {
	scale := weight.JSONFloat(ar.table.Scale())
	writeJSON(w, http.StatusOK, ScaleBody{Scale: &scale})
}

func (ar *ApiV1Router) setScaleHandler(w http.ResponseWriter, r *http.Request) {
	var body ScaleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Scale == nil {
		slog.Warn("Unable to decode scale request body", "error", err)
		writeError(w, http.StatusUnprocessableEntity, errors.New("body must be {\"scale\": <number>}"))
		return
	}

	scale := float64(*body.Scale)
	ar.table.SetScale(scale)
	metrics.ObserveTable(ar.table.Len(), scale)
	slog.Info("Luminosity scale changed", "scale", scale)
	w.WriteHeader(http.StatusNoContent)
}

func (ar *ApiV1Router) unknownHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ar.unknown.Recent())
}

// NewMetricsRouter returns the handler for health and Prometheus endpoints.
func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func parseDatasetID(w http.ResponseWriter, r *http.Request) (weight.DatasetID, bool) {
	raw := chi.URLParam(r, "dsid")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		slog.Warn("Invalid dataset id", "dsid", raw)
		writeError(w, http.StatusBadRequest, errors.New("invalid dataset id: "+raw))
		return 0, false
	}
	return weight.DatasetID(id), true
}

func sortWeights(weights []WeightResponse) {
	sort.Slice(weights, func(i, j int) bool {
		return weights[i].DatasetID < weights[j].DatasetID
	})
}

func requestDuration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// writeJSON encodes v before writing the header, so an encoding failure
// becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("Unable to marshal response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"unable to encode response"}` + "\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("Unable to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
