// Package server exposes the prediction pipeline over HTTP: single
// predictions, explanations, CSV batch uploads with downloadable reports,
// training-range lookup, batch progress over WebSocket, and health checks.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pbpd/internal/batch"
	"pbpd/internal/engine"
	"pbpd/internal/features"
	"pbpd/internal/material"
	"pbpd/internal/storage"
	"pbpd/internal/validate"
)

// Server wires the pipeline components behind an HTTP API.
type Server struct {
	engine  *engine.Engine
	store   *storage.Store // nil when history is disabled
	workers int
	hub     *progressHub
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables prediction and batch history persistence.
func WithStore(s *storage.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithBatchWorkers sets row-level parallelism for uploaded batches.
func WithBatchWorkers(n int) Option {
	return func(srv *Server) { srv.workers = n }
}

// New creates a server over a prediction engine.
func New(e *engine.Engine, opts ...Option) *Server {
	srv := &Server{engine: e, workers: 4, hub: newProgressHub()}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Routes registers all handlers on a mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/predict", s.handlePredict)
	mux.HandleFunc("POST /api/v1/explain", s.handleExplain)
	mux.HandleFunc("POST /api/v1/batch", s.handleBatch)
	mux.HandleFunc("GET /api/v1/batch/{id}/report.csv", s.handleBatchReport)
	mux.HandleFunc("GET /api/v1/ranges/{material}", s.handleRanges)
	mux.HandleFunc("GET /ws/batch/{id}", s.handleBatchProgress)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// predictRequest is the single-prediction payload. Material accepts a short
// key ("ti") or a free-text label ("Ti-6Al-4V"); when both are absent the
// group is inferred from bulk density.
type predictRequest struct {
	Material     string                  `json:"material,omitempty"`
	Measurements features.RawMeasurement `json:"measurements"`
}

func (s *Server) resolveGroup(req predictRequest) (material.Group, error) {
	if req.Material != "" {
		if g, err := material.Parse(req.Material); err == nil {
			return g, nil
		}
		return material.FromLabel(req.Material)
	}
	if bulk, ok := req.Measurements[features.BulkDensity]; ok {
		return material.FromDensity(bulk), nil
	}
	return 0, &material.UnknownMaterialError{Label: ""}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}

	g, err := s.resolveGroup(req)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	result, err := s.engine.Predict(req.Measurements, g)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	if s.store != nil {
		if err := s.store.SavePrediction(result); err != nil {
			log.Warn().Err(err).Msg("failed to persist prediction")
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}

	g, err := s.resolveGroup(req)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	exp, err := s.engine.Explain(req.Measurements, g)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// validBatchID bounds client-supplied batch IDs: they become URL path
// segments and report filenames, so only a tame charset is accepted.
func validBatchID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// handleBatch runs an uploaded CSV through the pipeline. A client that wants
// live progress picks its own batch ID via the "id" form field and subscribes
// to /ws/batch/{id} before uploading; a server-generated ID would only be
// disclosed after processing finished, too late to watch.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", fmt.Errorf("missing file upload: %w", err))
		return
	}
	defer file.Close()

	id := r.FormValue("id")
	if id == "" {
		id = time.Now().UTC().Format("20060102-150405.000")
	} else if !validBatchID(id) {
		writeError(w, http.StatusBadRequest, "BadRequest", fmt.Errorf("invalid batch id %q", id))
		return
	}

	processor := batch.NewProcessor(s.engine,
		batch.WithWorkers(s.workers),
		batch.WithProgress(func(done, total int) {
			s.hub.publish(id, done, total)
		}),
	)

	report, err := processor.Process(r.Context(), file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err)
		return
	}

	var csvBuf bytes.Buffer
	if err := batch.NewReporter(report, "").WriteCSV(&csvBuf); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal", err)
		return
	}

	rec := storage.BatchRecord{
		ID:        id,
		Rows:      len(report.Rows),
		Succeeded: report.Succeeded(),
		Failed:    report.Failed(),
		ReportCSV: csvBuf.Bytes(),
		Timestamp: time.Now().UTC(),
	}
	if s.store != nil {
		if err := s.store.SaveBatch(rec); err != nil {
			log.Warn().Err(err).Str("batch", id).Msg("failed to persist batch report")
		}
	}
	s.hub.finish(id)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        rec.ID,
		"rows":      rec.Rows,
		"succeeded": rec.Succeeded,
		"failed":    rec.Failed,
		"report":    fmt.Sprintf("/api/v1/batch/%s/report.csv", rec.ID),
	})
}

func (s *Server) handleBatchReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "NotFound", errors.New("history storage is disabled"))
		return
	}
	id := r.PathValue("id")
	rec, err := s.store.GetBatch(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "NotFound", fmt.Errorf("unknown batch %s", id))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=pbpd_predictions_%s.csv", id))
	w.Write(rec.ReportCSV)
}

func (s *Server) handleRanges(w http.ResponseWriter, r *http.Request) {
	g, err := material.Parse(r.PathValue("material"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"material": g,
		"schema":   features.Schema(g),
		"ranges":   validate.Ranges(g),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// writePipelineError maps the error taxonomy onto HTTP statuses: input
// problems are 422, a dead model is 503, the rest 500.
func writePipelineError(w http.ResponseWriter, err error) {
	kind := engine.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case engine.KindMissingField, engine.KindDivisionByZero, engine.KindUnknownMaterial, engine.KindMalformedRow:
		status = http.StatusUnprocessableEntity
	case engine.KindModelLoad:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, kind.String(), err)
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	msg := strings.TrimSpace(err.Error())
	writeJSON(w, status, errorResponse{Kind: kind, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
