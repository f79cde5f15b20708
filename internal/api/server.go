// Package api serves the synchronous HTTP channel: health, model discovery,
// and on-demand predictions.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/modelbus/modelbus/internal/bus"
	"github.com/modelbus/modelbus/internal/jsoncodec"
	"github.com/modelbus/modelbus/internal/logging"
	"github.com/modelbus/modelbus/internal/metrics"
	"github.com/modelbus/modelbus/internal/model"
	"github.com/modelbus/modelbus/internal/prediction"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// BusStatus exposes the bus lifecycle state to the health endpoint. The API
// stays healthy regardless of what it reports; the state is informational.
type BusStatus interface {
	State() bus.State
}

// Server exposes the HTTP surface over the shared dispatcher.
type Server struct {
	registry   *model.Registry
	dispatcher *prediction.Dispatcher
	bus        BusStatus
	collector  *metrics.Collector
	logger     logging.ServiceLogger
}

// NewServer wires the HTTP surface. bus may be nil when the service runs
// API-only.
func NewServer(registry *model.Registry, dispatcher *prediction.Dispatcher, bus BusStatus, collector *metrics.Collector, logger logging.ServiceLogger) *Server {
	if registry == nil {
		panic("modelbus: api server requires a registry")
	}
	if dispatcher == nil {
		panic("modelbus: api server requires a dispatcher")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		registry:   registry,
		dispatcher: dispatcher,
		bus:        bus,
		collector:  collector,
		logger:     logger,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/models", s.handleModels)
	r.Post("/predict/{modelID}", s.handlePredict)

	return r
}

type healthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version"`
	Models  []string `json:"models"`
	Bus     string   `json:"bus"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	busState := "disabled"
	if s.bus != nil {
		busState = s.bus.State().String()
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: Version,
		Models:  s.registry.IDs(),
		Bus:     busState,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.IDs())
}

type predictRequest struct {
	ModelID  string           `json:"model_id"`
	Features model.FeatureMap `json:"features"`
	Metadata map[string]any   `json:"metadata"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")

	var req predictRequest
	if err := jsoncodec.Decode(r.Body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Features) == 0 {
		s.writeError(w, http.StatusBadRequest, "features are required")
		return
	}

	// The path identifier wins over any model_id in the body.
	result, err := s.dispatcher.Dispatch(r.Context(), modelID, req.Features, req.Metadata)
	if err != nil {
		s.recordPrediction(modelID, err)
		s.respondDispatchError(w, modelID, err)
		return
	}
	s.recordPrediction(modelID, nil)

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) respondDispatchError(w http.ResponseWriter, modelID string, err error) {
	var notFound *prediction.ModelNotFoundError
	if errors.As(err, &notFound) {
		s.writeError(w, http.StatusNotFound, notFound.Error())
		return
	}

	s.logger.Error("Prediction failed", err, logging.LogFields{"model_id": modelID})
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) recordPrediction(modelID string, err error) {
	if s.collector == nil {
		return
	}

	outcome := metrics.OutcomeOK
	var notFound *prediction.ModelNotFoundError
	switch {
	case err == nil:
	case errors.As(err, &notFound):
		outcome = metrics.OutcomeModelNotFound
	default:
		outcome = metrics.OutcomeExecutionError
	}
	s.collector.RecordPrediction(modelID, metrics.ChannelAPI, outcome)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsoncodec.Encode(w, v); err != nil {
		s.logger.Error("Failed to encode response", err, nil)
	}
}
