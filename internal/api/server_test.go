package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelbus/modelbus/internal/bus"
	"github.com/modelbus/modelbus/internal/jsoncodec"
	"github.com/modelbus/modelbus/internal/logging"
	"github.com/modelbus/modelbus/internal/model"
	"github.com/modelbus/modelbus/internal/prediction"
)

type stubBus struct {
	state bus.State
}

func (s *stubBus) State() bus.State { return s.state }

func newTestServer(t *testing.T, busStatus BusStatus) *Server {
	t.Helper()

	registry := model.NewRegistry()
	err := registry.Register("static", model.CapabilityFunc(func(features model.FeatureMap) (model.ResultMap, error) {
		return model.ResultMap{"value": 42}, nil
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = registry.Register("failing", model.CapabilityFunc(func(model.FeatureMap) (model.ResultMap, error) {
		return nil, errors.New("backend unavailable")
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dispatcher := prediction.NewDispatcher(registry, logging.Nop())
	return NewServer(registry, dispatcher, busStatus, nil, logging.Nop())
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := jsoncodec.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unexpected error decoding body %q: %v", rec.Body.String(), err)
	}
}

func TestHealthStaysHealthyWithBusDown(t *testing.T) {
	server := newTestServer(t, &stubBus{state: bus.StateStopped})

	rec := doRequest(t, server, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var health healthResponse
	decodeBody(t, rec, &health)
	if health.Status != "healthy" {
		t.Fatalf("expected healthy, got %s", health.Status)
	}
	if health.Bus != "stopped" {
		t.Fatalf("expected bus stopped, got %s", health.Bus)
	}
	if health.Version != Version {
		t.Fatalf("expected version %s, got %s", Version, health.Version)
	}
	if len(health.Models) != 2 {
		t.Fatalf("expected 2 models, got %v", health.Models)
	}
}

func TestHealthWithoutBus(t *testing.T) {
	server := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var health healthResponse
	decodeBody(t, rec, &health)
	if health.Bus != "disabled" {
		t.Fatalf("expected bus disabled, got %s", health.Bus)
	}
}

func TestModelsListsRegisteredIDs(t *testing.T) {
	server := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/models", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var models []string
	decodeBody(t, rec, &models)
	expected := []string{"failing", "static"}
	if len(models) != len(expected) {
		t.Fatalf("expected %d models, got %v", len(expected), models)
	}
	for i := range expected {
		if models[i] != expected[i] {
			t.Fatalf("expected models[%d]=%s, got %s", i, expected[i], models[i])
		}
	}
}

func TestPredictReturnsResult(t *testing.T) {
	server := newTestServer(t, nil)

	body := `{"features":{"temperature":21.5},"metadata":{"source":"sensor-7"}}`
	rec := doRequest(t, server, http.MethodPost, "/predict/static", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result prediction.Result
	decodeBody(t, rec, &result)
	if result.ModelID != "static" {
		t.Fatalf("expected model_id static, got %s", result.ModelID)
	}
	if result.PredictionID == "" {
		t.Fatal("expected prediction id to be set")
	}
	if result.InputFeatures["temperature"] == nil {
		t.Fatalf("expected features echoed, got %v", result.InputFeatures)
	}
	if result.Metadata["source"] != "sensor-7" {
		t.Fatalf("expected metadata echoed, got %v", result.Metadata)
	}
}

func TestPredictPathOverridesBodyModelID(t *testing.T) {
	server := newTestServer(t, nil)

	body := `{"model_id":"failing","features":{"x":1}}`
	rec := doRequest(t, server, http.MethodPost, "/predict/static", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result prediction.Result
	decodeBody(t, rec, &result)
	if result.ModelID != "static" {
		t.Fatalf("expected path model to win, got %s", result.ModelID)
	}
}

func TestPredictUnknownModelReturns404(t *testing.T) {
	server := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodPost, "/predict/missing", `{"features":{"x":1}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Error == "" {
		t.Fatal("expected error message in body")
	}
}

func TestPredictExecutionFailureReturns500(t *testing.T) {
	server := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodPost, "/predict/failing", `{"features":{"x":1}}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Error == "" {
		t.Fatal("expected error message in body")
	}
}

func TestPredictMalformedBodyReturns400(t *testing.T) {
	server := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodPost, "/predict/static", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPredictMissingFeaturesReturns400(t *testing.T) {
	server := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodPost, "/predict/static", `{"metadata":{"a":1}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
