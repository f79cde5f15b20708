package prediction

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/modelbus/modelbus/internal/ids"
	"github.com/modelbus/modelbus/internal/logging"
	"github.com/modelbus/modelbus/internal/model"
)

// Dispatcher resolves a model identifier against the registry and invokes the
// capability synchronously. Both ingress channels call Dispatch; neither gets
// a different result shape for the same (modelID, features) pair, modulo
// prediction id and timestamp.
type Dispatcher struct {
	registry *model.Registry
	logger   logging.ServiceLogger
	tracer   trace.Tracer
}

// NewDispatcher constructs a Dispatcher over the given read-only registry.
func NewDispatcher(registry *model.Registry, logger logging.ServiceLogger) *Dispatcher {
	if registry == nil {
		panic("modelbus: dispatcher requires a registry")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger,
		tracer:   otel.Tracer("modelbus/dispatcher"),
	}
}

// Dispatch looks up modelID, invokes the capability with features, and wraps
// the raw output into a Result with a fresh prediction id and capture
// timestamp. Features and metadata are echoed verbatim. Lookup failure
// short-circuits before any result is constructed; capability failure is
// wrapped in ExecutionError and propagated without retry.
func (d *Dispatcher) Dispatch(ctx context.Context, modelID string, features model.FeatureMap, metadata map[string]any) (*Result, error) {
	_, span := d.tracer.Start(ctx, "Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("model.id", modelID))

	capability, ok := d.registry.Lookup(modelID)
	if !ok {
		err := &ModelNotFoundError{ModelID: modelID}
		span.RecordError(err)
		return nil, err
	}

	predictions, err := capability.Predict(features)
	if err != nil {
		execErr := &ExecutionError{ModelID: modelID, Err: err}
		span.RecordError(execErr)
		d.logger.Error("Model invocation failed", err, logging.LogFields{"model_id": modelID})
		return nil, execErr
	}

	result := &Result{
		PredictionID:  ids.NewPredictionID(),
		ModelID:       modelID,
		Predictions:   predictions,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		InputFeatures: features,
		Metadata:      metadata,
	}

	d.logger.Debug("Dispatched prediction", logging.LogFields{
		"model_id":      modelID,
		"prediction_id": result.PredictionID,
	})
	return result, nil
}
