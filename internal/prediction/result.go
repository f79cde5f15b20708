// Package prediction implements the single dispatch path shared by both
// ingress channels: resolve a model, invoke it, and wrap the output in a
// normalized result envelope.
package prediction

import "github.com/modelbus/modelbus/internal/model"

// Result is the normalized prediction envelope. It is serialized identically
// regardless of which ingress channel produced it, and is immutable once
// constructed.
type Result struct {
	PredictionID  string           `json:"prediction_id"`
	ModelID       string           `json:"model_id"`
	Predictions   model.ResultMap  `json:"predictions"`
	Timestamp     string           `json:"timestamp"`
	InputFeatures model.FeatureMap `json:"input_features"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
}
