// Package model defines the prediction capability contract and the registry
// that maps model identifiers to capabilities.
package model

// FeatureMap is the named scalar input of a prediction. Values are one of
// float, integer, string, or boolean; ordering is irrelevant. It is never
// mutated after creation.
type FeatureMap map[string]any

// ResultMap is the structured output of a prediction, produced fresh per call
// and owned by the caller after return.
type ResultMap map[string]any

// Capability is a pluggable prediction backend. Implementations must be safe
// for concurrent use: both ingress channels invoke them without coordination.
type Capability interface {
	Predict(features FeatureMap) (ResultMap, error)
}

// CapabilityFunc adapts a plain function to the Capability interface.
type CapabilityFunc func(features FeatureMap) (ResultMap, error)

func (f CapabilityFunc) Predict(features FeatureMap) (ResultMap, error) {
	return f(features)
}
