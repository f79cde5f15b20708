package model

import "math/rand/v2"

// Built-in placeholder models. They stand in for externally trained backends
// and produce randomized but well-shaped outputs.

const (
	AnomalyDetectionID      = "anomaly_detection"
	PredictiveMaintenanceID = "predictive_maintenance"
)

// AnomalyDetection scores inputs with a uniform random anomaly score and
// flags scores above the threshold as anomalous.
type AnomalyDetection struct {
	// Threshold above which an observation is flagged. Defaults to 0.8
	// when zero.
	Threshold float64
}

func (m AnomalyDetection) Predict(features FeatureMap) (ResultMap, error) {
	threshold := m.Threshold
	if threshold == 0 {
		threshold = 0.8
	}
	score := rand.Float64()
	return ResultMap{
		"anomaly_score": score,
		"is_anomaly":    score > threshold,
	}, nil
}

// PredictiveMaintenance estimates remaining useful life from a normal
// distribution and pairs it with a uniform failure probability.
type PredictiveMaintenance struct {
	// MeanLife and LifeStdDev shape the remaining-useful-life estimate.
	// Zero values fall back to 1000 and 200 respectively.
	MeanLife   float64
	LifeStdDev float64
}

func (m PredictiveMaintenance) Predict(features FeatureMap) (ResultMap, error) {
	mean := m.MeanLife
	if mean == 0 {
		mean = 1000
	}
	stddev := m.LifeStdDev
	if stddev == 0 {
		stddev = 200
	}
	return ResultMap{
		"remaining_useful_life": int(rand.NormFloat64()*stddev + mean),
		"failure_probability":   rand.Float64(),
	}, nil
}

// DefaultRegistry returns a registry preloaded with the built-in models.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register(AnomalyDetectionID, AnomalyDetection{}); err != nil {
		panic(err)
	}
	if err := r.Register(PredictiveMaintenanceID, PredictiveMaintenance{}); err != nil {
		panic(err)
	}
	return r
}
