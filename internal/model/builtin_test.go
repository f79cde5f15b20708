package model

import "testing"

func TestAnomalyDetectionShape(t *testing.T) {
	m := AnomalyDetection{}

	for i := 0; i < 50; i++ {
		out, err := m.Predict(FeatureMap{"temperature": 21.5})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		score, ok := out["anomaly_score"].(float64)
		if !ok {
			t.Fatalf("expected float64 anomaly_score, got %T", out["anomaly_score"])
		}
		if score < 0 || score >= 1 {
			t.Fatalf("expected score in [0,1), got %f", score)
		}

		isAnomaly, ok := out["is_anomaly"].(bool)
		if !ok {
			t.Fatalf("expected bool is_anomaly, got %T", out["is_anomaly"])
		}
		if isAnomaly != (score > 0.8) {
			t.Fatalf("is_anomaly=%v inconsistent with score %f and threshold 0.8", isAnomaly, score)
		}
	}
}

func TestAnomalyDetectionCustomThreshold(t *testing.T) {
	// A threshold above the score range means nothing is ever anomalous.
	m := AnomalyDetection{Threshold: 2}

	for i := 0; i < 20; i++ {
		out, err := m.Predict(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out["is_anomaly"].(bool) {
			t.Fatal("expected no anomaly with threshold above score range")
		}
	}
}

func TestPredictiveMaintenanceShape(t *testing.T) {
	m := PredictiveMaintenance{}

	out, err := m.Predict(FeatureMap{"vibration": 0.3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := out["remaining_useful_life"].(int); !ok {
		t.Fatalf("expected int remaining_useful_life, got %T", out["remaining_useful_life"])
	}
	probability, ok := out["failure_probability"].(float64)
	if !ok {
		t.Fatalf("expected float64 failure_probability, got %T", out["failure_probability"])
	}
	if probability < 0 || probability >= 1 {
		t.Fatalf("expected probability in [0,1), got %f", probability)
	}
}

func TestDefaultRegistryModels(t *testing.T) {
	r := DefaultRegistry()

	ids := r.IDs()
	expected := []string{AnomalyDetectionID, PredictiveMaintenanceID}
	if len(ids) != len(expected) {
		t.Fatalf("expected %d models, got %d", len(expected), len(ids))
	}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Fatalf("expected ids[%d]=%s, got %s", i, expected[i], ids[i])
		}
	}
}
