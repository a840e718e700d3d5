package usecase

import (
	"testing"

	"github.com/user/threat-ingestor/internal/domain"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier("Normal", 0.05)

	tests := []struct {
		name        string
		trafficType string
		score       float64
		want        domain.RiskLevel
	}{
		{"Threat And Anomalous", "DDoS", 0.12, domain.RiskCritical},
		{"Threat Not Anomalous", "Intrusion", 0.01, domain.RiskHigh},
		{"Benign But Anomalous", "Normal", 0.12, domain.RiskMedium},
		{"Benign Not Anomalous", "Normal", 0.01, domain.RiskLow},
		{"Threat At Threshold Boundary", "Malware", 0.05, domain.RiskHigh},
		{"Benign At Threshold Boundary", "Normal", 0.05, domain.RiskLow},
		{"Fallback Prediction", domain.FallbackTrafficType, 0.0, domain.RiskHigh},
		{"Negative Score", "Normal", -0.3, domain.RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(domain.Prediction{TrafficType: tt.trafficType, AnomalyScore: tt.score})
			if got != tt.want {
				t.Errorf("Classify(%q, %v) = %s, want %s", tt.trafficType, tt.score, got, tt.want)
			}
		})
	}
}

func TestClassifier_ConfiguredThreshold(t *testing.T) {
	c := NewClassifier("benign", 0.5)

	if got := c.Classify(domain.Prediction{TrafficType: "benign", AnomalyScore: 0.3}); got != domain.RiskLow {
		t.Errorf("expected LOW below configured threshold, got %s", got)
	}
	if got := c.Classify(domain.Prediction{TrafficType: "benign", AnomalyScore: 0.6}); got != domain.RiskMedium {
		t.Errorf("expected MEDIUM above configured threshold, got %s", got)
	}
	if got := c.Classify(domain.Prediction{TrafficType: "Normal", AnomalyScore: 0.1}); got != domain.RiskHigh {
		t.Errorf("expected HIGH for non-benign label, got %s", got)
	}
}

func TestRiskLevel_Alertable(t *testing.T) {
	if domain.RiskLow.Alertable() || domain.RiskMedium.Alertable() {
		t.Error("LOW and MEDIUM must not be alertable")
	}
	if !domain.RiskHigh.Alertable() || !domain.RiskCritical.Alertable() {
		t.Error("HIGH and CRITICAL must be alertable")
	}
}
