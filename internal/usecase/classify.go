package usecase

import "github.com/user/threat-ingestor/internal/domain"

// Classifier derives a discrete risk level from a prediction. The anomaly
// threshold and the benign-traffic sentinel label are configuration, not
// literals, so classification can be tuned without a redeploy.
type Classifier struct {
	normalLabel      string
	anomalyThreshold float64
}

// NewClassifier creates a Classifier with the given benign label and anomaly
// score threshold.
func NewClassifier(normalLabel string, anomalyThreshold float64) *Classifier {
	return &Classifier{
		normalLabel:      normalLabel,
		anomalyThreshold: anomalyThreshold,
	}
}

// Classify is total: every prediction maps to exactly one risk level.
// A score exactly at the threshold is not anomalous.
func (c *Classifier) Classify(p domain.Prediction) domain.RiskLevel {
	threat := p.TrafficType != c.normalLabel
	anomalous := p.AnomalyScore > c.anomalyThreshold

	switch {
	case threat && anomalous:
		return domain.RiskCritical
	case threat:
		return domain.RiskHigh
	case anomalous:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
