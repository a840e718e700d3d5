package notifier

import (
	"fmt"

	"github.com/user/threat-ingestor/internal/domain"
)

// FormatAlert renders the plain-text alert block sent to the notification
// channel. The anomaly score is fixed to three decimal places.
func FormatAlert(rec domain.PersistedRecord) string {
	return fmt.Sprintf(
		"High-risk anomaly detected!\n"+
			"Timestamp: %s\n"+
			"Source IP: %s\n"+
			"Destination IP: %s\n"+
			"Protocol: %s\n"+
			"Anomaly Score: %.3f\n"+
			"Predicted Traffic Type: %s\n"+
			"Risk Flag: %s",
		rec.Timestamp,
		rec.SourceIP,
		rec.DestinationIP,
		rec.Protocol,
		rec.Prediction.AnomalyScore,
		rec.Prediction.TrafficType,
		rec.Risk,
	)
}
