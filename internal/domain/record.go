package domain

import "fmt"

// logIDSeparator joins the identity fields of a record into its DedupKey.
// The rule is deliberately simple: two events with the same timestamp,
// source and destination are treated as the same logical event.
const logIDSeparator = "_"

// RawEvent is an opaque payload handed to the pipeline by the transport,
// together with its position on the stream.
type RawEvent struct {
	Payload   []byte
	Partition int32
	Offset    int64
}

// LogRecord is a normalized network-security log event. Field names mirror
// the upstream producer's JSON encoding.
type LogRecord struct {
	Timestamp         string  `json:"Timestamp"`
	SourceIP          string  `json:"Source_IP_Address"`
	DestinationIP     string  `json:"Destination_IP_Address"`
	Protocol          string  `json:"Protocol"`
	PacketType        string  `json:"Packet_Type"`
	DeviceInformation string  `json:"Device_Information"`
	NetworkSegment    string  `json:"Network_Segment"`
	GeoLocationData   string  `json:"Geo_location_Data"`
	ProxyInformation  string  `json:"Proxy_Information"`
	LogSource         string  `json:"Log_Source"`
	PacketLength      float64 `json:"Packet_Length"`
	PacketCount       float64 `json:"Packet_Count"`
	FlowDuration      float64 `json:"Flow_Duration"`
	PayloadEntropy    float64 `json:"Payload_Entropy"`
	PCAAnomalyScore   float64 `json:"pca_anomaly_score"`

	// LogID is the derived deduplication key, set after normalization.
	LogID string `json:"-"`
}

// DeriveLogID computes the deduplication key for a record. This is the only
// place the composite-key rule lives.
func DeriveLogID(r LogRecord) string {
	return r.Timestamp + logIDSeparator + r.SourceIP + logIDSeparator + r.DestinationIP
}

// Prediction is the classification attached to a record by the inference
// service, or the fallback values when the service was unavailable.
type Prediction struct {
	TrafficType  string
	AnomalyScore float64
	Confidence   float64
}

// FallbackTrafficType is the label substituted when enrichment fails.
const FallbackTrafficType = "Unknown"

// FallbackPrediction returns the prediction used when the inference service
// could not be reached or returned an unusable response.
func FallbackPrediction() Prediction {
	return Prediction{TrafficType: FallbackTrafficType, AnomalyScore: 0, Confidence: 0}
}

// RiskLevel is the discrete severity derived from a prediction.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Alertable reports whether a record at this risk level should be dispatched
// to the notification channel.
func (r RiskLevel) Alertable() bool {
	return r == RiskHigh || r == RiskCritical
}

// PersistedRecord is the fully enriched record written to the durable store,
// keyed by LogRecord.LogID.
type PersistedRecord struct {
	LogRecord
	Prediction Prediction
	Risk       RiskLevel
}

func (p PersistedRecord) String() string {
	return fmt.Sprintf("%s risk=%s type=%s", p.LogID, p.Risk, p.Prediction.TrafficType)
}
