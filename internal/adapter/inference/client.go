package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/threat-ingestor/internal/domain"
)

const apiKeyHeader = "x-api-key"

// predictRequest mirrors the inference service's input contract. Field names
// are fixed by the serving layer and must not be renamed.
type predictRequest struct {
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
}

type predictResponse struct {
	PredictedTrafficType string  `json:"Predicted_Traffic_Type"`
	AnomalyScore         float64 `json:"Anomaly_Score"`
	RiskFlag             string  `json:"Risk_Flag"`
	ConfidenceScore      float64 `json:"Confidence_Score"`
}

// Client calls the external inference service. It implements
// domain.Enricher: every failure mode collapses to fallback values plus
// domain.ErrEnrichmentUnavailable, never a raised error that could drop the
// record.
type Client struct {
	url        string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	latency    prometheus.Observer // optional
	logger     *slog.Logger
}

// NewClient creates an inference client with a per-call timeout. latency may
// be nil.
func NewClient(url, apiKey string, timeout time.Duration, latency prometheus.Observer, logger *slog.Logger) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{},
		latency:    latency,
		logger:     logger.With("component", "inference_client"),
	}
}

// Predict issues one POST per record. The timeout cancels only this call;
// the surrounding batch keeps going with the fallback prediction.
func (c *Client) Predict(ctx context.Context, rec domain.LogRecord) (domain.Prediction, error) {
	body, err := json.Marshal(predictRequest{
		Protocol:          rec.Protocol,
		PacketType:        rec.PacketType,
		DeviceInformation: rec.DeviceInformation,
		NetworkSegment:    rec.NetworkSegment,
		GeoLocationData:   rec.GeoLocationData,
		ProxyInformation:  rec.ProxyInformation,
		LogSource:         rec.LogSource,
		PacketLength:      rec.PacketLength,
		PacketCount:       rec.PacketCount,
		FlowDuration:      rec.FlowDuration,
		PayloadEntropy:    rec.PayloadEntropy,
		PCAAnomalyScore:   rec.PCAAnomalyScore,
	})
	if err != nil {
		return domain.FallbackPrediction(), fmt.Errorf("%w: marshal request: %v", domain.ErrEnrichmentUnavailable, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.FallbackPrediction(), fmt.Errorf("%w: build request: %v", domain.ErrEnrichmentUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.latency != nil {
		c.latency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return domain.FallbackPrediction(), fmt.Errorf("%w: %v", domain.ErrEnrichmentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.FallbackPrediction(), fmt.Errorf("%w: status %d: %s", domain.ErrEnrichmentUnavailable, resp.StatusCode, detail)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.FallbackPrediction(), fmt.Errorf("%w: decode response: %v", domain.ErrEnrichmentUnavailable, err)
	}

	pred := domain.Prediction{
		TrafficType:  cleanLabel(out.PredictedTrafficType),
		AnomalyScore: out.AnomalyScore,
		Confidence:   out.ConfidenceScore,
	}
	if pred.TrafficType == "" {
		pred.TrafficType = domain.FallbackTrafficType
	}
	return pred, nil
}

// cleanLabel strips the stringified-array wrapper (e.g. "['DDoS']") that the
// model emits around some labels.
func cleanLabel(s string) string {
	return strings.Trim(s, "[]'")
}
