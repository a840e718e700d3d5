package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/user/threat-ingestor/internal/domain"
	"github.com/user/threat-ingestor/internal/domain/mocks"
)

func testPayload(ts, src, dst string, score float64) []byte {
	return []byte(fmt.Sprintf(
		`{"Timestamp": %q, "Source_IP_Address": %q, "Destination_IP_Address": %q, "Protocol": "TCP", "pca_anomaly_score": %v}`,
		ts, src, dst, score,
	))
}

func newTestPipeline(store *mocks.MockRecordRepository, enricher *mocks.MockEnricher, cache domain.DedupCache, notifier domain.Notifier) *ProcessBatchUseCase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	classifier := NewClassifier("Normal", 0.05)
	return NewProcessBatchUseCase(store, enricher, classifier, cache, notifier, logger)
}

func TestProcessBatchUseCase_ProcessBatch(t *testing.T) {
	benign := domain.Prediction{TrafficType: "Normal", AnomalyScore: 0.01, Confidence: 0.9}

	t.Run("Empty Batch Is A No-Op", func(t *testing.T) {
		store := &mocks.MockRecordRepository{}
		notifier := &mocks.MockNotifier{}
		uc := newTestPipeline(store, &mocks.MockEnricher{Result: benign}, nil, notifier)

		stats := uc.ProcessBatch(context.Background(), nil)

		if stats.Received != 0 || stats.Persisted != 0 {
			t.Errorf("expected empty stats, got %+v", stats)
		}
		if len(store.Inserted) != 0 {
			t.Errorf("expected no inserts, got %d", len(store.Inserted))
		}
		if len(notifier.Notified) != 0 {
			t.Errorf("expected no alerts, got %d", len(notifier.Notified))
		}
	})

	t.Run("Idempotent Dedup Across Batches", func(t *testing.T) {
		store := &mocks.MockRecordRepository{}
		uc := newTestPipeline(store, &mocks.MockEnricher{Result: benign}, nil, nil)

		ev := domain.RawEvent{Payload: testPayload("2025-04-01T10:00:00Z", "10.0.0.1", "10.0.0.2", 0.01)}

		first := uc.ProcessBatch(context.Background(), []domain.RawEvent{ev})
		second := uc.ProcessBatch(context.Background(), []domain.RawEvent{ev})

		if first.Persisted != 1 {
			t.Errorf("expected first batch to persist 1, got %+v", first)
		}
		if second.Duplicates != 1 || second.Persisted != 0 {
			t.Errorf("expected second batch to skip the duplicate, got %+v", second)
		}
		if len(store.Inserted) != 1 {
			t.Fatalf("expected exactly 1 persisted record, got %d", len(store.Inserted))
		}
	})

	t.Run("Insert Conflict Is The Authoritative Duplicate Signal", func(t *testing.T) {
		// Pre-check fails, so the record races through to the insert, where
		// the uniqueness constraint rejects it.
		store := &mocks.MockRecordRepository{
			ExistsErr:   errors.New("store read timeout"),
			ExistingIDs: map[string]bool{"t_a_b": true},
		}
		cache := &mocks.MockDedupCache{}
		uc := newTestPipeline(store, &mocks.MockEnricher{Result: benign}, cache, nil)

		stats := uc.ProcessBatch(context.Background(), []domain.RawEvent{
			{Payload: testPayload("t", "a", "b", 0.01)},
		})

		if stats.Duplicates != 1 || stats.Failed != 0 {
			t.Errorf("expected 1 duplicate and no failures, got %+v", stats)
		}
		if store.InsertCalls != 1 {
			t.Errorf("expected 1 insert attempt, got %d", store.InsertCalls)
		}
		// A confirmed conflict is as good as a write: the cache learns it.
		if len(cache.Marked) != 1 || cache.Marked[0] != "t_a_b" {
			t.Errorf("expected the conflicting id to be marked in the cache, got %v", cache.Marked)
		}
	})

	t.Run("Malformed Record Does Not Stall The Batch", func(t *testing.T) {
		store := &mocks.MockRecordRepository{}
		uc := newTestPipeline(store, &mocks.MockEnricher{Result: benign}, nil, nil)

		stats := uc.ProcessBatch(context.Background(), []domain.RawEvent{
			{Payload: []byte("not json at all")},
			{Payload: testPayload("t", "a", "b", 0.01)},
		})

		if stats.Malformed != 1 {
			t.Errorf("expected 1 malformed, got %+v", stats)
		}
		if stats.Persisted != 1 {
			t.Errorf("expected processing to continue past the malformed record, got %+v", stats)
		}
	})

	t.Run("Enrichment Fallback Still Persists", func(t *testing.T) {
		store := &mocks.MockRecordRepository{}
		notifier := &mocks.MockNotifier{}
		enricher := &mocks.MockEnricher{Err: fmt.Errorf("%w: status 500", domain.ErrEnrichmentUnavailable)}
		uc := newTestPipeline(store, enricher, nil, notifier)

		stats := uc.ProcessBatch(context.Background(), []domain.RawEvent{
			{Payload: testPayload("t", "a", "b", 0.12)},
		})

		if stats.Persisted != 1 || stats.Degraded != 1 {
			t.Fatalf("expected 1 degraded persisted record, got %+v", stats)
		}
		rec := store.Inserted[0]
		if rec.Prediction.TrafficType != domain.FallbackTrafficType {
			t.Errorf("expected fallback traffic type, got %q", rec.Prediction.TrafficType)
		}
		if rec.Prediction.Confidence != 0.0 || rec.Prediction.AnomalyScore != 0.0 {
			t.Errorf("expected fallback scores, got %+v", rec.Prediction)
		}
		// Unknown traffic with a zeroed score classifies as HIGH per the
		// risk table, so an alert attempt is expected.
		if rec.Risk != domain.RiskHigh {
			t.Errorf("expected fallback risk HIGH, got %s", rec.Risk)
		}
		if len(notifier.Notified) != 1 {
			t.Errorf("expected 1 alert attempt, got %d", len(notifier.Notified))
		}
	})

	t.Run("Alert Gating", func(t *testing.T) {
		cases := []struct {
			name       string
			prediction domain.Prediction
			wantRisk   domain.RiskLevel
			wantAlerts int
		}{
			{"Low", domain.Prediction{TrafficType: "Normal", AnomalyScore: 0.01}, domain.RiskLow, 0},
			{"Medium", domain.Prediction{TrafficType: "Normal", AnomalyScore: 0.2}, domain.RiskMedium, 0},
			{"High", domain.Prediction{TrafficType: "PortScan", AnomalyScore: 0.01}, domain.RiskHigh, 1},
			{"Critical", domain.Prediction{TrafficType: "DDoS", AnomalyScore: 0.2}, domain.RiskCritical, 1},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				store := &mocks.MockRecordRepository{}
				notifier := &mocks.MockNotifier{}
				uc := newTestPipeline(store, &mocks.MockEnricher{Result: tc.prediction}, nil, notifier)

				stats := uc.ProcessBatch(context.Background(), []domain.RawEvent{
					{Payload: testPayload("t", "a", "b", tc.prediction.AnomalyScore)},
				})

				if stats.Persisted != 1 {
					t.Fatalf("expected record to persist, got %+v", stats)
				}
				if store.Inserted[0].Risk != tc.wantRisk {
					t.Errorf("expected risk %s, got %s", tc.wantRisk, store.Inserted[0].Risk)
				}
				if len(notifier.Notified) != tc.wantAlerts {
					t.Errorf("expected %d alert attempts, got %d", tc.wantAlerts, len(notifier.Notified))
				}
			})
		}
	})

	t.Run("Alert Failure Never Fails The Record", func(t *testing.T) {
		store := &mocks.MockRecordRepository{}
		notifier := &mocks.MockNotifier{NotifyErr: errors.New("channel unreachable")}
		enricher := &mocks.MockEnricher{Result: domain.Prediction{TrafficType: "DDoS", AnomalyScore: 0.2, Confidence: 0.9}}
		uc := newTestPipeline(store, enricher, nil, notifier)

		stats := uc.ProcessBatch(context.Background(), []domain.RawEvent{
			{Payload: testPayload("t", "a", "b", 0.2)},
		})

		if stats.Persisted != 1 || stats.Failed != 0 {
			t.Errorf("expected persisted record despite alert failure, got %+v", stats)
		}
		if stats.AlertsFailed != 1 || stats.Alerted != 0 {
			t.Errorf("expected the alert failure to be counted, got %+v", stats)
		}
		if len(notifier.Notified) != 1 {
			t.Errorf("expected exactly one dispatch attempt, no retries, got %d", len(notifier.Notified))
		}
	})

	t.Run("Cache Hit Short-Circuits The Store", func(t *testing.T) {
		store := &mocks.MockRecordRepository{}
		cache := &mocks.MockDedupCache{SeenIDs: map[string]bool{"t_a_b": true}}
		uc := newTestPipeline(store, &mocks.MockEnricher{Result: benign}, cache, nil)

		stats := uc.ProcessBatch(context.Background(), []domain.RawEvent{
			{Payload: testPayload("t", "a", "b", 0.01)},
		})

		if stats.Duplicates != 1 {
			t.Errorf("expected 1 duplicate, got %+v", stats)
		}
		if store.ExistsCalls != 0 || store.InsertCalls != 0 {
			t.Errorf("expected no store traffic on a cache hit, got exists=%d insert=%d", store.ExistsCalls, store.InsertCalls)
		}
	})

	t.Run("Cache Failure Falls Back To The Store", func(t *testing.T) {
		store := &mocks.MockRecordRepository{}
		cache := &mocks.MockDedupCache{CheckErr: errors.New("redis down")}
		uc := newTestPipeline(store, &mocks.MockEnricher{Result: benign}, cache, nil)

		stats := uc.ProcessBatch(context.Background(), []domain.RawEvent{
			{Payload: testPayload("t", "a", "b", 0.01)},
		})

		if stats.Persisted != 1 {
			t.Errorf("expected record to persist via the store path, got %+v", stats)
		}
	})

	t.Run("Transient Insert Failure Leaves No Dedup Trace", func(t *testing.T) {
		// If the write fails, nothing may remember the record as seen:
		// the redelivery has to go through the full pipeline and persist.
		store := &mocks.MockRecordRepository{InsertErr: errors.New("connection reset")}
		cache := &mocks.MockDedupCache{}
		uc := newTestPipeline(store, &mocks.MockEnricher{Result: benign}, cache, nil)

		ev := domain.RawEvent{Payload: testPayload("t", "a", "b", 0.01)}

		first := uc.ProcessBatch(context.Background(), []domain.RawEvent{ev})
		if first.Failed != 1 || first.Persisted != 0 {
			t.Fatalf("expected the first delivery to fail, got %+v", first)
		}
		if len(cache.Marked) != 0 {
			t.Fatalf("expected no cache marks for a failed write, got %v", cache.Marked)
		}

		store.InsertErr = nil
		second := uc.ProcessBatch(context.Background(), []domain.RawEvent{ev})

		if second.Persisted != 1 || second.Duplicates != 0 {
			t.Errorf("expected the redelivery to persist, got %+v", second)
		}
		if len(store.Inserted) != 1 {
			t.Errorf("expected exactly 1 persisted record, got %d", len(store.Inserted))
		}
		if len(cache.Marked) != 1 || cache.Marked[0] != "t_a_b" {
			t.Errorf("expected the id to be marked only after the successful write, got %v", cache.Marked)
		}
	})

	t.Run("Cancellation Completes The In-Flight Record", func(t *testing.T) {
		store := &mocks.MockRecordRepository{}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		enricher := &mocks.MockEnricher{
			PredictFunc: func(context.Context, domain.LogRecord) (domain.Prediction, error) {
				cancel()
				return benign, nil
			},
		}
		uc := newTestPipeline(store, enricher, nil, nil)

		stats := uc.ProcessBatch(ctx, []domain.RawEvent{
			{Payload: testPayload("t", "a", "b", 0.01)},
			{Payload: testPayload("t", "a", "c", 0.01)},
		})

		// The record being processed when shutdown fires still lands in the
		// store with its real prediction; the rest of the window is left
		// untouched for redelivery.
		if stats.Persisted != 1 || stats.Degraded != 0 || stats.Failed != 0 {
			t.Fatalf("expected 1 cleanly persisted record, got %+v", stats)
		}
		if len(stats.Outcomes) != 1 {
			t.Errorf("expected processing to stop after the in-flight record, got %d outcomes", len(stats.Outcomes))
		}
		if len(store.Inserted) != 1 || store.Inserted[0].LogID != "t_a_b" {
			t.Errorf("unexpected store contents: %+v", store.Inserted)
		}
	})

	t.Run("Outcomes Follow Delivery Order", func(t *testing.T) {
		store := &mocks.MockRecordRepository{ExistingIDs: map[string]bool{"t_a_c": true}}
		uc := newTestPipeline(store, &mocks.MockEnricher{Result: benign}, nil, nil)

		stats := uc.ProcessBatch(context.Background(), []domain.RawEvent{
			{Payload: testPayload("t", "a", "b", 0.01)},
			{Payload: []byte("not json at all")},
			{Payload: testPayload("t", "a", "c", 0.01)},
		})

		want := []domain.OutcomeKind{
			domain.OutcomePersisted,
			domain.OutcomeSkippedMalformed,
			domain.OutcomeSkippedDuplicate,
		}
		if len(stats.Outcomes) != len(want) {
			t.Fatalf("expected %d outcomes, got %d", len(want), len(stats.Outcomes))
		}
		for i, kind := range want {
			if stats.Outcomes[i].Kind != kind {
				t.Errorf("outcome %d: expected %s, got %s", i, kind, stats.Outcomes[i].Kind)
			}
		}
	})

	t.Run("Store Write Failure Is Counted, Not Fatal", func(t *testing.T) {
		store := &mocks.MockRecordRepository{InsertErr: errors.New("connection reset")}
		uc := newTestPipeline(store, &mocks.MockEnricher{Result: benign}, nil, nil)

		stats := uc.ProcessBatch(context.Background(), []domain.RawEvent{
			{Payload: testPayload("t", "a", "b", 0.01)},
			{Payload: testPayload("t", "a", "c", 0.01)},
		})

		if stats.Failed != 2 {
			t.Errorf("expected both writes to fail and be counted, got %+v", stats)
		}
	})

	t.Run("High-Risk Scenario", func(t *testing.T) {
		store := &mocks.MockRecordRepository{}
		notifier := &mocks.MockNotifier{}
		enricher := &mocks.MockEnricher{Result: domain.Prediction{TrafficType: "DDoS", AnomalyScore: 0.12, Confidence: 0.91}}
		uc := newTestPipeline(store, enricher, nil, notifier)

		stats := uc.ProcessBatch(context.Background(), []domain.RawEvent{
			{Payload: testPayload("2025-04-01T10:00:00Z", "10.0.0.1", "10.0.0.2", 0.12)},
		})

		if stats.Persisted != 1 || stats.Alerted != 1 {
			t.Fatalf("expected 1 persisted + 1 alerted, got %+v", stats)
		}
		rec := store.Inserted[0]
		if rec.Risk != domain.RiskCritical {
			t.Errorf("expected CRITICAL risk, got %s", rec.Risk)
		}
		if rec.LogID != "2025-04-01T10:00:00Z_10.0.0.1_10.0.0.2" {
			t.Errorf("unexpected log_id %q", rec.LogID)
		}
		if len(notifier.Notified) != 1 || notifier.Notified[0].Prediction.TrafficType != "DDoS" {
			t.Errorf("expected exactly one DDoS alert, got %+v", notifier.Notified)
		}
	})
}
