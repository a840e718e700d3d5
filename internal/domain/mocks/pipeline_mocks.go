package mocks

import (
	"context"
	"sync"

	"github.com/user/threat-ingestor/internal/domain"
)

// MockRecordRepository is a mock implementation of domain.RecordRepository
// for testing. Inserted records count as existing for subsequent calls.
type MockRecordRepository struct {
	mu           sync.Mutex
	Inserted     []domain.PersistedRecord
	ExistingIDs  map[string]bool
	ExistsErr    error
	InsertErr    error
	ExistsCalls  int
	InsertCalls  int
}

func (m *MockRecordRepository) Exists(ctx context.Context, logID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExistsCalls++
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	if m.ExistingIDs[logID] {
		return true, nil
	}
	for _, rec := range m.Inserted {
		if rec.LogID == logID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRecordRepository) Insert(ctx context.Context, rec domain.PersistedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if m.ExistingIDs[rec.LogID] {
		return domain.ErrDuplicateKey
	}
	for _, prev := range m.Inserted {
		if prev.LogID == rec.LogID {
			return domain.ErrDuplicateKey
		}
	}
	m.Inserted = append(m.Inserted, rec)
	return nil
}

// MockDedupCache is a mock implementation of domain.DedupCache.
type MockDedupCache struct {
	mu       sync.Mutex
	SeenIDs  map[string]bool
	CheckErr error
	MarkErr  error
	Marked   []string
}

func (m *MockDedupCache) Check(ctx context.Context, logID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CheckErr != nil {
		return false, m.CheckErr
	}
	return m.SeenIDs[logID], nil
}

func (m *MockDedupCache) Mark(ctx context.Context, logID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	if m.SeenIDs == nil {
		m.SeenIDs = make(map[string]bool)
	}
	m.SeenIDs[logID] = true
	m.Marked = append(m.Marked, logID)
	return nil
}

// MockEnricher is a mock implementation of domain.Enricher. PredictFunc,
// when set, overrides the canned Result/Err pair.
type MockEnricher struct {
	mu           sync.Mutex
	Result       domain.Prediction
	Err          error
	PredictFunc  func(ctx context.Context, rec domain.LogRecord) (domain.Prediction, error)
	PredictCalls int
	LastRecord   domain.LogRecord
}

func (m *MockEnricher) Predict(ctx context.Context, rec domain.LogRecord) (domain.Prediction, error) {
	m.mu.Lock()
	m.PredictCalls++
	m.LastRecord = rec
	fn := m.PredictFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.FallbackPrediction(), m.Err
	}
	return m.Result, nil
}

// MockNotifier is a mock implementation of domain.Notifier.
type MockNotifier struct {
	mu        sync.Mutex
	Notified  []domain.PersistedRecord
	NotifyErr error
}

func (m *MockNotifier) Notify(ctx context.Context, rec domain.PersistedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notified = append(m.Notified, rec)
	return m.NotifyErr
}
