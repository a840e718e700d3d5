package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/user/threat-ingestor/internal/domain"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = pq.ErrorCode("23505")

// RecordRepository implements domain.RecordRepository on PostgreSQL. The
// UNIQUE constraint on log_id is the pipeline's idempotency guarantee.
type RecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRecordRepository creates a new PostgreSQL record repository.
func NewRecordRepository(db *sql.DB, logger *slog.Logger) *RecordRepository {
	return &RecordRepository{db: db, logger: logger.With("component", "postgres_repository")}
}

// Exists reports whether a log ID has already been persisted. Pre-check
// only; Insert remains the source of truth under concurrency.
func (r *RecordRepository) Exists(ctx context.Context, logID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM logs WHERE log_id = $1)`, logID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return exists, nil
}

// Insert writes one enriched record. A conflicting log_id affects zero rows
// and is reported as domain.ErrDuplicateKey; the existing row is never
// touched.
func (r *RecordRepository) Insert(ctx context.Context, rec domain.PersistedRecord) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO logs (
			timestamp, source_ip, destination_ip, protocol,
			anomaly_score, predicted_traffic_type, risk_flag,
			confidence_score, log_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (log_id) DO NOTHING`,
		rec.Timestamp,
		rec.SourceIP,
		rec.DestinationIP,
		rec.Protocol,
		rec.Prediction.AnomalyScore,
		rec.Prediction.TrafficType,
		string(rec.Risk),
		rec.Prediction.Confidence,
		rec.LogID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("insert record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert record: rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrDuplicateKey
	}
	return nil
}
