package history

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists prediction records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed prediction log.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the predictions table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS predictions (
			id             VARCHAR(36) PRIMARY KEY,
			scored_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			sender_bank    BIGINT NOT NULL CHECK (sender_bank >= 0),
			receiver_bank  BIGINT NOT NULL CHECK (receiver_bank >= 0),
			amount         NUMERIC(18,2) NOT NULL CHECK (amount >= 0),
			currency       TEXT NOT NULL,
			payment_format TEXT NOT NULL,
			probability    NUMERIC(9,8) NOT NULL CHECK (probability >= 0 AND probability <= 1),
			status         VARCHAR(10) NOT NULL CHECK (status IN ('HIGH RISK', 'LOW RISK'))
		);

		CREATE INDEX IF NOT EXISTS idx_predictions_scored_at
			ON predictions (scored_at DESC);

		CREATE INDEX IF NOT EXISTS idx_predictions_high_risk
			ON predictions (scored_at DESC) WHERE status = 'HIGH RISK';
	`)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, scored_at, sender_bank, receiver_bank, amount, currency, payment_format, probability, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ID,
		rec.Timestamp,
		rec.SenderBank,
		rec.ReceiverBank,
		rec.Amount,
		rec.Currency,
		rec.PaymentFormat,
		rec.Probability,
		rec.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to append prediction record: %w", err)
	}
	return nil
}

// List returns the most recent records first. limit <= 0 means no limit:
// the CSV export reads the full history, matching MemoryStore.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Record, error) {
	query := `
		SELECT id, scored_at, sender_bank, receiver_bank, amount, currency, payment_format, probability, status
		FROM predictions
		ORDER BY scored_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list prediction records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.SenderBank, &rec.ReceiverBank,
			&rec.Amount, &rec.Currency, &rec.PaymentFormat, &rec.Probability, &rec.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction record: %w", err)
		}
		result = append(result, &rec)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Summary(ctx context.Context) (*Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'HIGH RISK')
		FROM predictions
	`)

	var sum Summary
	if err := row.Scan(&sum.Total, &sum.HighRisk); err != nil {
		return nil, fmt.Errorf("failed to summarize predictions: %w", err)
	}
	sum.LowRisk = sum.Total - sum.HighRisk
	if sum.Total > 0 {
		sum.HighRiskRate = float64(sum.HighRisk) / float64(sum.Total)
	}
	return &sum, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM predictions`); err != nil {
		return fmt.Errorf("failed to clear predictions: %w", err)
	}
	return nil
}
