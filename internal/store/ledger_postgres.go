package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"organlink/internal/domain"
	"organlink/pkg/platform/sentinel"
)

// PostgresLedgerStore is an append-only archive backend for the local ledger
// collection, for deployments that keep the audit trail in PostgreSQL while
// donors/recipients/matches live in the document store.
type PostgresLedgerStore struct {
	db *sql.DB
}

// NewPostgresLedgerStore constructs the archive store. Call Migrate before
// first use.
func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{db: db}
}

// Migrate creates the ledger table and its unique block-id constraint.
// Idempotent.
func (s *PostgresLedgerStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_records (
			id           BIGSERIAL PRIMARY KEY,
			block_id     TEXT NOT NULL UNIQUE,
			donor_id     TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			organ        TEXT NOT NULL,
			status       TEXT NOT NULL,
			meta         JSONB NOT NULL DEFAULT '{}'::jsonb,
			recorded_at  TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate ledger_records: %w", err)
	}
	return nil
}

func (s *PostgresLedgerStore) Append(ctx context.Context, record *domain.LedgerRecord) (string, error) {
	meta := record.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal ledger meta: %w", err)
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO ledger_records (block_id, donor_id, recipient_id, organ, status, meta, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		record.BlockID, record.DonorID, record.RecipientID, record.Organ,
		string(record.Status), metaJSON, record.Timestamp.UTC(),
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return "", sentinel.ErrConflict
		}
		return "", fmt.Errorf("append ledger record: %w", err)
	}
	return fmt.Sprintf("%d", id), nil
}

func (s *PostgresLedgerStore) List(ctx context.Context) ([]*domain.LedgerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, block_id, donor_id, recipient_id, organ, status, meta, recorded_at
		FROM ledger_records
		ORDER BY recorded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list ledger records: %w", err)
	}
	defer rows.Close()

	var out []*domain.LedgerRecord
	for rows.Next() {
		var (
			id         int64
			record     domain.LedgerRecord
			status     string
			metaJSON   []byte
			recordedAt time.Time
		)
		if err := rows.Scan(&id, &record.BlockID, &record.DonorID, &record.RecipientID,
			&record.Organ, &status, &metaJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan ledger record: %w", err)
		}
		record.ID = fmt.Sprintf("%d", id)
		record.Status = domain.MatchStatus(status)
		record.Timestamp = recordedAt.UTC()
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &record.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal ledger meta: %w", err)
			}
		}
		out = append(out, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger records: %w", err)
	}
	return out, nil
}

func (s *PostgresLedgerStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ledger_records`); err != nil {
		return fmt.Errorf("delete ledger records: %w", err)
	}
	return nil
}
