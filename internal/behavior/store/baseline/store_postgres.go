package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vigil/internal/behavior/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// PostgresBaselineStore persists baselines in PostgreSQL as JSONB documents.
// This store is pure I/O; recomputation policy belongs in the service layer.
type PostgresBaselineStore struct {
	pool *pgxpool.Pool
}

// NewPostgresBaselineStore constructs a PostgreSQL-backed baseline store.
// The pool lifecycle is managed externally.
func NewPostgresBaselineStore(pool *pgxpool.Pool) *PostgresBaselineStore {
	return &PostgresBaselineStore{pool: pool}
}

// EnsureSchema creates the baseline table when it does not exist yet.
// Intended for development and tests; production deployments migrate
// out-of-band.
func (s *PostgresBaselineStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS behavior_baselines (
			identity    TEXT PRIMARY KEY,
			baseline    JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure baseline schema: %w", err)
	}
	return nil
}

// Load fetches the baseline document, or returns (nil, nil) when absent.
func (s *PostgresBaselineStore) Load(ctx context.Context, identity id.Identity) (*models.Baseline, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT baseline FROM behavior_baselines WHERE identity = $1`,
		identity.String(),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w: %w", sentinel.ErrUnavailable, err)
	}

	var b models.Baseline
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("unmarshal baseline for %s: %w", identity, err)
	}
	return &b, nil
}

// Save upserts the baseline, replacing any prior document atomically
// (last-write-wins at identity granularity).
func (s *PostgresBaselineStore) Save(ctx context.Context, identity id.Identity, baseline *models.Baseline) error {
	raw, err := json.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO behavior_baselines (identity, baseline, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (identity) DO UPDATE SET
			baseline = EXCLUDED.baseline,
			updated_at = now()
	`, identity.String(), raw)
	if err != nil {
		return fmt.Errorf("save baseline: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Delete removes the baseline row for an identity.
func (s *PostgresBaselineStore) Delete(ctx context.Context, identity id.Identity) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM behavior_baselines WHERE identity = $1`,
		identity.String(),
	)
	if err != nil {
		return fmt.Errorf("delete baseline: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
