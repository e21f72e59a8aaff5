package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store appends and sums usage ledger entries. The table carries no UPDATE or
// DELETE path anywhere in the codebase.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	// MonthlyCostCents sums cost across all features since monthStart.
	MonthlyCostCents(ctx context.Context, userID uuid.UUID, monthStart time.Time) (int, error)
	// MonthlyFeatureCostCents sums cost for one feature tag since monthStart.
	MonthlyFeatureCostCents(ctx context.Context, userID uuid.UUID, feature string, monthStart time.Time) (int, error)
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed ledger Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) Append(ctx context.Context, entry *Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_ledger (id, user_id, feature, input_tokens, output_tokens, cost_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.Feature, entry.InputTokens, entry.OutputTokens, entry.CostCents, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("appending ledger entry: %w", err)
	}
	return nil
}

func (s *postgresStore) MonthlyCostCents(ctx context.Context, userID uuid.UUID, monthStart time.Time) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(cost_cents), 0) FROM usage_ledger
		 WHERE user_id = $1 AND created_at >= $2`,
		userID, monthStart).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing monthly ledger cost: %w", err)
	}
	return total, nil
}

func (s *postgresStore) MonthlyFeatureCostCents(ctx context.Context, userID uuid.UUID, feature string, monthStart time.Time) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(cost_cents), 0) FROM usage_ledger
		 WHERE user_id = $1 AND feature = $2 AND created_at >= $3`,
		userID, feature, monthStart).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing monthly feature cost: %w", err)
	}
	return total, nil
}
