package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store looks up and persists license users. Opened at process start and
// closed at shutdown, never a process-global.
type Store interface {
	GetByToken(ctx context.Context, token string) (*User, error)
	Create(ctx context.Context, user *User) error
	Deactivate(ctx context.Context, token string) error
}

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed license Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) GetByToken(ctx context.Context, token string) (*User, error) {
	query := `SELECT id, token, email, plan_tier, active, expires_at, created_at
	          FROM license_users WHERE token = $1`

	user := &User{}
	err := s.pool.QueryRow(ctx, query, token).Scan(
		&user.ID, &user.Token, &user.Email, &user.PlanTier,
		&user.Active, &user.ExpiresAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying license by token: %w", err)
	}
	return user, nil
}

func (s *postgresStore) Create(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO license_users (id, token, email, plan_tier, active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		user.ID, user.Token, user.Email, user.PlanTier, user.Active, user.ExpiresAt, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting license user: %w", err)
	}
	return nil
}

func (s *postgresStore) Deactivate(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE license_users SET active = FALSE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("deactivating license: %w", err)
	}
	return nil
}
