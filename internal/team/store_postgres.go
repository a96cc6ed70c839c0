package team

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps team records as JSONB documents in the teams table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed team store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM teams WHERE id = $1`,
		id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("query team: %w", err)
	}

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return Account{}, fmt.Errorf("decode team: %w", err)
	}
	acc.ID = id
	return acc, nil
}

func (s *PostgresStore) Put(ctx context.Context, id string, acc Account) error {
	if id == "" {
		return fmt.Errorf("team id is required")
	}
	acc.ID = ""
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("encode team: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO teams (id, record, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record, updated_at = NOW()`,
		id,
		data,
	)
	if err != nil {
		return fmt.Errorf("upsert team: %w", err)
	}
	return nil
}
