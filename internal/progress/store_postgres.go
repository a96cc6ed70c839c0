package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. Rows are only ever inserted,
// so concurrent sessions of one user cannot un-complete an entity.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetOrInit(ctx context.Context, userID string) (Record, error) {
	if userID == "" {
		return Record{}, fmt.Errorf("user_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT entity_id
		 FROM progress
		 WHERE user_id = $1
		 ORDER BY completed_at ASC`,
		userID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return Record{}, fmt.Errorf("scan progress: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return Record{}, fmt.Errorf("iterate progress: %w", err)
	}

	return NewRecord(userID, ids...), nil
}

func (s *PostgresStore) MarkComplete(ctx context.Context, userID, entityID string) (bool, error) {
	if userID == "" || entityID == "" {
		return false, fmt.Errorf("user_id and entity_id are required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`INSERT INTO progress (user_id, entity_id, completed_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, entity_id) DO NOTHING`,
		userID,
		entityID,
	)
	if err != nil {
		return false, fmt.Errorf("mark complete: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (s *PostgresStore) IsComplete(ctx context.Context, userID, entityID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM progress WHERE user_id = $1 AND entity_id = $2
		 )`,
		userID,
		entityID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query progress: %w", err)
	}
	return exists, nil
}
