package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/app/db"
)

// PostgresStore persists users and messages in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and applies the schema migrations.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, persistErr("open postgres", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// UpsertUser inserts the user or replaces its username.
func (s *PostgresStore) UpsertUser(ctx context.Context, userID, username string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, username)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username, updated_at = now()
	`, userID, username)
	if err != nil {
		return persistErr("upsert user", err)
	}
	return nil
}

// InsertMessage appends a message row and returns its ID.
func (s *PostgresStore) InsertMessage(ctx context.Context, userID, content string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (user_id, content)
		VALUES ($1, $2)
		RETURNING id
	`, userID, content).Scan(&id)
	if err != nil {
		return 0, persistErr("insert message", err)
	}
	return id, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
