/*
Package store is the relay's persistence gateway.

It records users (upsert by user ID, never deleted) and messages (append
only). Two backends implement Store: PostgreSQL for deployments and SQLite for
single-node and development use. Every failure returned by a backend wraps
ErrPersistence.
*/
package store

import (
	"context"
	"errors"
	"fmt"

	"chatrelay/internal/configs"
)

// ErrPersistence marks an error as a failed backing-store operation.
var ErrPersistence = errors.New("persistence failure")

// Store is the interface the hub uses to make users and messages durable.
// Implementations must be safe for concurrent use; each call acquires and
// releases its own pooled connection.
type Store interface {
	// UpsertUser inserts the user or updates the username of an existing one.
	UpsertUser(ctx context.Context, userID, username string) error

	// InsertMessage appends a message and returns its generated ID.
	InsertMessage(ctx context.Context, userID, content string) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close()
}

// New opens the backend selected by cfg.StoreDriver and wraps it with metrics
// and the configured per-call timeout.
func New(ctx context.Context, cfg *configs.AppConfig) (Store, error) {
	var (
		backend Store
		err     error
	)

	switch cfg.StoreDriver {
	case configs.StoreDriverPostgres:
		backend, err = NewPostgresStore(ctx, cfg.DatabaseDSN)
	case configs.StoreDriverSQLite:
		backend, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}

	return NewInstrumented(backend, cfg.PersistTimeout), nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
