package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists users and messages in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and initializes the schema.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatrelay.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, persistErr("create sqlite directory", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, persistErr("open sqlite", err)
	}

	// one writer at a time; readers are served from the WAL
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, persistErr("ping sqlite", err)
	}

	s := &SQLiteStore{db: conn}
	if err := s.initSchema(ctx); err != nil {
		conn.Close()
		return nil, persistErr("init sqlite schema", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// UpsertUser inserts the user or replaces its username.
func (s *SQLiteStore) UpsertUser(ctx context.Context, userID, username string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET username = excluded.username, updated_at = CURRENT_TIMESTAMP
	`, userID, username)
	if err != nil {
		return persistErr("upsert user", err)
	}
	return nil
}

// InsertMessage appends a message row and returns its ID.
func (s *SQLiteStore) InsertMessage(ctx context.Context, userID, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO messages (user_id, content) VALUES (?, ?)`, userID, content)
	if err != nil {
		return 0, persistErr("insert message", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr("insert message id", err)
	}
	return id, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.db.Close()
}
