package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Local storage ---

func (s *SQLiteStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	s.logger.Debug("sql", "op", "select", "table", "local_storage", "key", key)

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM local_storage WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) SetItem(ctx context.Context, key, value string) error {
	s.logger.Debug("sql", "op", "upsert", "table", "local_storage", "key", key)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().Unix(),
	)
	return err
}

func (s *SQLiteStore) RemoveItem(ctx context.Context, key string) error {
	s.logger.Debug("sql", "op", "delete", "table", "local_storage", "key", key)

	_, err := s.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key)
	return err
}

// --- Cookies ---

// GetCookie returns the named cookie, or nil when it is missing or expired.
// Expired rows are left for DeleteExpiredCookies so that reads stay side-effect free.
func (s *SQLiteStore) GetCookie(ctx context.Context, name string) (*Cookie, error) {
	s.logger.Debug("sql", "op", "select", "table", "cookies", "name", name)

	var c Cookie
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT name, value, path, expires_at FROM cookies WHERE name = ?`, name,
	).Scan(&c.Name, &c.Value, &c.Path, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expiresAt > 0 {
		c.ExpiresAt = time.Unix(expiresAt, 0)
	}
	if c.Expired(s.now()) {
		return nil, nil
	}
	return &c, nil
}

func (s *SQLiteStore) SetCookie(ctx context.Context, c *Cookie) error {
	s.logger.Debug("sql", "op", "upsert", "table", "cookies", "name", c.Name)

	path := c.Path
	if path == "" {
		path = "/"
	}
	var expiresAt int64
	if !c.ExpiresAt.IsZero() {
		expiresAt = c.ExpiresAt.Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cookies (name, value, path, expires_at, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, path = excluded.path,
		 expires_at = excluded.expires_at, created_at = excluded.created_at`,
		c.Name, c.Value, path, expiresAt, s.now().Unix(),
	)
	return err
}

func (s *SQLiteStore) DeleteCookie(ctx context.Context, name string) error {
	s.logger.Debug("sql", "op", "delete", "table", "cookies", "name", name)

	_, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE name = ?`, name)
	return err
}

func (s *SQLiteStore) DeleteExpiredCookies(ctx context.Context) (int64, error) {
	s.logger.Debug("sql", "op", "delete_expired", "table", "cookies")

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cookies WHERE expires_at > 0 AND expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
