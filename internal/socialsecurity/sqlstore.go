package socialsecurity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	selectSettingsQuery = `SELECT include_with_treaty, include_without_treaty FROM social_security_settings WHERE user_id = $1`
	upsertSettingsQuery = `INSERT INTO social_security_settings (user_id, include_with_treaty, include_without_treaty, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (user_id) DO UPDATE SET include_with_treaty = EXCLUDED.include_with_treaty,
	include_without_treaty = EXCLUDED.include_without_treaty, updated_at = NOW()`

	// CreateTableStatement creates the settings table when it does not exist.
	CreateTableStatement = `CREATE TABLE IF NOT EXISTS social_security_settings (
	user_id TEXT PRIMARY KEY,
	include_with_treaty BOOLEAN NOT NULL,
	include_without_treaty BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

// SQLStore keeps settings in PostgreSQL.
type SQLStore struct {
	db       *sql.DB
	defaults Settings
	logger   *zap.Logger
}

// OpenPostgres opens a connection pool for the given DSN.
func OpenPostgres(dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, defaults Settings, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{db: db, defaults: defaults, logger: logger}
}

// Migrate creates the settings table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, CreateTableStatement); err != nil {
		return fmt.Errorf("failed to create social_security_settings: %w", err)
	}
	return nil
}

// Get loads the settings for userID, returning the defaults when no row exists.
func (s *SQLStore) Get(ctx context.Context, userID string) (Settings, error) {
	userID = normalizeUserID(userID)
	var settings Settings
	err := s.db.QueryRowContext(ctx, selectSettingsQuery, userID).
		Scan(&settings.IncludeWithTreaty, &settings.IncludeWithoutTreaty)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("no stored settings, using defaults",
			zap.String("op", "socialsecurity.SQLStore.Get"),
			zap.String("user_id", userID))
		return s.defaults, nil
	}
	if err != nil {
		return s.defaults, fmt.Errorf("failed to load settings for %q: %w", userID, err)
	}
	return settings, nil
}

// Save upserts the settings for userID.
func (s *SQLStore) Save(ctx context.Context, userID string, settings Settings) error {
	userID = normalizeUserID(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if _, err := s.db.ExecContext(ctx, upsertSettingsQuery, userID, settings.IncludeWithTreaty, settings.IncludeWithoutTreaty); err != nil {
		return fmt.Errorf("failed to save settings for %q: %w", userID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
