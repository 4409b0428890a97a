package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
)

// Store persists fetched model lists across restarts.
type Store interface {
	// Load returns the persisted list for a provider and when it was fetched.
	// A provider with no persisted list returns an empty slice and zero time.
	Load(ctx context.Context, provider string) ([]chat.ModelInfo, time.Time, error)

	// Save replaces the persisted list for a provider.
	Save(ctx context.Context, provider string, models []chat.ModelInfo, fetchedAt time.Time) error

	// Close releases the underlying database.
	Close() error
}

// SQLiteStore is the SQLite-backed Store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the catalog database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	// Single writer; WAL keeps readers unblocked during refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS models (
		provider          TEXT NOT NULL,
		id                TEXT NOT NULL,
		name              TEXT NOT NULL,
		context_window    INTEGER NOT NULL DEFAULT 0,
		max_output_tokens INTEGER NOT NULL DEFAULT 0,
		multimodal        INTEGER NOT NULL DEFAULT 0,
		input_cost        REAL NOT NULL DEFAULT 0,
		output_cost       REAL NOT NULL DEFAULT 0,
		raw               TEXT,
		fetched_at        INTEGER NOT NULL,
		PRIMARY KEY (provider, id)
	);
	CREATE INDEX IF NOT EXISTS idx_models_provider ON models(provider);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, provider string) ([]chat.ModelInfo, time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, context_window, max_output_tokens, multimodal,
		       input_cost, output_cost, raw, fetched_at
		FROM models WHERE provider = ? ORDER BY id`, provider)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var models []chat.ModelInfo
	var fetchedAt time.Time
	for rows.Next() {
		var m chat.ModelInfo
		var multimodal int
		var raw sql.NullString
		var fetchedUnix int64
		if err := rows.Scan(&m.ID, &m.Name, &m.ContextWindow, &m.MaxOutputTokens,
			&multimodal, &m.InputCost, &m.OutputCost, &raw, &fetchedUnix); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan model row: %w", err)
		}
		m.Multimodal = multimodal != 0
		if raw.Valid && raw.String != "" {
			if err := json.Unmarshal([]byte(raw.String), &m.Raw); err != nil {
				// Raw is best-effort; a corrupt blob should not lose the row.
				m.Raw = nil
			}
		}
		models = append(models, m)
		fetchedAt = time.Unix(fetchedUnix, 0)
	}
	return models, fetchedAt, rows.Err()
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, provider string, models []chat.ModelInfo, fetchedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM models WHERE provider = ?", provider); err != nil {
		return fmt.Errorf("failed to clear previous list: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO models (provider, id, name, context_window, max_output_tokens,
		                    multimodal, input_cost, output_cost, raw, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range models {
		multimodal := 0
		if m.Multimodal {
			multimodal = 1
		}
		var raw interface{}
		if m.Raw != nil {
			blob, err := json.Marshal(m.Raw)
			if err == nil {
				raw = string(blob)
			}
		}
		if _, err := stmt.ExecContext(ctx, provider, m.ID, m.Name, m.ContextWindow,
			m.MaxOutputTokens, multimodal, m.InputCost, m.OutputCost, raw, fetchedAt.Unix()); err != nil {
			return fmt.Errorf("failed to insert model %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
