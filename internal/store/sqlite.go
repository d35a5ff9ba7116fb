// Package store persists suppliers and scorecards in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/scoring"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/suppliers"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when a scorecard with the same session id is already stored.
	ErrExists = errors.New("already exists")
)

// createdAtLayout is fixed width so text order matches time order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore stores suppliers and scorecards using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ suppliers.Directory = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS suppliers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	email      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scorecards (
	session_id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	document   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_suppliers_category ON suppliers(category);
CREATE INDEX IF NOT EXISTS idx_scorecards_created_at ON scorecards(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migration); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertSupplier inserts the supplier or replaces the one with the same id.
func (s *SQLiteStore) UpsertSupplier(ctx context.Context, sup suppliers.Supplier) error {
	if strings.TrimSpace(sup.ID) == "" {
		return errors.New("sqlite: supplier id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suppliers (id, name, category, email, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, category = excluded.category,
		 email = excluded.email, updated_at = excluded.updated_at`,
		sup.ID, sup.Name, sup.Category, sup.Email, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert supplier %s: %w", sup.ID, err)
	}
	return nil
}

// ListSuppliers returns suppliers ordered by name. An empty category returns all.
func (s *SQLiteStore) ListSuppliers(ctx context.Context, category string) ([]suppliers.Supplier, error) {
	var categories []string
	if category != "" {
		categories = []string{category}
	}
	return s.ByCategories(ctx, categories)
}

// ByCategories implements suppliers.Directory.
func (s *SQLiteStore) ByCategories(ctx context.Context, categories []string) ([]suppliers.Supplier, error) {
	query := `SELECT id, name, category, email FROM suppliers`
	args := make([]any, 0, len(categories))
	if len(categories) > 0 {
		query += ` WHERE category IN (?` + strings.Repeat(", ?", len(categories)-1) + `)`
		for _, c := range categories {
			args = append(args, c)
		}
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list suppliers: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []suppliers.Supplier
	for rows.Next() {
		var sup suppliers.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Category, &sup.Email); err != nil {
			return nil, fmt.Errorf("sqlite: scan supplier: %w", err)
		}
		out = append(out, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate suppliers: %w", err)
	}
	return out, nil
}

// SaveScorecard stores the scorecard document keyed by its session id.
// Stored scorecards are never replaced; saving a known session id returns ErrExists.
func (s *SQLiteStore) SaveScorecard(ctx context.Context, card *scoring.Scorecard) error {
	if card == nil {
		return errors.New("sqlite: scorecard is nil")
	}
	doc, err := card.MarshalJSON()
	if err != nil {
		return fmt.Errorf("sqlite: marshal scorecard: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scorecards (session_id, created_at, document) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		card.SessionID(), card.CreatedAt().UTC().Format(createdAtLayout), string(doc),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert scorecard %s: %w", card.SessionID(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: insert scorecard %s: %w", card.SessionID(), err)
	}
	if n == 0 {
		return fmt.Errorf("scorecard %s: %w", card.SessionID(), ErrExists)
	}
	return nil
}

// GetScorecard returns ErrNotFound when no scorecard has the session id.
func (s *SQLiteStore) GetScorecard(ctx context.Context, sessionID string) (*scoring.Scorecard, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM scorecards WHERE session_id = ?`, sessionID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scorecard %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get scorecard %s: %w", sessionID, err)
	}
	return scoring.DecodeScorecard([]byte(doc))
}

// ListScorecards returns the newest scorecards first. A non-positive limit returns all.
func (s *SQLiteStore) ListScorecards(ctx context.Context, limit int) ([]*scoring.Scorecard, error) {
	query := `SELECT document FROM scorecards ORDER BY created_at DESC, session_id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list scorecards: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*scoring.Scorecard
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("sqlite: scan scorecard: %w", err)
		}
		card, err := scoring.DecodeScorecard([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate scorecards: %w", err)
	}
	return out, nil
}
