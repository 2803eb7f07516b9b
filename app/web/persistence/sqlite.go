package persistence

import (
	"context"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/umputun/techbe/app/web/enums"
)

// ChangeInfo is a single recorded roster change with the technician state after the change
type ChangeInfo struct {
	ID           int          `db:"id"`
	Action       enums.Action `db:"action"`
	TechnicianID string       `db:"tech_id"` // in-memory id, valid for the run that recorded it
	Nom          string       `db:"nom"`
	Prenom       string       `db:"prenom"`
	Email        string       `db:"email"`
	Telephone    string       `db:"telephone"`
	Actif        bool         `db:"actif"`
	CreatedAt    time.Time    `db:"-"`
	CreatedAtTS  int64        `db:"created_at"`
}

// SQLiteStore implements history persistence using SQLite
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and initializes the schema
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer, avoids SQLITE_BUSY

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initialize creates the database schema
func (s *SQLiteStore) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			tech_id TEXT NOT NULL,
			nom TEXT NOT NULL,
			prenom TEXT NOT NULL,
			email TEXT NOT NULL,
			telephone TEXT NOT NULL DEFAULT '',
			actif BOOLEAN NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_changes_created_at ON changes(created_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Record adds a change to the journal. Zero CreatedAt is set to the current time.
func (s *SQLiteStore) Record(ctx context.Context, change ChangeInfo) error {
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now()
	}
	change.CreatedAtTS = change.CreatedAt.UnixMilli()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO changes (action, tech_id, nom, prenom, email, telephone, actif, created_at)
		VALUES (:action, :tech_id, :nom, :prenom, :email, :telephone, :actif, :created_at)`, change)
	if err != nil {
		return fmt.Errorf("failed to record change: %w", err)
	}
	return nil
}

// Changes returns recent changes, most recent first
func (s *SQLiteStore) Changes(ctx context.Context, limit int) ([]ChangeInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	res := []ChangeInfo{}
	err := s.db.SelectContext(ctx, &res, `
		SELECT id, action, tech_id, nom, prenom, email, telephone, actif, created_at
		FROM changes ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	for i := range res {
		res[i].CreatedAt = time.UnixMilli(res[i].CreatedAtTS)
	}
	return res, nil
}

// Cleanup keeps only the most recent changes
func (s *SQLiteStore) Cleanup(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM changes WHERE id NOT IN (
			SELECT id FROM changes ORDER BY created_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("failed to cleanup changes: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Printf("[DEBUG] removed %d old history records", n)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
