package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite persists products in a single table keyed by product id, following
// the teacher's sqlite storage idiom (internal/lidar/storage/sqlite,
// internal/db): a pure-Go driver, a retry-on-busy wrapper around writes,
// and one `ensureSchema` call at construction instead of a migration
// framework (there is exactly one table with no schema evolution to
// track, so golang-migrate has nothing to do here — see DESIGN.md).
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) a product store at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS texture_products (
			product_id TEXT PRIMARY KEY,
			kind       INTEGER NOT NULL,
			data       BLOB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Save(product Product) (ID, error) {
	id := uuid.New()
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO texture_products (product_id, kind, data) VALUES (?, ?, ?)`,
			id.String(), int(product.Kind), product.Data,
		)
		return err
	})
	if err != nil {
		return ID{}, fmt.Errorf("store: save: %w", err)
	}
	return id, nil
}

func (s *SQLite) Get(id ID) (Product, error) {
	var kind int
	var data []byte
	err := s.db.QueryRow(
		`SELECT kind, data FROM texture_products WHERE product_id = ?`, id.String(),
	).Scan(&kind, &data)
	if err == sql.ErrNoRows {
		return Product{}, &NotFoundError{ID: id}
	}
	if err != nil {
		return Product{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	return Product{Kind: Kind(kind), Data: data}, nil
}

func (s *SQLite) Has(id ID) bool {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM texture_products WHERE product_id = ?`, id.String()).Scan(&exists)
	return err == nil
}

// retryOnBusy retries operation with exponential backoff when sqlite
// reports SQLITE_BUSY, following the teacher's
// internal/lidar/analysis_run.go retryOnBusy helper.
func retryOnBusy(operation func() error) error {
	const maxRetries = 5
	const baseDelay = 10 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt < maxRetries-1 {
			time.Sleep(baseDelay * (1 << uint(attempt)))
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return contains(msg, "SQLITE_BUSY") || contains(msg, "database is locked")
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}
