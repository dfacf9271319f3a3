// Package store persists encoded bytecode packages in a SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tomaz-v/vesper/bytecode"
	"github.com/tomaz-v/vesper/image"
)

// ErrPackageNotFound indicates the requested package doesn't exist.
var ErrPackageNotFound = errors.New("package not found")

// Entry describes one stored package.
type Entry struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Store is a SQLite-backed index of encoded packages keyed by UUID.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the package store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Create table if needed
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS packages (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put encodes pkg and stores it under name, returning the new entry's id.
func (s *Store) Put(name string, pkg *bytecode.Package) (string, error) {
	data, err := image.Encode(pkg)
	if err != nil {
		return "", fmt.Errorf("encoding package: %w", err)
	}

	id := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT INTO packages (id, name, created_at, data) VALUES (?, ?, ?, ?)",
		id, name, time.Now().UTC(), data,
	)
	if err != nil {
		return "", fmt.Errorf("storing package %q: %w", name, err)
	}
	return id, nil
}

// Get loads the package with the given id.
func (s *Store) Get(id string) (*bytecode.Package, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM packages WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPackageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading package %s: %w", id, err)
	}
	return image.Decode(data)
}

// GetByName loads the most recently stored package with the given name.
func (s *Store) GetByName(name string) (*bytecode.Package, error) {
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM packages WHERE name = ? ORDER BY created_at DESC, id DESC LIMIT 1",
		name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPackageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading package %q: %w", name, err)
	}
	return image.Decode(data)
}

// List returns all entries, newest first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT id, name, created_at FROM packages ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Name, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning package row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the package with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := s.db.Exec("DELETE FROM packages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting package %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPackageNotFound
	}
	return nil
}
