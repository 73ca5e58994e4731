// Package store persists the merged navigation index in DuckDB so one-shot
// CLI queries can read it without replaying fragment files. It sits behind
// the registry as an attached consumer: every delivered batch is appended,
// mirroring the registry's concatenation semantics (sequence ids preserve
// insertion order, nothing is deduplicated or removed).
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cratenav/cratenav/internal/index"
	_ "github.com/marcboeker/go-duckdb"
)

type Store struct {
	conn *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_producer_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_implementor_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_sidebar_id START 1;`,

		// Producers may legitimately repeat: registering the same fragment
		// twice doubles its entries, so no UNIQUE constraint here.
		`CREATE TABLE IF NOT EXISTS producers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			loaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_producers_name ON producers (name)`,

		`CREATE TABLE IF NOT EXISTS implementors (
			id INTEGER PRIMARY KEY,
			trait_path TEXT NOT NULL,
			signature TEXT NOT NULL,
			synthetic BOOLEAN NOT NULL,
			type_paths TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_implementors_trait ON implementors (trait_path)`,

		`CREATE TABLE IF NOT EXISTS sidebar_items (
			id INTEGER PRIMARY KEY,
			module_path TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			summary TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sidebar_module ON sidebar_items (module_path)`,
	}

	for _, q := range queries {
		if _, err := s.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// --- Producer operations ---

type Producer struct {
	ID       int
	Name     string
	LoadedAt time.Time
}

func (s *Store) InsertProducer(name string) error {
	_, err := s.conn.Exec(
		`INSERT INTO producers (id, name) VALUES (nextval('seq_producer_id'), ?)`, name)
	if err != nil {
		return fmt.Errorf("inserting producer: %w", err)
	}
	return nil
}

// ListProducers returns every recorded fragment registration in load order.
func (s *Store) ListProducers() ([]Producer, error) {
	rows, err := s.conn.Query(`SELECT id, name, loaded_at FROM producers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var producers []Producer
	for rows.Next() {
		var p Producer
		if err := rows.Scan(&p.ID, &p.Name, &p.LoadedAt); err != nil {
			return nil, err
		}
		producers = append(producers, p)
	}
	return producers, nil
}

// --- Implementor operations ---

// AppendImplementors appends a delivered batch. Insertion runs in one
// transaction so a crash never leaves half a fragment behind.
func (s *Store) AppendImplementors(batch map[string][]index.Implementor) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for traitPath, impls := range batch {
		for _, impl := range impls {
			typePaths, err := json.Marshal(impl.TypePaths)
			if err != nil {
				return fmt.Errorf("encoding type paths: %w", err)
			}
			if _, err := tx.Exec(
				`INSERT INTO implementors (id, trait_path, signature, synthetic, type_paths)
				 VALUES (nextval('seq_implementor_id'), ?, ?, ?, ?)`,
				traitPath, impl.Signature, impl.Synthetic, string(typePaths),
			); err != nil {
				return fmt.Errorf("inserting implementor: %w", err)
			}
		}
	}
	return tx.Commit()
}

// SelectImplementors returns the stored implementors of traitPath in
// insertion order. No rows is an empty slice, not an error.
func (s *Store) SelectImplementors(traitPath string) ([]index.Implementor, error) {
	rows, err := s.conn.Query(
		`SELECT signature, synthetic, type_paths FROM implementors WHERE trait_path = ? ORDER BY id`,
		traitPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var impls []index.Implementor
	for rows.Next() {
		var impl index.Implementor
		var typePaths string
		if err := rows.Scan(&impl.Signature, &impl.Synthetic, &typePaths); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(typePaths), &impl.TypePaths); err != nil {
			return nil, fmt.Errorf("decoding type paths: %w", err)
		}
		impls = append(impls, impl)
	}
	return impls, rows.Err()
}

func (s *Store) CountImplementors() (int, error) {
	var count int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM implementors`).Scan(&count)
	return count, err
}

// --- Sidebar operations ---

func (s *Store) AppendSidebar(batch map[string][]index.SidebarItem) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for modulePath, items := range batch {
		for _, it := range items {
			if _, err := tx.Exec(
				`INSERT INTO sidebar_items (id, module_path, kind, name, summary)
				 VALUES (nextval('seq_sidebar_id'), ?, ?, ?, ?)`,
				modulePath, string(it.Kind), it.Name, it.Summary,
			); err != nil {
				return fmt.Errorf("inserting sidebar item: %w", err)
			}
		}
	}
	return tx.Commit()
}

// SelectSidebar returns the stored members of modulePath in insertion order.
func (s *Store) SelectSidebar(modulePath string) ([]index.SidebarItem, error) {
	rows, err := s.conn.Query(
		`SELECT kind, name, summary FROM sidebar_items WHERE module_path = ? ORDER BY id`,
		modulePath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []index.SidebarItem
	for rows.Next() {
		var it index.SidebarItem
		var kind string
		if err := rows.Scan(&kind, &it.Name, &it.Summary); err != nil {
			return nil, err
		}
		it.Kind = index.ItemKind(kind)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) CountSidebarItems() (int, error) {
	var count int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM sidebar_items`).Scan(&count)
	return count, err
}

// Reset drops all stored index data. The daemon resets the store on startup
// so its contents mirror the current session's registrations.
func (s *Store) Reset() error {
	for _, q := range []string{
		`DELETE FROM implementors`,
		`DELETE FROM sidebar_items`,
		`DELETE FROM producers`,
	} {
		if _, err := s.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}
