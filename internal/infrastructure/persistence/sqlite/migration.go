// Package sqlite persists sessions and run leases in a SQLite database.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Open opens (or creates) the database and applies the schema
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := NewMigrator(db).Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrator applies schema migrations
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a migrator over an open database
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Migrate applies the embedded schema inside one transaction. Every
// statement is idempotent, so re-running on an existing database is safe.
func (m *Migrator) Migrate() error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range splitStatements(schemaSQL) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// splitStatements splits the schema file into executable statements,
// dropping comment lines.
func splitStatements(schema string) []string {
	var clean []string
	for _, line := range strings.Split(schema, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		clean = append(clean, line)
	}

	var stmts []string
	for _, stmt := range strings.Split(strings.Join(clean, "\n"), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
