// Package storage persists run history, durable key value state and
// profile memories in a local SQLite database.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"strider/internal/config"
	"strider/internal/storage/migrations"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection shared by all repositories.
type DB struct {
	*sql.DB
	path string
}

// Open opens the database at path, creating the parent directory,
// applying connection pragmas and running pending migrations.
func Open(path string) (*DB, error) {
	expandedPath, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", expandedPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{DB: db, path: expandedPath}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Tx wraps a database transaction.
type Tx struct {
	*sql.Tx
}

// Begin starts a transaction.
func (db *DB) Begin() (*Tx, error) {
	tx, err := db.DB.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx}, nil
}

// WithTx runs fn inside a transaction, committing on success and
// rolling back on error.
func (db *DB) WithTx(fn func(*Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
