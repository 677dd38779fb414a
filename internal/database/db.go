// Copyright 2024 Package Tracking System
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sql.DB connection and provides access to stores
type DB struct {
	*sql.DB
	Manifests   *ManifestStore
	Packages    *PackageStore
	ResultCache *ResultCacheStore
}

// Open opens a database connection and initializes stores
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every pooled connection to :memory: would get its own empty database
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable foreign key constraints in SQLite
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	database := &DB{
		DB:          db,
		Manifests:   NewManifestStore(db),
		Packages:    NewPackageStore(db),
		ResultCache: NewResultCacheStore(db),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, nil
}

// migrate creates the database schema
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS manifests (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		file_hash TEXT,
		file_size INTEGER NOT NULL DEFAULT 0,
		strategy TEXT NOT NULL,
		success BOOLEAN NOT NULL DEFAULT FALSE,
		expected_total INTEGER NOT NULL DEFAULT 0,
		extracted_total INTEGER NOT NULL DEFAULT 0,
		pages_processed INTEGER NOT NULL DEFAULT 0,
		arrival_date TEXT,
		return_date TEXT,
		processing_ms INTEGER NOT NULL DEFAULT 0,
		errors TEXT NOT NULL DEFAULT '[]',
		warnings TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS manifest_packages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		manifest_id TEXT NOT NULL,
		line_number INTEGER NOT NULL,
		tracking_code TEXT NOT NULL,
		recipient TEXT NOT NULL,
		position TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT '',
		date_iso TEXT NOT NULL DEFAULT '',
		pickup_deadline TEXT NOT NULL DEFAULT '',
		pickup_deadline_str TEXT NOT NULL DEFAULT '',
		confidence INTEGER NOT NULL,
		FOREIGN KEY (manifest_id) REFERENCES manifests(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tracking_code TEXT NOT NULL UNIQUE,
		recipient_name TEXT NOT NULL,
		position TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'aguardando',
		arrival_date TEXT NOT NULL,
		pickup_deadline TEXT NOT NULL,
		manifest_id TEXT,
		notes TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (manifest_id) REFERENCES manifests(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS result_cache (
		file_hash TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		result_data TEXT NOT NULL,
		cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_manifests_hash ON manifests(file_hash);
	CREATE INDEX IF NOT EXISTS idx_manifest_packages_manifest ON manifest_packages(manifest_id);
	CREATE INDEX IF NOT EXISTS idx_packages_status ON packages(status);
	CREATE INDEX IF NOT EXISTS idx_packages_arrival ON packages(arrival_date);
	CREATE INDEX IF NOT EXISTS idx_packages_deadline ON packages(status, pickup_deadline);
	CREATE INDEX IF NOT EXISTS idx_result_cache_expires ON result_cache(expires_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return db.migratePackageNotes()
}

// migratePackageNotes adds the notes column to databases created before it existed
func (db *DB) migratePackageNotes() error {
	var columnExists int
	err := db.QueryRow(`
		SELECT COUNT(*)
		FROM pragma_table_info('packages')
		WHERE name = 'notes'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check notes column existence: %w", err)
	}

	if columnExists == 0 {
		if _, err := db.Exec("ALTER TABLE packages ADD COLUMN notes TEXT"); err != nil {
			return fmt.Errorf("failed to add notes column: %w", err)
		}
	}

	return nil
}

// IsHealthy checks if the database connection is healthy
func (db *DB) IsHealthy() error {
	return db.Ping()
}
