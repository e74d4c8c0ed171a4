package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const sqliteFileName = "feedbrief.db"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		original_title TEXT NOT NULL,
		title_ko TEXT NOT NULL,
		link TEXT UNIQUE NOT NULL,
		pub_date DATETIME NOT NULL,
		source TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '[]', -- JSON array, order is meaningful
		image_url TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		error_note TEXT
	);`,
	"CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles(pub_date DESC);",
	"CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);",
}

// NewSQLiteStorage opens (and creates when needed) the SQLite database under dataDir
func NewSQLiteStorage(dataDir string, log logrus.FieldLogger) (*SQLStore, error) {
	// Ensure data directory exists with secure permissions (0750)
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, sqliteFileName)
	log.WithField("path", dbPath).Info("Opening SQLite database")

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_timeout=30000&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.WithError(err).Warnf("Failed to set %s", pragma)
		}
	}

	if err := createSchema(db, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrateSQLite(db, log); err != nil {
		db.Close()
		return nil, err
	}

	return newSQLStore(db, "sqlite", sq.Question, jsonSummary{}, log), nil
}

func createSchema(db *sql.DB, statements []string) error {
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// migrateSQLite adds columns that older databases lack
func migrateSQLite(db *sql.DB, log logrus.FieldLogger) error {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('articles') WHERE name = ?", "error_note").Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if count > 0 {
		return nil
	}

	log.Info("Adding error_note column to articles table")
	if _, err := db.Exec("ALTER TABLE articles ADD COLUMN error_note TEXT"); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
