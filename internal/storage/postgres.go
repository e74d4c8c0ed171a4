package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		original_title TEXT NOT NULL,
		title_ko TEXT NOT NULL,
		link TEXT UNIQUE NOT NULL,
		pub_date TIMESTAMPTZ NOT NULL,
		source TEXT NOT NULL,
		summary TEXT[] NOT NULL DEFAULT '{}',
		image_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		error_note TEXT
	);`,
	"ALTER TABLE articles ADD COLUMN IF NOT EXISTS error_note TEXT;",
	"CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles(pub_date DESC);",
	"CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);",
}

// NewPostgresStorage connects to Postgres through the pgx database/sql driver
func NewPostgresStorage(dsn string, log logrus.FieldLogger) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createSchema(db, postgresSchema); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("Connected to Postgres")
	return newSQLStore(db, "postgres", sq.Dollar, arraySummary{}, log), nil
}
