package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"podcast-insights/pkg/domain"
)

// SQLiteClient stores ingest records in a local SQLite file.
type SQLiteClient struct {
	path    string
	table   string
	db      *sql.DB
	records *sqlRecords
}

// NewSQLiteClient constructs a SQLite client. Call Connect before use.
func NewSQLiteClient(path, table string) *SQLiteClient {
	if table == "" {
		table = defaultTable
	}
	return &SQLiteClient{path: path, table: table}
}

// Connect opens (or creates) the database file and ensures the record table exists.
func (c *SQLiteClient) Connect(ctx context.Context) error {
	if c.path == "" {
		return fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("sqlite: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return fmt.Errorf("configure sqlite: %w", err)
	}
	c.db = db

	records, err := newSQLRecords(c, c.table, sqliteDialect)
	if err != nil {
		return err
	}
	if err := records.ensureSchema(ctx); err != nil {
		return err
	}
	c.records = records
	return nil
}

// Close closes the database file.
func (c *SQLiteClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying handle.
func (c *SQLiteClient) DB() *sql.DB {
	return c.db
}

func (c *SQLiteClient) URLExists(ctx context.Context, youtubeURL string) (bool, error) {
	if c.records == nil {
		return false, fmt.Errorf("sqlite client not connected")
	}
	return c.records.urlExists(ctx, youtubeURL)
}

func (c *SQLiteClient) InsertRecord(ctx context.Context, rec *domain.IngestRecord) error {
	if c.records == nil {
		return fmt.Errorf("sqlite client not connected")
	}
	return c.records.insert(ctx, rec)
}

func (c *SQLiteClient) ListRecords(ctx context.Context) ([]domain.IngestRecord, error) {
	if c.records == nil {
		return nil, fmt.Errorf("sqlite client not connected")
	}
	return c.records.list(ctx)
}
