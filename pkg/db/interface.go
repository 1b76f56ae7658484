package db

import (
	"context"
	"database/sql"

	"podcast-insights/pkg/domain"
)

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// This allows PostgresClient, SupabaseClient and SQLiteClient to share the SQL record table.
type DBProvider interface {
	DB() *sql.DB
}

// RecordStore persists ingest records keyed loosely by youtube_url.
// No uniqueness is enforced by the backend; callers gate inserts with URLExists.
type RecordStore interface {
	URLExists(ctx context.Context, youtubeURL string) (bool, error)
	InsertRecord(ctx context.Context, rec *domain.IngestRecord) error
	ListRecords(ctx context.Context) ([]domain.IngestRecord, error)
	Close() error
}
