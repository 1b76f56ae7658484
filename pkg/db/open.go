package db

import (
	"context"
	"fmt"

	"podcast-insights/pkg/config"
)

const defaultTable = "podcast_insights"

type connector interface {
	RecordStore
	Connect(ctx context.Context) error
}

// Open builds and connects the record store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (RecordStore, error) {
	var store connector
	switch cfg.Backend {
	case config.BackendSupabase:
		store = NewSupabaseClient(SupabaseConfig{
			ConnectionString: cfg.ConnectionString,
			SupabaseURL:      cfg.SupabaseURL,
			SupabaseKey:      cfg.SupabaseKey,
			Password:         cfg.SupabasePassword,
			Table:            cfg.Table,
			MaxOpenConns:     4,
		})
	case config.BackendPostgres:
		store = NewPostgresClient(PostgresConfig{DSN: cfg.PostgresDSN, Table: cfg.Table, MaxOpenConns: 4})
	case config.BackendMongo:
		store = NewMongoClient(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	case config.BackendSQLite:
		store = NewSQLiteClient(cfg.SQLitePath, cfg.Table)
	case config.BackendXLSX:
		store = NewSpreadsheetStore(cfg.XLSXPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if err := store.Connect(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return store, nil
}
