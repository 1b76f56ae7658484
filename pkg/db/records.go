package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"podcast-insights/pkg/domain"
)

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect captures the SQL differences between Postgres and SQLite.
type dialect struct {
	idColumn    string
	createdAt   string
	placeholder func(n int) string
}

var postgresDialect = dialect{
	idColumn:    "id BIGSERIAL PRIMARY KEY",
	createdAt:   "created_at TIMESTAMPTZ NOT NULL DEFAULT now()",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

var sqliteDialect = dialect{
	idColumn:    "id INTEGER PRIMARY KEY AUTOINCREMENT",
	createdAt:   "created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP",
	placeholder: func(int) string { return "?" },
}

// sqlRecords implements the record operations on any DBProvider.
type sqlRecords struct {
	provider DBProvider
	table    string
	dialect  dialect
}

func newSQLRecords(provider DBProvider, table string, d dialect) (*sqlRecords, error) {
	if !tableNameRE.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &sqlRecords{provider: provider, table: table, dialect: d}, nil
}

func (r *sqlRecords) db() (*sql.DB, error) {
	if r.provider.DB() == nil {
		return nil, errors.New("database not connected")
	}
	return r.provider.DB(), nil
}

// ensureSchema creates the record table. youtube_url is indexed but deliberately not unique.
func (r *sqlRecords) ensureSchema(ctx context.Context) error {
	db, err := r.db()
	if err != nil {
		return err
	}

	cols := make([]string, 0, len(domain.RecordColumns)+2)
	cols = append(cols, r.dialect.idColumn)
	for _, c := range domain.RecordColumns {
		cols = append(cols, c+" TEXT NOT NULL DEFAULT ''")
	}
	cols = append(cols, r.dialect.createdAt)

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", r.table, strings.Join(cols, ",\n  "))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", r.table, err)
	}

	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_youtube_url_idx ON %s (youtube_url)", r.table, r.table)
	if _, err := db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create youtube_url index: %w", err)
	}
	return nil
}

func (r *sqlRecords) urlExists(ctx context.Context, youtubeURL string) (bool, error) {
	db, err := r.db()
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf("SELECT 1 FROM %s WHERE youtube_url = %s LIMIT 1", r.table, r.dialect.placeholder(1))
	var one int
	switch err := db.QueryRowContext(ctx, query, youtubeURL).Scan(&one); {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query youtube_url: %w", err)
	}
	return true, nil
}

func (r *sqlRecords) insert(ctx context.Context, rec *domain.IngestRecord) error {
	db, err := r.db()
	if err != nil {
		return err
	}

	values := rec.Values()
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = r.dialect.placeholder(i + 1)
		args[i] = v
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.table, strings.Join(domain.RecordColumns, ", "), strings.Join(placeholders, ", "))
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record youtube_url=%q: %w", rec.YouTubeURL, err)
	}
	return nil
}

func (r *sqlRecords) list(ctx context.Context) ([]domain.IngestRecord, error) {
	db, err := r.db()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(domain.RecordColumns, ", "), r.table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []domain.IngestRecord
	for rows.Next() {
		var rec domain.IngestRecord
		if err := rows.Scan(&rec.PublishDate, &rec.YouTubeURL, &rec.ThumbnailURL, &rec.Interviewer,
			&rec.Interviewee, &rec.Insight1, &rec.Insight2, &rec.Insight3); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
