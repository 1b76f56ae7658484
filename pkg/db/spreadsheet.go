package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"podcast-insights/pkg/domain"
)

const sheetName = "records"

// SpreadsheetStore is the local structured-file fallback: one xlsx workbook,
// a header row of RecordColumns, one row per record.
// Every call re-reads the file so lookups always see earlier inserts.
type SpreadsheetStore struct {
	path string
	mu   sync.Mutex
}

// NewSpreadsheetStore creates a store backed by the workbook at path.
func NewSpreadsheetStore(path string) *SpreadsheetStore {
	return &SpreadsheetStore{path: path}
}

// Connect creates the workbook with its header row if it does not exist yet.
func (s *SpreadsheetStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]any, len(domain.RecordColumns))
	for i, c := range domain.RecordColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	return nil
}

func (s *SpreadsheetStore) Close() error {
	return nil
}

func (s *SpreadsheetStore) URLExists(ctx context.Context, youtubeURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows()
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if len(row) > 1 && row[1] == youtubeURL {
			return true, nil
		}
	}
	return false, nil
}

func (s *SpreadsheetStore) InsertRecord(ctx context.Context, rec *domain.IngestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}

	values := rec.Values()
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	return nil
}

func (s *SpreadsheetStore) ListRecords(ctx context.Context) ([]domain.IngestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRows()
	if err != nil {
		return nil, err
	}

	out := make([]domain.IngestRecord, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(domain.RecordColumns))
		copy(cells, row)
		out = append(out, domain.IngestRecord{
			PublishDate:  cells[0],
			YouTubeURL:   cells[1],
			ThumbnailURL: cells[2],
			Interviewer:  cells[3],
			Interviewee:  cells[4],
			Insight1:     cells[5],
			Insight2:     cells[6],
			Insight3:     cells[7],
		})
	}
	return out, nil
}

// readRows returns data rows without the header
func (s *SpreadsheetStore) readRows() ([][]string, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}
