package dedup

import (
	"context"
	"errors"
	"fmt"

	"podcast-insights/pkg/db"
	"podcast-insights/pkg/domain"
	"podcast-insights/pkg/logger"
	"podcast-insights/pkg/urls"
)

var (
	// ErrPersistenceWrite wraps a failed insert. It always reaches the caller.
	ErrPersistenceWrite = errors.New("persistence write failed")

	// ErrPersistenceRead wraps a failed lookup. Exists logs it and reports false.
	ErrPersistenceRead = errors.New("persistence read failed")
)

// Store gates processing on previously persisted records.
//
// Exists never fails: a backend read error is logged and treated as "not found".
// That keeps a transient read failure from aborting a batch, at the cost of a
// possible duplicate row, since the backend enforces no uniqueness.
// Exists always re-queries the backend; nothing is cached between calls.
type Store struct {
	backend db.RecordStore
	log     *logger.Logger
}

// NewStore wraps a record backend.
func NewStore(backend db.RecordStore, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{backend: backend, log: log.WithComponent("dedup")}
}

// Exists reports whether a record with this canonical URL was saved.
func (s *Store) Exists(ctx context.Context, canonicalURL string) bool {
	found, err := s.backend.URLExists(ctx, urls.Normalize(canonicalURL))
	if err != nil {
		s.log.WithURL(canonicalURL).
			WithError(fmt.Errorf("%w: %w", ErrPersistenceRead, err)).
			Warn("dedup lookup failed, treating URL as new")
		return false
	}
	return found
}

// Save inserts the record once. Failures are returned wrapped in ErrPersistenceWrite.
func (s *Store) Save(ctx context.Context, rec domain.IngestRecord) error {
	if err := s.backend.InsertRecord(ctx, &rec); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceWrite, err)
	}
	return nil
}
