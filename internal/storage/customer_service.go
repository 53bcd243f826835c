// Package storage implements the customer record operations on top of the table store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maruel/localcrm/internal/models"
	"github.com/maruel/localcrm/internal/storage/git"
	"github.com/maruel/localcrm/internal/validate"
	"github.com/maruel/localcrm/internal/xlsxdb"
)

// ErrNotFound is returned when no record has the requested identifier.
var ErrNotFound = errors.New("customer not found")

// Committer records table changes in a version history.
type Committer interface {
	Commit(ctx context.Context, msg string, files ...string) error
	Log(ctx context.Context, path string, n int) ([]*git.Commit, error)
}

// UpsertResult is the outcome of a write.
type UpsertResult struct {
	Record  models.Record
	Created bool
}

// CustomerService handles customer business logic.
type CustomerService struct {
	store *xlsxdb.Store
	now   func() time.Time

	// writeMu is held across a table write and its history commit so that each commit
	// holds exactly one change.
	writeMu     sync.Mutex
	history     Committer
	historyPath string
}

// NewCustomerService creates a new customer service.
func NewCustomerService(store *xlsxdb.Store) *CustomerService {
	return &CustomerService{store: store, now: time.Now}
}

// WithHistory commits the table file at path (relative to the repository root) to
// repo after every successful write.
func (s *CustomerService) WithHistory(repo Committer, path string) *CustomerService {
	s.history = repo
	s.historyPath = path
	return s
}

// ListRecords returns all present records in table order.
func (s *CustomerService) ListRecords(_ context.Context) ([]models.Record, error) {
	var records []models.Record
	err := s.store.View(func(t *xlsxdb.Table) error {
		var err error
		records, err = t.ScanAll()
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of present records.
func (s *CustomerService) Count(_ context.Context) (int, error) {
	n := 0
	err := s.store.View(func(t *xlsxdb.Table) error {
		var err error
		n, err = t.Len()
		return err
	})
	return n, err
}

// AllocateIdentifier returns the identifier a new record should use.
//
// The identifier is not reserved: two callers may receive the same value. Use Create
// to allocate and insert atomically.
func (s *CustomerService) AllocateIdentifier(_ context.Context) (string, error) {
	var id string
	err := s.store.View(func(t *xlsxdb.Table) error {
		var err error
		id, err = t.NextIdentifier()
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateOrUpdate validates fields and writes them as the record id, updating the
// record if it exists and appending it otherwise.
//
// Validation failures return a *validate.ValidationError and leave the table untouched.
func (s *CustomerService) CreateOrUpdate(ctx context.Context, id string, fields models.Record) (*UpsertResult, error) {
	id, err := checkInput(id, fields)
	if err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	var res *UpsertResult
	err = s.store.Update(func(t *xlsxdb.Table) error {
		var err error
		res, err = s.upsert(t, id, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordChange(ctx, id, res.Created)
	return res, nil
}

// Update writes fields to the existing record id. Nothing is written and ErrNotFound
// is returned when the record doesn't exist.
func (s *CustomerService) Update(ctx context.Context, id string, fields models.Record) (*UpsertResult, error) {
	id, err := checkInput(id, fields)
	if err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	var res *UpsertResult
	err = s.store.Update(func(t *xlsxdb.Table) error {
		if _, found, err := t.FindRowByIdentifier(id); err != nil {
			return err
		} else if !found {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var err error
		res, err = s.upsert(t, id, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordChange(ctx, id, false)
	return res, nil
}

// Create allocates the next identifier and appends fields as a new record in a single
// critical section, so concurrent creations never share an identifier.
func (s *CustomerService) Create(ctx context.Context, fields models.Record) (*UpsertResult, error) {
	if err := validate.Record(fields); err != nil {
		return nil, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	var res *UpsertResult
	err := s.store.Update(func(t *xlsxdb.Table) error {
		id, err := t.NextIdentifier()
		if err != nil {
			return err
		}
		res, err = s.upsert(t, id, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordChange(ctx, res.Record.ID(), true)
	return res, nil
}

// GetForEdit returns the record id, or ErrNotFound.
func (s *CustomerService) GetForEdit(_ context.Context, id string) (models.Record, error) {
	var rec models.Record
	err := s.store.View(func(t *xlsxdb.Table) error {
		row, found, err := t.FindRowByIdentifier(strings.TrimSpace(id))
		if err != nil || !found {
			return err
		}
		rec, err = t.Row(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// History returns up to n recent changes of the table, newest first. It returns nil
// when history is disabled.
func (s *CustomerService) History(ctx context.Context, n int) ([]*git.Commit, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Log(ctx, s.historyPath, n)
}

// RecordExternalChange commits edits made to the table file by other programs, such
// as a spreadsheet application. It is a no-op without history or when the file is
// unchanged.
func (s *CustomerService) RecordExternalChange(ctx context.Context) {
	if s.history == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.history.Commit(ctx, "external edit", s.historyPath); err != nil {
		slog.ErrorContext(ctx, "Failed to commit external table change", "err", err)
	}
}

func (s *CustomerService) upsert(t *xlsxdb.Table, id string, fields models.Record) (*UpsertResult, error) {
	created, err := t.Upsert(id, fields, s.now())
	if err != nil {
		return nil, err
	}
	row, _, err := t.FindRowByIdentifier(id)
	if err != nil {
		return nil, err
	}
	rec, err := t.Row(row)
	if err != nil {
		return nil, err
	}
	return &UpsertResult{Record: rec, Created: created}, nil
}

// recordChange logs a successful write and commits it to the history. The write is
// already durable, so a failed commit is only logged. Must be called with s.writeMu
// held.
func (s *CustomerService) recordChange(ctx context.Context, id string, created bool) {
	action := "update"
	if created {
		action = "create"
	}
	slog.InfoContext(ctx, "Saved customer", "id", id, "action", action)
	if s.history == nil {
		return
	}
	if err := s.history.Commit(ctx, action+" "+id, s.historyPath); err != nil {
		slog.ErrorContext(ctx, "Failed to commit table change", "id", id, "err", err)
	}
}

func checkInput(id string, fields models.Record) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &validate.ValidationError{Field: models.FieldID, Message: validate.IDMessage}
	}
	if err := validate.Record(fields); err != nil {
		return "", err
	}
	return id, nil
}
