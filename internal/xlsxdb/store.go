package xlsxdb

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/maruel/localcrm/internal/models"
	"github.com/xuri/excelize/v2"
)

// Store owns a workbook file and serializes all access to it.
type Store struct {
	path  string
	sheet string
	mu    sync.Mutex

	// lastSave is the unix nano time of the most recent save, used by Watch to
	// tell our own writes apart from external edits.
	lastSave atomic.Int64
}

// NewStore returns a Store for the workbook at path. The parent directory is created
// if needed; the workbook itself is created lazily on first access.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, storageErr("create directory for", path, err)
	}
	return &Store{path: path, sheet: models.SheetName}, nil
}

// Path returns the workbook path.
func (s *Store) Path() string {
	return s.path
}

// EnsureTable creates the workbook with only the header row if it doesn't exist, or
// adds the sheet to an existing workbook that lacks it.
func (s *Store) EnsureTable() error {
	return s.View(func(*Table) error { return nil })
}

// View runs fn with the table loaded and saves the table afterward.
//
// The table is rewritten even though fn is expected not to modify it, so every access
// observes and re-persists the current on-disk state.
func (s *Store) View(fn func(*Table) error) error {
	return s.do(fn)
}

// Update runs fn with the table loaded and saves the modified table.
func (s *Store) Update(fn func(*Table) error) error {
	return s.do(fn)
}

func (s *Store) do(fn func(*Table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := t.f.Close(); err != nil {
			slog.Warn("Failed to close workbook", "path", s.path, "err", err)
		}
	}()

	if err := fn(t); err != nil {
		return err
	}
	return t.Save()
}

// open loads the workbook, creating it or the sheet as needed. Must be called with
// s.mu held.
func (s *Store) open() (*Table, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, storageErr("open", s.path, err)
		}
		return s.create()
	}

	t := &Table{f: f, sheet: s.sheet, path: s.path, textStyle: -1, lastSave: &s.lastSave}
	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil {
		_ = f.Close()
		return nil, storageErr("read", s.path, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(s.sheet); err != nil {
			_ = f.Close()
			return nil, storageErr("add sheet to", s.path, err)
		}
		if err := t.writeHeader(); err != nil {
			_ = f.Close()
			return nil, err
		}
		slog.Info("Added sheet to existing workbook", "path", s.path, "sheet", s.sheet)
		return t, nil
	}

	if header, err := t.header(); err != nil {
		_ = f.Close()
		return nil, err
	} else if !slices.Equal(header, models.Header()) {
		slog.Warn("Table header does not match the schema", "path", s.path, "header", header)
	}
	return t, nil
}

// create makes a new workbook containing only the header row and saves it.
func (s *Store) create() (*Table, error) {
	f := excelize.NewFile()
	t := &Table{f: f, sheet: s.sheet, path: s.path, textStyle: -1, lastSave: &s.lastSave}
	if err := f.SetSheetName(f.GetSheetName(0), s.sheet); err != nil {
		_ = f.Close()
		return nil, storageErr("create", s.path, err)
	}
	if err := t.writeHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetColWidth(s.sheet, "A", "A", 12); err != nil {
		_ = f.Close()
		return nil, storageErr("create", s.path, err)
	}
	if err := t.Save(); err != nil {
		_ = f.Close()
		return nil, err
	}
	slog.Info("Created table", "path", s.path, "sheet", s.sheet)
	return t, nil
}

func (t *Table) writeHeader() error {
	header := models.Header()
	if err := t.f.SetSheetRow(t.sheet, "A1", &header); err != nil {
		return storageErr(fmt.Sprintf("write header of sheet %q in", t.sheet), t.path, err)
	}
	t.rows = nil
	return nil
}
