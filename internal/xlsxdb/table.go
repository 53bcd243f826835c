package xlsxdb

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/maruel/localcrm/internal/models"
	"github.com/xuri/excelize/v2"
)

// textNumFmt is the built-in "@" (text) number format.
const textNumFmt = 49

// Table is an open workbook. It is only valid inside the callback passed to
// Store.View or Store.Update.
type Table struct {
	f         *excelize.File
	sheet     string
	path      string
	textStyle int
	lastSave  *atomic.Int64

	// rows caches the sheet contents until the next write.
	rows [][]string
}

// load returns all rows of the sheet including the header. Identifiers are raw cell
// values; other columns are read as displayed by a spreadsheet application, except
// start dates which are normalized to YYYY-MM-DD.
func (t *Table) load() ([][]string, error) {
	if t.rows != nil {
		return t.rows, nil
	}
	rows, err := t.f.GetRows(t.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, storageErr("read", t.path, err)
	}
	shown, err := t.f.GetRows(t.sheet)
	if err != nil {
		return nil, storageErr("read", t.path, err)
	}
	for i, row := range rows {
		if i >= len(shown) {
			break
		}
		for j := models.ColID; j < len(row) && j < len(shown[i]); j++ {
			row[j] = cellText(j+1, row[j], shown[i][j])
		}
	}
	if rows == nil {
		rows = [][]string{}
	}
	t.rows = rows
	return rows, nil
}

// cellText returns the text of the cell in the 1-based column col given its raw and
// formatted values. Start dates entered as spreadsheet dates are stored as day serial
// numbers.
func cellText(col int, raw, shown string) string {
	if raw == shown {
		return raw
	}
	if col == models.ColStartDate {
		if serial, err := strconv.ParseFloat(raw, 64); err == nil {
			if d, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return d.Format(time.DateOnly)
			}
		}
	}
	return shown
}

func (t *Table) header() ([]string, error) {
	rows, err := t.load()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ScanAll returns all present records in row order.
func (t *Table) ScanAll() ([]models.Record, error) {
	rows, err := t.load()
	if err != nil {
		return nil, err
	}
	var out []models.Record
	for i, row := range rows {
		if i == 0 || !isPresent(row) {
			continue
		}
		out = append(out, models.RecordFromValues(row))
	}
	return out, nil
}

// Len returns the number of present records.
func (t *Table) Len() (int, error) {
	rows, err := t.load()
	if err != nil {
		return 0, err
	}
	n := 0
	for i, row := range rows {
		if i > 0 && isPresent(row) {
			n++
		}
	}
	return n, nil
}

// NextIdentifier returns one more than the largest numeric identifier, zero-padded
// to 4 digits. Identifiers that are not integers are ignored.
func (t *Table) NextIdentifier() (string, error) {
	rows, err := t.load()
	if err != nil {
		return "", err
	}
	highest := 0
	for i, row := range rows {
		if i == 0 || !isPresent(row) {
			continue
		}
		if n, ok := parseIdentifier(row[0]); ok && n > highest {
			highest = n
		}
	}
	return FormatIdentifier(highest + 1), nil
}

// FindRowByIdentifier returns the 1-based sheet row of the first record whose
// trimmed identifier equals id.
func (t *Table) FindRowByIdentifier(id string) (int, bool, error) {
	rows, err := t.load()
	if err != nil {
		return 0, false, err
	}
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if strings.TrimSpace(row[0]) == id {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

// Row returns the record stored at the 1-based sheet row.
func (t *Table) Row(n int) (models.Record, error) {
	rows, err := t.load()
	if err != nil {
		return nil, err
	}
	if n < 2 || n > len(rows) {
		return nil, fmt.Errorf("row %d out of range [2, %d]", n, len(rows))
	}
	return models.RecordFromValues(rows[n-1]), nil
}

// Upsert writes fields as the record identified by id, overwriting the first row with
// that identifier or appending a new row. The timestamp and edit link columns are
// derived from now and id; whatever fields holds for them is ignored.
//
// It returns true if a row was appended.
func (t *Table) Upsert(id string, fields models.Record, now time.Time) (bool, error) {
	values := fields.Values()
	values[models.ColID-1] = id
	values[models.ColTimestamp-1] = models.FormatTimestamp(now)
	values[models.ColEditLink-1] = models.EditLink(id)

	row, found, err := t.FindRowByIdentifier(id)
	if err != nil {
		return false, err
	}
	if !found {
		rows, err := t.load()
		if err != nil {
			return false, err
		}
		row = max(len(rows), 1) + 1
	}
	if err := t.writeRow(row, values); err != nil {
		return false, err
	}
	return !found, nil
}

func (t *Table) writeRow(row int, values []string) error {
	t.rows = nil
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := t.f.SetCellStr(t.sheet, cell, v); err != nil {
			return storageErr("write "+cell+" in", t.path, err)
		}
	}
	style, err := t.idStyle()
	if err != nil {
		return err
	}
	cell, err := excelize.CoordinatesToCellName(models.ColID, row)
	if err != nil {
		return err
	}
	if err := t.f.SetCellStyle(t.sheet, cell, cell, style); err != nil {
		return storageErr("style "+cell+" in", t.path, err)
	}
	return nil
}

// idStyle returns the text style applied to identifier cells.
func (t *Table) idStyle() (int, error) {
	if t.textStyle >= 0 {
		return t.textStyle, nil
	}
	style, err := t.f.NewStyle(&excelize.Style{NumFmt: textNumFmt})
	if err != nil {
		return 0, storageErr("create text style in", t.path, err)
	}
	t.textStyle = style
	return style, nil
}

// Save writes the workbook to a temporary file and renames it over the table file.
func (t *Table) Save() error {
	tmp, err := os.CreateTemp(filepath.Dir(t.path), "."+filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return storageErr("save", t.path, err)
	}
	tmpPath := tmp.Name()
	if _, err := t.f.WriteTo(tmp); err != nil {
		return storageErr("save", t.path, errors.Join(err, tmp.Close(), os.Remove(tmpPath)))
	}
	if err := tmp.Chmod(0o644); err != nil { //nolint:gosec // G302: the table is meant to be opened by other programs
		return storageErr("save", t.path, errors.Join(err, tmp.Close(), os.Remove(tmpPath)))
	}
	if err := tmp.Close(); err != nil {
		return storageErr("save", t.path, errors.Join(err, os.Remove(tmpPath)))
	}
	t.lastSave.Store(time.Now().UnixNano())
	if err := os.Rename(tmpPath, t.path); err != nil {
		return storageErr("save", t.path, errors.Join(err, os.Remove(tmpPath)))
	}
	t.lastSave.Store(time.Now().UnixNano())
	slog.Debug("Saved table", "path", t.path)
	return nil
}

// FormatIdentifier formats n as a zero-padded 4 digit identifier. Values above 9999
// use as many digits as needed.
func FormatIdentifier(n int) string {
	return fmt.Sprintf("%04d", n)
}

// parseIdentifier parses a cell as an integer identifier, reporting false for values
// that are not integers.
func parseIdentifier(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func isPresent(row []string) bool {
	return len(row) > 0 && row[0] != ""
}
