package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/tealeg/xlsx/v2"
)

// SheetName is the worksheet the XLSX ledger reads and writes.
const SheetName = "신청목록"

// XLSX keeps the ledger in a single-sheet workbook on disk. Every mutation
// rewrites the file.
type XLSX struct {
	path string

	mu    sync.Mutex
	file  *xlsx.File
	sheet *xlsx.Sheet
}

// OpenXLSX opens path, creating the workbook and header row when it is missing.
func OpenXLSX(path string) (*XLSX, error) {
	l := &XLSX{path: path}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		f := xlsx.NewFile()
		sheet, err := f.AddSheet(SheetName)
		if err != nil {
			return nil, fmt.Errorf("xlsx ledger: add sheet: %w", err)
		}
		addRow(sheet, Columns)
		l.file, l.sheet = f, sheet
		if err := l.save(); err != nil {
			return nil, err
		}
		return l, nil
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("xlsx ledger: open %s: %w", path, err)
	}
	sheet, ok := f.Sheet[SheetName]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, fmt.Errorf("xlsx ledger %s: no sheets", path)
		}
		sheet = f.Sheets[0]
	}
	l.file, l.sheet = f, sheet
	return l, nil
}

func (l *XLSX) AppendRow(_ context.Context, values []string) error {
	if err := checkWidth(values); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	addRow(l.sheet, values)
	return l.save()
}

func (l *XLSX) UpdateCell(_ context.Context, row, col int, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := checkCell(row, col, len(l.sheet.Rows)-HeaderRow); err != nil {
		return err
	}
	r := l.sheet.Rows[row-1]
	for len(r.Cells) < col {
		r.AddCell()
	}
	r.Cells[col-1].SetString(value)
	return l.save()
}

func (l *XLSX) ReadAllRecords(_ context.Context) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Record
	for i, row := range l.sheet.Rows {
		if i < HeaderRow {
			continue
		}
		out = append(out, ToRecord(rowToStrings(row)))
	}
	return out, nil
}

func (l *XLSX) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save()
}

func (l *XLSX) save() error {
	if err := ensureDir(l.path); err != nil {
		return err
	}
	if err := l.file.Save(l.path); err != nil {
		return fmt.Errorf("xlsx ledger: save %s: %w", l.path, err)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
