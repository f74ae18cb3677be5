// Package ledger stores order rows in a fixed nine-column sheet.
//
// Row numbers are 1-based and the header occupies row 1, so the i-th record
// returned by ReadAllRecords lives on row i+2.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ChoisMath/kyobobook/config"
	"github.com/ChoisMath/kyobobook/models"
)

// Column headers, in sheet order.
const (
	HeaderTimestamp = "신청시간"
	HeaderApplicant = "신청자 성명"
	HeaderTitle     = "도서명"
	HeaderAuthor    = "저자명"
	HeaderPublisher = "출판사"
	HeaderUnitPrice = "단가"
	HeaderQuantity  = "수량"
	HeaderSourceURL = "구매사이트"
	HeaderTotal     = "가격"
)

// Columns is the header row.
var Columns = []string{
	HeaderTimestamp,
	HeaderApplicant,
	HeaderTitle,
	HeaderAuthor,
	HeaderPublisher,
	HeaderUnitPrice,
	HeaderQuantity,
	HeaderSourceURL,
	HeaderTotal,
}

// 1-based column numbers.
const (
	ColTimestamp = iota + 1
	ColApplicant
	ColTitle
	ColAuthor
	ColPublisher
	ColUnitPrice
	ColQuantity
	ColSourceURL
	ColTotal
)

// HeaderRow is the row number of the header.
const HeaderRow = 1

var (
	// ErrRowOutOfRange is returned when a row or column does not exist.
	ErrRowOutOfRange = errors.New("ledger: cell out of range")
	// ErrWidth is returned when a row does not have exactly len(Columns) values.
	ErrWidth = errors.New("ledger: wrong number of values")
)

// Record is one data row keyed by column header.
type Record map[string]string

// Ledger is the shared order sheet.
type Ledger interface {
	AppendRow(ctx context.Context, values []string) error
	UpdateCell(ctx context.Context, row, col int, value string) error
	ReadAllRecords(ctx context.Context) ([]Record, error)
	Close() error
}

// Open returns the ledger configured by cfg.LedgerDriver.
func Open(ctx context.Context, cfg *config.Config) (Ledger, error) {
	switch cfg.LedgerDriver {
	case "memory":
		return NewMemory(), nil
	case "xlsx":
		return OpenXLSX(cfg.LedgerPath)
	case "sqlite":
		return OpenSQLite(ctx, cfg.LedgerPath)
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.LedgerDriver)
	}
}

// RowFor converts a 0-based record index to its sheet row.
func RowFor(index int) int {
	return index + HeaderRow + 1
}

// RowValues lays an order row out in column order.
func RowValues(o models.OrderRow) []string {
	return []string{
		o.Timestamp,
		o.ApplicantName,
		o.Title,
		o.Author,
		o.Publisher,
		o.UnitPrice,
		strconv.Itoa(o.Quantity),
		o.SourceURL,
		o.TotalPrice,
	}
}

// ToRecord keys values by header.
func ToRecord(values []string) Record {
	rec := make(Record, len(Columns))
	for i, h := range Columns {
		if i < len(values) {
			rec[h] = values[i]
		} else {
			rec[h] = ""
		}
	}
	return rec
}

// OrderRow decodes a record. A quantity that is not an integer decodes as 0.
func (r Record) OrderRow() models.OrderRow {
	qty, _ := strconv.Atoi(r[HeaderQuantity])
	return models.OrderRow{
		Timestamp:     r[HeaderTimestamp],
		ApplicantName: r[HeaderApplicant],
		Title:         r[HeaderTitle],
		Author:        r[HeaderAuthor],
		Publisher:     r[HeaderPublisher],
		UnitPrice:     r[HeaderUnitPrice],
		Quantity:      qty,
		SourceURL:     r[HeaderSourceURL],
		TotalPrice:    r[HeaderTotal],
	}
}

func checkWidth(values []string) error {
	if len(values) != len(Columns) {
		return fmt.Errorf("%w: got %d, want %d", ErrWidth, len(values), len(Columns))
	}
	return nil
}

func checkCell(row, col, rows int) error {
	if row <= HeaderRow || row > rows+HeaderRow || col < 1 || col > len(Columns) {
		return fmt.Errorf("%w: row %d col %d", ErrRowOutOfRange, row, col)
	}
	return nil
}
