// Package intake turns extracted or hand-entered book details into ledger rows
// and lets applicants change the quantity of their own rows.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ChoisMath/kyobobook/ledger"
	"github.com/ChoisMath/kyobobook/models"
	"github.com/ChoisMath/kyobobook/parser"
)

// TimestampLayout is how request times are written to the ledger.
const TimestampLayout = "2006-01-02 15:04:05"

// Quantity bounds accepted from applicants.
const (
	MinQuantity = 1
	MaxQuantity = 100
)

var (
	ErrMissingFields   = errors.New("required fields are missing")
	ErrInvalidPrice    = errors.New("unit price must contain digits only")
	ErrInvalidQuantity = fmt.Errorf("quantity must be between %d and %d", MinQuantity, MaxQuantity)
	ErrNotOwner        = errors.New("row belongs to another applicant")
	ErrRowNotFound     = errors.New("row not found")
)

// ManualOrder is an order typed in by the applicant instead of extracted.
type ManualOrder struct {
	Title     string
	Author    string
	Publisher string
	UnitPrice string
	Quantity  int
	SourceURL string
}

// Application is a ledger row together with its position.
type Application struct {
	Index int             `json:"index"` // 0-based position among data rows
	Row   int             `json:"row"`   // 1-based sheet row
	Order models.OrderRow `json:"order"`
}

// Service writes applications to a ledger.
type Service struct {
	ledger ledger.Ledger
	loc    *time.Location
	now    func() time.Time
}

// NewService returns a service that stamps rows in loc.
func NewService(l ledger.Ledger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{ledger: l, loc: loc, now: time.Now}
}

// Apply records an order for an extracted book. Every one of title, author,
// publisher and price must be present.
func (s *Service) Apply(ctx context.Context, applicant, url string, rec *models.BookRecord, qty int) (models.OrderRow, error) {
	applicant = strings.TrimSpace(applicant)
	if rec == nil {
		rec = &models.BookRecord{}
	}
	missing := rec.Missing()
	if applicant == "" {
		missing = append([]string{"applicant"}, missing...)
	}
	if len(missing) > 0 {
		return models.OrderRow{}, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	normalized := *rec
	normalized.Price = parser.NormalizePrice(rec.Price)
	if err := parser.ValidateRecord(&normalized); err != nil {
		return models.OrderRow{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	if err := checkPrice(normalized.Price); err != nil {
		return models.OrderRow{}, err
	}
	if err := checkQuantity(qty); err != nil {
		return models.OrderRow{}, err
	}

	unit := normalized.Price
	row := models.OrderRow{
		Timestamp:     s.timestamp(),
		ApplicantName: applicant,
		Title:         rec.Title,
		Author:        rec.Author,
		Publisher:     rec.Publisher,
		UnitPrice:     unit,
		Quantity:      qty,
		SourceURL:     parser.NormalizeURL(url),
		TotalPrice:    TotalPrice(unit, qty),
	}
	if err := s.ledger.AppendRow(ctx, ledger.RowValues(row)); err != nil {
		return models.OrderRow{}, fmt.Errorf("append application: %w", err)
	}
	slog.Info("application recorded",
		slog.String("applicant", applicant),
		slog.String("title", row.Title),
		slog.Int("quantity", qty),
		slog.String("method", rec.ExtractionMethod),
	)
	return row, nil
}

// ManualEntry records an order whose details were typed in. All fields are
// required and the unit price must be digits only.
func (s *Service) ManualEntry(ctx context.Context, applicant string, o ManualOrder) (models.OrderRow, error) {
	applicant = strings.TrimSpace(applicant)
	o.Title = strings.TrimSpace(o.Title)
	o.Author = strings.TrimSpace(o.Author)
	o.Publisher = strings.TrimSpace(o.Publisher)
	o.UnitPrice = strings.TrimSpace(o.UnitPrice)
	o.SourceURL = parser.NormalizeURL(o.SourceURL)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"applicant", applicant},
		{"title", o.Title},
		{"author", o.Author},
		{"publisher", o.Publisher},
		{"unit price", o.UnitPrice},
		{"source url", o.SourceURL},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return models.OrderRow{}, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	if err := checkPrice(o.UnitPrice); err != nil {
		return models.OrderRow{}, err
	}
	if err := checkQuantity(o.Quantity); err != nil {
		return models.OrderRow{}, err
	}

	row := models.OrderRow{
		Timestamp:     s.timestamp(),
		ApplicantName: applicant,
		Title:         o.Title,
		Author:        o.Author,
		Publisher:     o.Publisher,
		UnitPrice:     o.UnitPrice,
		Quantity:      o.Quantity,
		SourceURL:     o.SourceURL,
		TotalPrice:    TotalPrice(o.UnitPrice, o.Quantity),
	}
	if err := s.ledger.AppendRow(ctx, ledger.RowValues(row)); err != nil {
		return models.OrderRow{}, fmt.Errorf("append manual application: %w", err)
	}
	slog.Info("manual application recorded",
		slog.String("applicant", applicant),
		slog.String("title", row.Title),
		slog.Int("quantity", row.Quantity),
	)
	return row, nil
}

// ChangeQuantity rewrites the quantity and total of the row at index. Only the
// applicant who owns the row may change it.
//
// The row is located from a snapshot read just before the write; a row
// inserted or removed by another writer in between shifts the target.
func (s *Service) ChangeQuantity(ctx context.Context, applicant string, index, qty int) (models.OrderRow, error) {
	if err := checkQuantity(qty); err != nil {
		return models.OrderRow{}, err
	}
	records, err := s.ledger.ReadAllRecords(ctx)
	if err != nil {
		return models.OrderRow{}, fmt.Errorf("read ledger: %w", err)
	}
	if index < 0 || index >= len(records) {
		return models.OrderRow{}, fmt.Errorf("%w: index %d", ErrRowNotFound, index)
	}

	order := records[index].OrderRow()
	if order.ApplicantName != strings.TrimSpace(applicant) {
		return models.OrderRow{}, fmt.Errorf("%w: row %d", ErrNotOwner, ledger.RowFor(index))
	}

	previous := order.Quantity
	order.Quantity = qty
	order.TotalPrice = TotalPrice(order.UnitPrice, qty)

	row := ledger.RowFor(index)
	if err := s.ledger.UpdateCell(ctx, row, ledger.ColQuantity, strconv.Itoa(qty)); err != nil {
		return models.OrderRow{}, fmt.Errorf("update quantity: %w", err)
	}
	if err := s.ledger.UpdateCell(ctx, row, ledger.ColTotal, order.TotalPrice); err != nil {
		return models.OrderRow{}, fmt.Errorf("update total: %w", err)
	}
	slog.Info("quantity changed",
		slog.String("applicant", order.ApplicantName),
		slog.Int("row", row),
		slog.Int("from", previous),
		slog.Int("to", qty),
	)
	return order, nil
}

// Applications returns every row, newest first.
func (s *Service) Applications(ctx context.Context) ([]Application, error) {
	records, err := s.ledger.ReadAllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	apps := make([]Application, len(records))
	for i, rec := range records {
		apps[i] = Application{Index: i, Row: ledger.RowFor(i), Order: rec.OrderRow()}
	}
	sortNewestFirst(apps, s.loc)
	return apps, nil
}

// ApplicationsFor returns the rows owned by applicant, newest first.
func (s *Service) ApplicationsFor(ctx context.Context, applicant string) ([]Application, error) {
	all, err := s.Applications(ctx)
	if err != nil {
		return nil, err
	}
	applicant = strings.TrimSpace(applicant)
	var mine []Application
	for _, app := range all {
		if app.Order.ApplicantName == applicant {
			mine = append(mine, app)
		}
	}
	return mine, nil
}

// TotalPrice is unit*qty when unit is numeric and the product fits in an
// int64. Otherwise it is a formula the spreadsheet evaluates later; an empty
// unit price yields an empty total.
func TotalPrice(unit string, qty int) string {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return ""
	}
	if clean := parser.NormalizePrice(unit); parser.IsDigits(clean) {
		n, err := strconv.ParseInt(clean, 10, 64)
		if err == nil && qty >= 0 && (qty == 0 || n <= math.MaxInt64/int64(qty)) {
			return strconv.FormatInt(n*int64(qty), 10)
		}
	}
	return fmt.Sprintf("=%s * %d", unit, qty)
}

func (s *Service) timestamp() string {
	return s.now().In(s.loc).Format(TimestampLayout)
}

// checkPrice accepts a digits-only unit price that fits in an int64.
func checkPrice(unit string) error {
	if !parser.IsDigits(unit) {
		return fmt.Errorf("%w: %q", ErrInvalidPrice, unit)
	}
	if _, err := strconv.ParseInt(unit, 10, 64); err != nil {
		return fmt.Errorf("%w: %q is out of range", ErrInvalidPrice, unit)
	}
	return nil
}

func checkQuantity(qty int) error {
	if qty < MinQuantity || qty > MaxQuantity {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}
	return nil
}

// sortNewestFirst orders by parsed timestamp when every row parses, and by the
// raw string otherwise.
func sortNewestFirst(apps []Application, loc *time.Location) {
	times := make([]time.Time, len(apps))
	parsed := true
	for i, app := range apps {
		t, err := time.ParseInLocation(TimestampLayout, app.Order.Timestamp, loc)
		if err != nil {
			parsed = false
			break
		}
		times[i] = t
	}

	if parsed {
		idx := make([]int, len(apps))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return times[idx[a]].After(times[idx[b]]) })
		sorted := make([]Application, len(apps))
		for i, j := range idx {
			sorted[i] = apps[j]
		}
		copy(apps, sorted)
		return
	}
	sort.SliceStable(apps, func(a, b int) bool { return apps[a].Order.Timestamp > apps[b].Order.Timestamp })
}
