// Package ledger maintains the monthly per-member controlling hours.
//
// Entries are only ever created lazily and incremented. Totals are summed
// on read and never stored.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vainnor/atc-hours/models"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Accrual is one closed session's contribution to the ledger.
type Accrual struct {
	CID      int
	Month    int
	Year     int
	Category models.Category
	Hours    decimal.Decimal
}

var msPerHour = decimal.NewFromInt(int64(time.Hour / time.Millisecond))

// HoursOf converts a duration to hours rounded to two decimal places.
func HoursOf(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(d.Milliseconds()).Div(msPerHour).Round(2)
}

// ForSession derives the accrual for a closed session. The month is the
// month of the session end in UTC.
func ForSession(s *models.Session) Accrual {
	end := s.End.UTC()
	return Accrual{
		CID:      s.CID,
		Month:    int(end.Month()),
		Year:     end.Year(),
		Category: models.CategoryForCallsign(s.Callsign),
		Hours:    HoursOf(s.Duration),
	}
}

// Accrues reports whether applying a changes any bucket.
func (a Accrual) Accrues() bool {
	return a.Category != models.CategoryNone && a.Hours.IsPositive()
}

var bucketColumns = map[models.Category]string{
	models.CategoryDelivery: "delivery_hours",
	models.CategoryGround:   "ground_hours",
	models.CategoryTower:    "tower_hours",
	models.CategoryTracon:   "tracon_hours",
	models.CategoryCenter:   "center_hours",
}

const entryColumns = `id, cid, month, year, delivery_hours, ground_hours, tower_hours, tracon_hours, center_hours`

const selectEntry = `
	SELECT ` + entryColumns + `
	FROM controller_hours
	WHERE cid = $1 AND month = $2 AND year = $3
`

// Accrue adds a's hours to its bucket, creating the (cid, month, year)
// entry with zero buckets first if needed, and returns the updated entry.
// An accrual that changes no bucket still creates the entry.
func Accrue(ctx context.Context, q Querier, a Accrual) (*models.HoursEntry, error) {
	if !a.Accrues() {
		return ensure(ctx, q, a.CID, a.Month, a.Year)
	}
	column := bucketColumns[a.Category]

	query := fmt.Sprintf(`
		INSERT INTO controller_hours (cid, month, year, %[1]s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cid, month, year) DO UPDATE
		SET %[1]s = controller_hours.%[1]s + EXCLUDED.%[1]s
		RETURNING %[2]s
	`, column, entryColumns)

	return scanEntry(q.QueryRowContext(ctx, query, a.CID, a.Month, a.Year, a.Hours))
}

// Get returns the entry for (cid, month, year), or nil if the member has
// no hours that month.
func Get(ctx context.Context, q Querier, cid, month, year int) (*models.HoursEntry, error) {
	entry, err := scanEntry(q.QueryRowContext(ctx, selectEntry, cid, month, year))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// ensure creates the zero entry for (cid, month, year) if it is missing
// and returns the stored entry.
func ensure(ctx context.Context, q Querier, cid, month, year int) (*models.HoursEntry, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO controller_hours (cid, month, year)
		VALUES ($1, $2, $3)
		ON CONFLICT (cid, month, year) DO NOTHING
	`, cid, month, year)
	if err != nil {
		return nil, err
	}
	return scanEntry(q.QueryRowContext(ctx, selectEntry, cid, month, year))
}

func scanEntry(row *sql.Row) (*models.HoursEntry, error) {
	var e models.HoursEntry
	err := row.Scan(
		&e.ID, &e.CID, &e.Month, &e.Year,
		&e.DeliveryHours, &e.GroundHours, &e.TowerHours, &e.TraconHours, &e.CenterHours,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
