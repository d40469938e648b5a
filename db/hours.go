package db

import (
	"context"

	"github.com/vainnor/atc-hours/ledger"
	"github.com/vainnor/atc-hours/models"
)

// Hours returns a member's ledger entry for a month, or nil if none.
func (s *Store) Hours(ctx context.Context, cid, month, year int) (*models.HoursEntry, error) {
	return ledger.Get(ctx, s.db, cid, month, year)
}
