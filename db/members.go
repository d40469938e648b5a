package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vainnor/atc-hours/models"
)

// Member looks up an active facility member by CID. It returns
// models.ErrMemberNotFound when the CID is not on the roster.
func (s *Store) Member(ctx context.Context, cid int) (*models.Member, error) {
	var m models.Member
	err := s.db.QueryRowContext(ctx, `
		SELECT cid, first_name, last_name, rating
		FROM members
		WHERE cid = $1 AND active = true
	`, cid).Scan(&m.CID, &m.FirstName, &m.LastName, &m.Rating)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
