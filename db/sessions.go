package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vainnor/atc-hours/ledger"
	"github.com/vainnor/atc-hours/models"
)

var (
	// ErrSessionExists is returned when an open session with the same
	// (cid, callsign, start) already exists.
	ErrSessionExists = errors.New("open session already exists")
	// ErrSessionClosed is returned when a session expected to be open has
	// already been closed.
	ErrSessionClosed = errors.New("session already closed")
)

// OpenSessions returns every session that has not been closed yet.
func (s *Store) OpenSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cid, name, callsign, frequency, start_time, end_time
		FROM controller_sessions
		WHERE duration_ms = 0
		ORDER BY start_time, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sess models.Session
		err := rows.Scan(
			&sess.ID,
			&sess.CID,
			&sess.Name,
			&sess.Callsign,
			&sess.Frequency,
			&sess.Start,
			&sess.End,
		)
		if err != nil {
			return nil, err
		}
		sess.Start = sess.Start.UTC()
		sess.End = sess.End.UTC()
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// CreateSession inserts an open session and sets its ID.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO controller_sessions (
			cid, name, callsign, frequency, start_time, end_time
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cid, callsign, start_time) WHERE duration_ms = 0 DO NOTHING
		RETURNING id
	`, sess.CID, sess.Name, sess.Callsign, sess.Frequency, sess.Start, sess.End).Scan(&sess.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionExists
	}
	return err
}

// TouchSession advances the end of an open session.
func (s *Store) TouchSession(ctx context.Context, id int64, end time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE controller_sessions
		SET end_time = $1
		WHERE id = $2 AND duration_ms = 0
	`, end, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// CloseSession fixes the duration of an open session and applies its
// ledger accrual in the same transaction. The returned entry is the
// member's ledger entry for the month after the accrual; it is created on
// the first close of the month even when no bucket changes. The close only
// happens if the row is still open, so a session is never accrued twice.
func (s *Store) CloseSession(ctx context.Context, sess *models.Session, acc ledger.Accrual) (*models.HoursEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE controller_sessions
		SET end_time = $1, duration_ms = $2
		WHERE id = $3 AND duration_ms = 0
	`, sess.End, sess.Duration.Milliseconds(), sess.ID)
	if err != nil {
		return nil, err
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}

	entry, err := ledger.Accrue(ctx, tx, acc)
	if err != nil {
		return nil, fmt.Errorf("accruing hours: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionClosed
	}
	return nil
}
