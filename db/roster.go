package db

import (
	"context"

	"github.com/vainnor/atc-hours/models"
)

// ReplaceOnline swaps the online roster projection for rows in a single
// transaction.
func (s *Store) ReplaceOnline(ctx context.Context, rows []models.OnlineController) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM online_controllers`); err != nil {
		return err
	}

	for _, r := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO online_controllers (
				cid, name, rating, callsign, frequency, online, since
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.CID, r.Name, r.Rating, r.Callsign, r.Frequency, r.Online, r.Since)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// OnlineControllers reads the current projection, ordered by callsign.
func (s *Store) OnlineControllers(ctx context.Context) ([]models.OnlineController, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cid, name, rating, callsign, frequency, online, since
		FROM online_controllers
		ORDER BY callsign
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	online := make([]models.OnlineController, 0)
	for rows.Next() {
		var r models.OnlineController
		if err := rows.Scan(&r.CID, &r.Name, &r.Rating, &r.Callsign, &r.Frequency, &r.Online, &r.Since); err != nil {
			return nil, err
		}
		online = append(online, r)
	}
	return online, rows.Err()
}
