package collector

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vainnor/atc-hours/models"
)

// buildRoster projects the open sessions into "who's online" rows. Ratings
// come from the snapshot when the controller is in it, otherwise from the
// member directory.
func (c *Collector) buildRoster(ctx context.Context, log *zap.Logger, open []*models.Session, ratings map[int]int, now time.Time) []models.OnlineController {
	rows := make([]models.OnlineController, 0, len(open))
	for _, sess := range open {
		rating, ok := ratings[sess.CID]
		if !ok {
			member, err := c.members.Member(ctx, sess.CID)
			if err != nil {
				log.Debug("no rating for online controller",
					zap.Int("cid", sess.CID), zap.String("callsign", sess.Callsign), zap.Error(err))
				rating = -2
			} else {
				rating = member.Rating
			}
			ratings[sess.CID] = rating
		}

		rows = append(rows, models.OnlineController{
			CID:       sess.CID,
			Name:      sess.Name,
			Rating:    models.RatingShort(rating),
			Callsign:  sess.Callsign,
			Frequency: sess.Frequency,
			Online:    models.FormatElapsed(now.Sub(sess.Start)),
			Since:     sess.Start,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Callsign != rows[j].Callsign {
			return rows[i].Callsign < rows[j].Callsign
		}
		return rows[i].Since.Before(rows[j].Since)
	})
	return rows
}
