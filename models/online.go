package models

import (
	"fmt"
	"time"
)

// OnlineController is a row of the "who's online" projection.
type OnlineController struct {
	CID       int       `json:"cid"`
	Name      string    `json:"name"`
	Rating    string    `json:"rating"`
	Callsign  string    `json:"callsign"`
	Frequency string    `json:"frequency"`
	Online    string    `json:"online"`
	Since     time.Time `json:"since"`
}

// FormatElapsed renders a coarse elapsed time: "<1m", "12m", "1h 05m".
func FormatElapsed(d time.Duration) string {
	if d < time.Minute {
		return "<1m"
	}
	d = d.Truncate(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}
