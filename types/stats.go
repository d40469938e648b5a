package types

import "time"

// CollectionStats summarizes the reconciliation loop since process start.
type CollectionStats struct {
	LastUpdate       time.Time `json:"last_update"`
	LastFeedUpdate   time.Time `json:"last_feed_update"`
	TotalCycles      int64     `json:"total_cycles"`
	SkippedCycles    int64     `json:"skipped_cycles"`
	SessionsOpened   int64     `json:"sessions_opened"`
	SessionsClosed   int64     `json:"sessions_closed"`
	OnlineNow        int       `json:"online_now"`
	NonMembersOnline int       `json:"non_members_online"`
	StartTime        time.Time `json:"start_time"`
}
