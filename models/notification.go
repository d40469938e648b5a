package models

import "time"

type NotificationKind string

const (
	NotifyOnline    NotificationKind = "online"
	NotifyOffline   NotificationKind = "offline"
	NotifyNonMember NotificationKind = "non_member"
)

// Notification is handed to the alerting gateway. SessionHours and
// MonthHours are only set for offline notifications.
type Notification struct {
	Kind         NotificationKind `json:"kind"`
	CID          int              `json:"cid"`
	Name         string           `json:"name"`
	Callsign     string           `json:"callsign"`
	Frequency    string           `json:"frequency"`
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end,omitempty"`
	SessionHours float64          `json:"session_hours,omitempty"`
	MonthHours   float64          `json:"month_hours,omitempty"`
	At           time.Time        `json:"at"`
}
