package models

import "time"

// Session represents one continuous controlling stint on a callsign.
// A session is open while Duration is zero.
type Session struct {
	ID        int64         `json:"id"`
	CID       int           `json:"cid"`
	Name      string        `json:"name"`
	Callsign  string        `json:"callsign"`
	Frequency string        `json:"frequency"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Duration  time.Duration `json:"duration"`
}

// SessionKey identifies an open session across cycles.
type SessionKey struct {
	CID      int
	Callsign string
	Start    int64 // unix nanoseconds
}

func NewSessionKey(cid int, callsign string, start time.Time) SessionKey {
	return SessionKey{CID: cid, Callsign: callsign, Start: NormalizeTime(start).UnixNano()}
}

// NormalizeTime rounds t to the microsecond precision Postgres stores, so
// feed timestamps and stored timestamps compare equal.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Round(time.Microsecond)
}

func (s *Session) Key() SessionKey {
	return NewSessionKey(s.CID, s.Callsign, s.Start)
}

func (s *Session) IsOpen() bool {
	return s.Duration == 0
}

// ClosedDuration is the duration a session gets when it closes. It is
// never zero so a closed session cannot read as open.
func (s *Session) ClosedDuration() time.Duration {
	d := s.End.Sub(s.Start)
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}
