package models

import (
	"errors"
	"strings"
)

// ErrMemberNotFound is returned by member lookups for a CID that is not
// on the facility roster.
var ErrMemberNotFound = errors.New("member not found")

// Member is a facility roster member as stored by the membership backend.
type Member struct {
	CID       int    `json:"cid"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Rating    int    `json:"rating"`
}

func (m *Member) DisplayName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

var ratingShort = map[int]string{
	-1: "INA",
	0:  "SUS",
	1:  "OBS",
	2:  "S1",
	3:  "S2",
	4:  "S3",
	5:  "C1",
	6:  "C2",
	7:  "C3",
	8:  "I1",
	9:  "I2",
	10: "I3",
	11: "SUP",
	12: "ADM",
}

// RatingShort returns the short code of a VATSIM controller rating id.
func RatingShort(id int) string {
	if s, ok := ratingShort[id]; ok {
		return s
	}
	return "UNK"
}
