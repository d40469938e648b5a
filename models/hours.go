package models

import "strings"

// Category is a position category hours are accrued under.
type Category string

const (
	CategoryDelivery Category = "delivery"
	CategoryGround   Category = "ground"
	CategoryTower    Category = "tower"
	CategoryTracon   Category = "tracon"
	CategoryCenter   Category = "center"
	CategoryNone     Category = ""
)

var suffixCategories = map[string]Category{
	"_DEL": CategoryDelivery,
	"_GND": CategoryGround,
	"_TWR": CategoryTower,
	"_APP": CategoryTracon,
	"_DEP": CategoryTracon,
	"_CTR": CategoryCenter,
}

// CategoryForCallsign maps a callsign suffix to its category. Callsigns
// with an unknown suffix (_FSS, _OBS, _ATIS, ...) return CategoryNone.
func CategoryForCallsign(callsign string) Category {
	i := strings.LastIndex(callsign, "_")
	if i < 0 {
		return CategoryNone
	}
	return suffixCategories[callsign[i:]]
}

// HoursEntry is one member's controlling hours for one month.
type HoursEntry struct {
	ID            int64   `json:"id"`
	CID           int     `json:"cid"`
	Month         int     `json:"month"`
	Year          int     `json:"year"`
	DeliveryHours float64 `json:"delivery_hours"`
	GroundHours   float64 `json:"ground_hours"`
	TowerHours    float64 `json:"tower_hours"`
	TraconHours   float64 `json:"tracon_hours"`
	CenterHours   float64 `json:"center_hours"`
}

func (h *HoursEntry) Total() float64 {
	return h.DeliveryHours + h.GroundHours + h.TowerHours + h.TraconHours + h.CenterHours
}

// Bucket returns the accumulator for c, or 0 for CategoryNone.
func (h *HoursEntry) Bucket(c Category) float64 {
	switch c {
	case CategoryDelivery:
		return h.DeliveryHours
	case CategoryGround:
		return h.GroundHours
	case CategoryTower:
		return h.TowerHours
	case CategoryTracon:
		return h.TraconHours
	case CategoryCenter:
		return h.CenterHours
	}
	return 0
}
