package collector

import (
	"sort"
	"strings"

	"github.com/vainnor/atc-hours/types"
)

// FilterFacilities returns the controllers whose callsign starts with one
// of the facility identifiers. The match is a case-sensitive prefix test.
// The result is ordered by callsign and CID regardless of input order.
func FilterFacilities(controllers []types.Controller, facilities []string) []types.Controller {
	var out []types.Controller
	for _, ctl := range controllers {
		for _, prefix := range facilities {
			if prefix != "" && strings.HasPrefix(ctl.Callsign, prefix) {
				out = append(out, ctl)
				break
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Callsign != out[j].Callsign {
			return out[i].Callsign < out[j].Callsign
		}
		if out[i].CID != out[j].CID {
			return out[i].CID < out[j].CID
		}
		return out[i].LogonTime.Before(out[j].LogonTime)
	})
	return out
}
