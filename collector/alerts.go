package collector

// alertState is the set of callsigns currently alerted as controlled by a
// non-member. A callsign stays in the set until it drops out of the
// filtered snapshot, which suppresses repeat alerts while it stays online.
type alertState map[string]struct{}

// retain drops every alerted callsign that is not in present.
func (a alertState) retain(present map[string]bool) {
	for callsign := range a {
		if !present[callsign] {
			delete(a, callsign)
		}
	}
}

// add records callsign and reports whether it was newly added.
func (a alertState) add(callsign string) bool {
	if _, ok := a[callsign]; ok {
		return false
	}
	a[callsign] = struct{}{}
	return true
}
