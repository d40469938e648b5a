// Package notify delivers controller activity notifications to outbound
// gateways. Delivery errors are returned to the caller, which logs them;
// they never affect session state.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/vainnor/atc-hours/models"
)

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, models.Notification) error { return nil }

// Multi delivers to each notifier in order and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, inner := range m {
		if err := inner.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary is the plain-text form of a notification.
func Summary(n models.Notification) string {
	switch n.Kind {
	case models.NotifyOnline:
		return fmt.Sprintf("%s (%d) is now online as %s on %s", n.Name, n.CID, n.Callsign, n.Frequency)
	case models.NotifyOffline:
		return fmt.Sprintf("%s (%d) went offline from %s after %.2f hours (%.2f hours this month)",
			n.Name, n.CID, n.Callsign, n.SessionHours, n.MonthHours)
	case models.NotifyNonMember:
		return fmt.Sprintf("Non-member %s (%d) is controlling %s on %s", n.Name, n.CID, n.Callsign, n.Frequency)
	}
	return fmt.Sprintf("%s: %s (%d)", n.Kind, n.Callsign, n.CID)
}
