package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vainnor/atc-hours/db"
	"github.com/vainnor/atc-hours/ledger"
	"github.com/vainnor/atc-hours/metrics"
	"github.com/vainnor/atc-hours/models"
	"github.com/vainnor/atc-hours/types"
)

// ErrStaleSnapshot is returned when the latest snapshot is older than the
// configured maximum age.
var ErrStaleSnapshot = errors.New("snapshot is stale")

// cycleTimeout bounds a single reconciliation cycle.
const cycleTimeout = time.Minute

type SnapshotSource interface {
	Latest(ctx context.Context) (*types.VatsimData, error)
}

type MemberDirectory interface {
	Member(ctx context.Context, cid int) (*models.Member, error)
}

type SessionStore interface {
	OpenSessions(ctx context.Context) ([]models.Session, error)
	CreateSession(ctx context.Context, sess *models.Session) error
	TouchSession(ctx context.Context, id int64, end time.Time) error
	CloseSession(ctx context.Context, sess *models.Session, acc ledger.Accrual) (*models.HoursEntry, error)
}

type RosterStore interface {
	ReplaceOnline(ctx context.Context, rows []models.OnlineController) error
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type Options struct {
	Facilities     []string
	Interval       time.Duration
	GracePeriod    time.Duration
	SnapshotMaxAge time.Duration
	NotifyTimeout  time.Duration
}

type Deps struct {
	Source   SnapshotSource
	Members  MemberDirectory
	Sessions SessionStore
	Roster   RosterStore
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Collector reconciles the datafeed against the session store. Reconcile
// must not be called concurrently; Run guarantees that.
type Collector struct {
	opts     Options
	source   SnapshotSource
	members  MemberDirectory
	sessions SessionStore
	roster   RosterStore
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time

	alerts alertState

	mu    sync.RWMutex
	stats types.CollectionStats
}

func NewCollector(opts Options, deps Deps) *Collector {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 5 * time.Second
	}
	return &Collector{
		opts:     opts,
		source:   deps.Source,
		members:  deps.Members,
		sessions: deps.Sessions,
		roster:   deps.Roster,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		log:      deps.Logger,
		now:      deps.Clock,
		alerts:   make(alertState),
		stats: types.CollectionStats{
			StartTime: deps.Clock(),
		},
	}
}

func (c *Collector) GetStats() types.CollectionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Run reconciles once per interval until ctx is cancelled. The wait
// starts after a cycle finishes, so cycles never overlap. A cycle that has
// started runs to completion even if ctx is cancelled meanwhile.
func (c *Collector) Run(ctx context.Context) error {
	c.log.Info("starting reconciliation loop",
		zap.Duration("interval", c.opts.Interval),
		zap.Duration("grace_period", c.opts.GracePeriod),
		zap.Strings("facilities", c.opts.Facilities))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("reconciliation loop stopped")
			return nil
		case <-timer.C:
		}

		c.runCycle(ctx)
		timer.Reset(c.opts.Interval)
	}
}

func (c *Collector) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cycleTimeout)
	defer cancel()

	if err := c.Reconcile(cycleCtx); err != nil {
		c.log.Warn("skipped reconciliation cycle", zap.Error(err))
	}
}

// Reconcile runs one cycle: fetch, filter, maintain alerts, extend or
// open sessions, close sessions past the grace period, rebuild the online
// projection. It returns an error only when the whole cycle was skipped;
// per-entity failures are logged and do not stop the cycle.
func (c *Collector) Reconcile(ctx context.Context) error {
	started := c.now()
	now := models.NormalizeTime(started)
	log := c.log.With(zap.String("cycle", uuid.NewString()))

	data, err := c.source.Latest(ctx)
	if err == nil {
		err = c.checkFresh(data, now)
	}
	if err != nil {
		c.skipped()
		return fmt.Errorf("fetching snapshot: %w", err)
	}

	online := FilterFacilities(data.Controllers, c.opts.Facilities)

	// The previous cycle's open set. Sessions created below are not in
	// it, so they can never be closed in the cycle that opens them.
	open, err := c.sessions.OpenSessions(ctx)
	if err != nil {
		c.skipped()
		return fmt.Errorf("loading open sessions: %w", err)
	}

	present := make(map[string]bool, len(online))
	ratings := make(map[int]int, len(online))
	for _, ctl := range online {
		present[ctl.Callsign] = true
		ratings[ctl.CID] = ctl.Rating
	}
	c.alerts.retain(present)

	openByKey := make(map[models.SessionKey]*models.Session, len(open))
	for i := range open {
		openByKey[open[i].Key()] = &open[i]
	}

	matched := make(map[int64]bool, len(online))
	closedElsewhere := make(map[int64]bool)
	var stillOpen []*models.Session
	var opened int64

	for _, ctl := range online {
		if ctl.CID <= 0 || ctl.Callsign == "" {
			log.Warn("skipping invalid controller entry",
				zap.Int("cid", ctl.CID), zap.String("callsign", ctl.Callsign))
			c.metrics.EntityError("validate")
			continue
		}

		key := models.NewSessionKey(ctl.CID, ctl.Callsign, ctl.LogonTime)
		if sess, ok := openByKey[key]; ok {
			if matched[sess.ID] {
				continue
			}
			matched[sess.ID] = true
			if !c.extendSession(ctx, log, sess, now) {
				closedElsewhere[sess.ID] = true
			}
			continue
		}

		sess := c.openSession(ctx, log, ctl, now)
		if sess == nil {
			continue
		}
		opened++
		openByKey[key] = sess
		matched[sess.ID] = true
		stillOpen = append(stillOpen, sess)
	}

	var closed int64
	for i := range open {
		sess := &open[i]
		if closedElsewhere[sess.ID] {
			continue
		}
		if matched[sess.ID] || now.Sub(sess.End) < c.opts.GracePeriod {
			stillOpen = append(stillOpen, sess)
			continue
		}
		if c.closeSession(ctx, log, sess, now) {
			closed++
		} else {
			stillOpen = append(stillOpen, sess)
		}
	}

	rows := c.buildRoster(ctx, log, stillOpen, ratings, now)
	if err := c.roster.ReplaceOnline(ctx, rows); err != nil {
		log.Error("rebuilding online roster", zap.Error(err))
		c.metrics.EntityError("roster")
	}

	elapsed := c.now().Sub(started)
	c.metrics.CycleCompleted(elapsed, len(rows))

	c.mu.Lock()
	c.stats.LastUpdate = now
	c.stats.LastFeedUpdate = data.General.UpdateTimestamp
	c.stats.TotalCycles++
	c.stats.SessionsOpened += opened
	c.stats.SessionsClosed += closed
	c.stats.OnlineNow = len(rows)
	c.stats.NonMembersOnline = len(c.alerts)
	c.mu.Unlock()

	log.Debug("reconciliation cycle complete",
		zap.Int("in_scope", len(online)),
		zap.Int("online", len(rows)),
		zap.Int64("opened", opened),
		zap.Int64("closed", closed),
		zap.Duration("elapsed", elapsed))

	return nil
}

func (c *Collector) checkFresh(data *types.VatsimData, now time.Time) error {
	if data == nil {
		return errors.New("source returned no snapshot")
	}
	if c.opts.SnapshotMaxAge > 0 {
		if age := now.Sub(data.General.UpdateTimestamp); age > c.opts.SnapshotMaxAge {
			return fmt.Errorf("%w: updated %s ago", ErrStaleSnapshot, age.Round(time.Second))
		}
	}
	return nil
}

func (c *Collector) skipped() {
	c.metrics.CycleSkipped()
	c.mu.Lock()
	c.stats.SkippedCycles++
	c.mu.Unlock()
}

// extendSession advances the end of sess. It reports false when the row
// turned out to be closed already.
func (c *Collector) extendSession(ctx context.Context, log *zap.Logger, sess *models.Session, now time.Time) bool {
	err := c.sessions.TouchSession(ctx, sess.ID, now)
	if errors.Is(err, db.ErrSessionClosed) {
		log.Warn("session was already closed",
			zap.Int64("session_id", sess.ID), zap.String("callsign", sess.Callsign))
		return false
	}
	if err != nil {
		log.Error("extending session",
			zap.Int64("session_id", sess.ID), zap.String("callsign", sess.Callsign), zap.Error(err))
		c.metrics.EntityError("extend")
		return true
	}
	sess.End = now
	return true
}

// openSession resolves the controller to a member and creates a session.
// It returns nil when no session was created.
func (c *Collector) openSession(ctx context.Context, log *zap.Logger, ctl types.Controller, now time.Time) *models.Session {
	member, err := c.members.Member(ctx, ctl.CID)
	if errors.Is(err, models.ErrMemberNotFound) {
		if c.alerts.add(ctl.Callsign) {
			log.Info("non-member controlling",
				zap.Int("cid", ctl.CID), zap.String("callsign", ctl.Callsign))
			c.metrics.NonMemberAlert()
			c.notify(ctx, log, models.Notification{
				Kind:      models.NotifyNonMember,
				CID:       ctl.CID,
				Name:      ctl.Name,
				Callsign:  ctl.Callsign,
				Frequency: ctl.Frequency,
				Start:     ctl.LogonTime.UTC(),
				At:        now,
			})
		}
		return nil
	}
	if err != nil {
		log.Error("resolving member",
			zap.Int("cid", ctl.CID), zap.String("callsign", ctl.Callsign), zap.Error(err))
		c.metrics.EntityError("member")
		return nil
	}

	name := member.DisplayName()
	if name == "" {
		name = ctl.Name
	}
	sess := &models.Session{
		CID:       ctl.CID,
		Name:      name,
		Callsign:  ctl.Callsign,
		Frequency: ctl.Frequency,
		Start:     models.NormalizeTime(ctl.LogonTime),
		End:       now,
	}
	if err := c.sessions.CreateSession(ctx, sess); err != nil {
		if errors.Is(err, db.ErrSessionExists) {
			log.Warn("open session appeared outside the reconciler",
				zap.Int("cid", ctl.CID), zap.String("callsign", ctl.Callsign))
		} else {
			log.Error("creating session",
				zap.Int("cid", ctl.CID), zap.String("callsign", ctl.Callsign), zap.Error(err))
		}
		c.metrics.EntityError("create")
		return nil
	}

	log.Info("controller online",
		zap.Int64("session_id", sess.ID), zap.Int("cid", sess.CID), zap.String("callsign", sess.Callsign))
	c.metrics.SessionOpened()
	c.notify(ctx, log, models.Notification{
		Kind:      models.NotifyOnline,
		CID:       sess.CID,
		Name:      sess.Name,
		Callsign:  sess.Callsign,
		Frequency: sess.Frequency,
		Start:     sess.Start,
		At:        now,
	})
	return sess
}

// closeSession closes sess and accrues its hours. It reports whether the
// session is closed afterwards.
func (c *Collector) closeSession(ctx context.Context, log *zap.Logger, sess *models.Session, now time.Time) bool {
	sess.Duration = sess.ClosedDuration()
	acc := ledger.ForSession(sess)
	log = log.With(zap.Int64("session_id", sess.ID), zap.Int("cid", sess.CID), zap.String("callsign", sess.Callsign))

	entry, err := c.sessions.CloseSession(ctx, sess, acc)
	if errors.Is(err, db.ErrSessionClosed) {
		log.Warn("session was already closed")
		return true
	}
	if err != nil {
		log.Error("closing session", zap.Error(err))
		c.metrics.EntityError("close")
		sess.Duration = 0
		return false
	}

	hours := acc.Hours.InexactFloat64()
	if acc.Category == models.CategoryNone {
		log.Warn("callsign has no hours category, duration not accrued", zap.Float64("hours", hours))
	}
	c.metrics.SessionClosed(acc.Category, hours)

	var monthHours float64
	if entry != nil {
		monthHours = entry.Total()
	}
	log.Info("controller offline", zap.Duration("duration", sess.Duration), zap.Float64("hours", hours))
	c.notify(ctx, log, models.Notification{
		Kind:         models.NotifyOffline,
		CID:          sess.CID,
		Name:         sess.Name,
		Callsign:     sess.Callsign,
		Frequency:    sess.Frequency,
		Start:        sess.Start,
		End:          sess.End,
		SessionHours: hours,
		MonthHours:   monthHours,
		At:           now,
	})
	return true
}

func (c *Collector) notify(ctx context.Context, log *zap.Logger, n models.Notification) {
	if c.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.NotifyTimeout)
	defer cancel()

	if err := c.notifier.Notify(ctx, n); err != nil {
		log.Warn("notification failed", zap.String("kind", string(n.Kind)), zap.Error(err))
		c.metrics.NotifyError()
	}
}
