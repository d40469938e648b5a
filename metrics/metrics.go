package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vainnor/atc-hours/models"
)

// Metrics instruments the reconciliation loop. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	sessionsOpened  prometheus.Counter
	sessionsClosed  prometheus.Counter
	hoursAccrued    *prometheus.CounterVec
	hoursUnaccrued  prometheus.Counter
	nonMemberAlerts prometheus.Counter
	entityErrors    *prometheus.CounterVec
	notifyErrors    prometheus.Counter
	online          prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_cycles_total",
			Help: "Reconciliation cycles by result (ok, skipped).",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconcile_cycle_duration_seconds",
			Help:    "Histogram of completed reconciliation cycle durations.",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "controller_sessions_opened_total",
			Help: "Controller sessions opened.",
		}),
		sessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "controller_sessions_closed_total",
			Help: "Controller sessions closed.",
		}),
		hoursAccrued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "controller_hours_accrued_total",
			Help: "Hours added to the ledger by position category.",
		}, []string{"category"}),
		hoursUnaccrued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "controller_hours_unaccrued_total",
			Help: "Hours of closed sessions whose callsign maps to no category.",
		}),
		nonMemberAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "non_member_alerts_total",
			Help: "Non-member controlling alerts raised.",
		}),
		entityErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_entity_errors_total",
			Help: "Per-entity failures skipped during reconciliation, by operation.",
		}, []string{"op"}),
		notifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_errors_total",
			Help: "Notification deliveries that failed.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "controllers_online",
			Help: "Open sessions at the end of the last cycle.",
		}),
	}

	reg.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.sessionsOpened,
		m.sessionsClosed,
		m.hoursAccrued,
		m.hoursUnaccrued,
		m.nonMemberAlerts,
		m.entityErrors,
		m.notifyErrors,
		m.online,
	)

	return m
}

func (m *Metrics) CycleCompleted(d time.Duration, online int) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues("ok").Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.online.Set(float64(online))
}

func (m *Metrics) CycleSkipped() {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues("skipped").Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
}

func (m *Metrics) SessionClosed(c models.Category, hours float64) {
	if m == nil {
		return
	}
	m.sessionsClosed.Inc()
	if c == models.CategoryNone {
		m.hoursUnaccrued.Add(hours)
		return
	}
	m.hoursAccrued.WithLabelValues(string(c)).Add(hours)
}

func (m *Metrics) NonMemberAlert() {
	if m == nil {
		return
	}
	m.nonMemberAlerts.Inc()
}

func (m *Metrics) EntityError(op string) {
	if m == nil {
		return
	}
	m.entityErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) NotifyError() {
	if m == nil {
		return
	}
	m.notifyErrors.Inc()
}
