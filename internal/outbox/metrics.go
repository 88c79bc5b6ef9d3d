package outbox

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	PollsTotal     prometheus.Counter
	RequeuedTotal  prometheus.Counter
	PublishedTotal *prometheus.CounterVec
	FailedTotal    *prometheus.CounterVec
	DeadTotal      *prometheus.CounterVec
	StoreErrors    *prometheus.CounterVec
	LagSeconds     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PollsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "outbox_relay_polls_total", Help: "Total number of outbox polling ticks."},
		),
		RequeuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "outbox_relay_requeued_total", Help: "Stuck outbox rows requeued back to pending."},
		),
		PublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "outbox_published_total", Help: "Published outbox events."},
			[]string{"event_type"},
		),
		FailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "outbox_failed_total", Help: "Failed outbox publish attempts."},
			[]string{"event_type"},
		),
		DeadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "outbox_dead_total", Help: "Outbox events moved to dead state."},
			[]string{"event_type"},
		),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "outbox_relay_store_errors_total", Help: "Outbox table errors by operation."},
			[]string{"op"},
		),
		LagSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "outbox_lag_seconds", Help: "Lag in seconds for oldest pending outbox event."},
		),
	}
	reg.MustRegister(m.PollsTotal, m.RequeuedTotal, m.PublishedTotal, m.FailedTotal, m.DeadTotal, m.StoreErrors, m.LagSeconds)
	return m
}
