package notify

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Processed *prometheus.CounterVec
	Reopens   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_processed_total",
			Help: "Ticket events handled by the notification service.",
		}, []string{"event_type", "status"}),
		Reopens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_consumer_reopens_total",
			Help: "Times the Kafka reader was rebuilt after repeated fetch errors.",
		}),
	}
	reg.MustRegister(m.Processed, m.Reopens)
	return m
}
