package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "enrollments_total",
		Help:      "Total number of face enrollment attempts",
	}, []string{"result"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "verifications_total",
		Help:      "Total number of face verification attempts",
	}, []string{"decision"})

	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "checkins_total",
		Help:      "Total number of attendance check-in attempts",
	}, []string{"status"})

	AbsentRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "absent_records_total",
		Help:      "Total number of absent records created by the sweeper",
	})

	EncoderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "encoder_duration_seconds",
		Help:      "Duration of encoder gateway stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	RegisteredTemplates = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "presence",
		Name:      "registered_templates",
		Help:      "Number of identities with an enrolled face template",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "presence",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
