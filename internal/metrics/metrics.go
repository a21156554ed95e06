package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "http_in_flight_requests", Help: "In-flight HTTP requests"},
	)

	// outcome: success, invalid_email, validation, exists, hash_error, db_error, cancelled
	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "user_registrations_total", Help: "Registration attempts by outcome"},
		[]string{"outcome"},
	)
	// result: sent, failed, token_error
	VerificationDispatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "verification_dispatch_total", Help: "Verification email dispatch results"},
		[]string{"result"},
	)
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected by the rate limiter"},
		[]string{"route"},
	)
)

func MustRegister() {
	prometheus.MustRegister(RequestsTotal, ReqDuration, InFlight, Registrations, VerificationDispatch, RateLimited)
}
