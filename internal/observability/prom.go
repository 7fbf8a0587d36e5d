package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ums"

// Prom holds every collector the api and worker export. The Inc/Observe
// helpers accept a nil *Prom so tests and tools can run without metrics.
type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	AuthFailures *prometheus.CounterVec
	RateLimited  *prometheus.CounterVec
	TokenEvents  *prometheus.CounterVec
	UserEvents   *prometheus.CounterVec

	JobDuration  *prometheus.HistogramVec
	JobResults   *prometheus.CounterVec
	JobsInFlight prometheus.Gauge
}

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: counterVec("http", "requests_total",
			"HTTP requests by method, route template and status.",
			"method", "route", "status"),
		RequestsDuration: histogramVec("http", "request_duration_seconds",
			"HTTP request latency.",
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			"method", "route", "status"),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "in_flight_requests",
			Help: "Requests currently being served.",
		}, []string{"method", "route"}),

		DbQueryDuration: histogramVec("db", "query_duration_seconds",
			"Repository operation latency by logical op.",
			[]float64{0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			"op", "status"),
		DbErrorsTotal: counterVec("db", "errors_total",
			"Repository errors by logical op and class.",
			"op", "class"),

		AuthFailures: counterVec("auth", "failures_total",
			"Rejected credentials and tokens by reason.",
			"reason"),
		RateLimited: counterVec("auth", "rate_limited_total",
			"Requests rejected by the rate limiter.",
			"route"),
		TokenEvents: counterVec("auth", "token_events_total",
			"Token pairs issued, rotated or revoked, and refresh reuse detections.",
			"event"),
		UserEvents: counterVec("users", "events_total",
			"User lifecycle events by name.",
			"event"),

		JobDuration: histogramVec("jobs", "duration_seconds",
			"Job run time by type and result (done, retry, failed).",
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
			"job_type", "result"),
		JobResults: counterVec("jobs", "results_total",
			"Job outcomes by type and result.",
			"job_type", "result"),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "in_flight",
			Help: "Jobs executing in this process.",
		}),
	}

	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.AuthFailures, p.RateLimited, p.TokenEvents, p.UserEvents,
		p.JobDuration, p.JobResults, p.JobsInFlight,
	)

	return p
}

// GinHandleMiddleware records request count, latency and in-flight gauge
// labelled by route template, so /api/users/:id is one series.
func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method

		inFlight := p.InFlight.WithLabelValues(method, route)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
	}
}

func (p *Prom) IncAuthFailure(reason string) {
	if p == nil {
		return
	}
	p.AuthFailures.WithLabelValues(reason).Inc()
}

func (p *Prom) IncRateLimited(route string) {
	if p == nil {
		return
	}
	p.RateLimited.WithLabelValues(route).Inc()
}

func (p *Prom) IncTokenEvent(event string) {
	if p == nil {
		return
	}
	p.TokenEvents.WithLabelValues(event).Inc()
}

func (p *Prom) IncUserEvent(event string) {
	if p == nil {
		return
	}
	p.UserEvents.WithLabelValues(event).Inc()
}

// TrackJob bumps the in-flight gauge and returns the matching decrement.
func (p *Prom) TrackJob() func() {
	if p == nil {
		return func() {}
	}
	p.JobsInFlight.Inc()
	return p.JobsInFlight.Dec
}

func (p *Prom) ObserveJob(jobType, result string, d time.Duration) {
	if p == nil {
		return
	}
	p.JobResults.WithLabelValues(jobType, result).Inc()
	p.JobDuration.WithLabelValues(jobType, result).Observe(d.Seconds())
}
