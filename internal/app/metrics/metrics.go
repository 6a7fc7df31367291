package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "subname_registrar",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subname_registrar",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "subname_registrar",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	oraclePrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "subname_registrar",
			Subsystem: "oracle",
			Name:      "price_8dec",
			Help:      "Latest oracle price in 8-decimal fixed point.",
		},
	)

	oracleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subname_registrar",
			Subsystem: "oracle",
			Name:      "read_errors_total",
			Help:      "Total number of failed oracle reads.",
		},
		[]string{"reason"},
	)

	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "subname_registrar",
			Subsystem: "registrar",
			Name:      "batches_total",
			Help:      "Total number of settled registration batches.",
		},
		[]string{"licensed"},
	)

	registeredLabels = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "subname_registrar",
			Subsystem: "registrar",
			Name:      "labels_total",
			Help:      "Total number of subnames registered.",
		},
	)

	licensePurchases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "subname_registrar",
			Subsystem: "licenses",
			Name:      "purchases_total",
			Help:      "Total number of licenses sold.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		oraclePrice,
		oracleErrors,
		registrations,
		registeredLabels,
		licensePurchases,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// SetOraclePrice publishes the latest oracle reading.
func SetOraclePrice(price8 int64) {
	oraclePrice.Set(float64(price8))
}

// RecordOracleError counts a failed oracle read by reason.
func RecordOracleError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	oracleErrors.WithLabelValues(reason).Inc()
}

// RecordRegistration counts a settled batch and its labels.
func RecordRegistration(labels int, licensed bool) {
	registrations.WithLabelValues(strconv.FormatBool(licensed)).Inc()
	registeredLabels.Add(float64(labels))
}

// RecordLicensePurchase counts a sold license.
func RecordLicensePurchase() {
	licensePurchases.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses per-parent route segments so label cardinality
// stays bounded.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "parents" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/parents"
	}
	if len(parts) == 2 {
		return "/parents/:parent"
	}
	resource := parts[2]
	return "/parents/:parent/" + resource
}
