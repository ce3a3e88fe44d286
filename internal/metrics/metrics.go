package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TriggersArmed is the size of the live schedule trigger table.
	TriggersArmed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "schedule_triggers_armed",
			Help: "Number of schedule triggers currently armed",
		},
	)

	// FiringsTotal counts scheduled pin actions by result (ok, error, skipped).
	FiringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_firings_total",
			Help: "Total number of scheduled pin actions by result",
		},
		[]string{"result"},
	)

	// PinWritesTotal counts pin writes by origin (device, gpio, schedule) and action (on, off).
	PinWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpio_pin_writes_total",
			Help: "Total number of GPIO pin writes",
		},
		[]string{"origin", "action"},
	)
)

var (
	// uuid-shaped and numeric segments are collapsed to keep label cardinality bounded
	idPathSegment = regexp.MustCompile(`/([0-9]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})(/|$)`)
	initOnce      sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, TriggersArmed, FiringsTotal, PinWritesTotal)
	})
}

// NormalizePath replaces id path segments with {id}.
// E.g. /device/3f1c.../on -> /device/{id}/on, /GPIO/18/status -> /GPIO/{id}/status.
func NormalizePath(path string) string {
	return idPathSegment.ReplaceAllString(path, "/{id}$2")
}

// RecordRequest records duration and count for an HTTP request.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// SetTriggersArmed sets the armed trigger gauge.
func SetTriggersArmed(n int) {
	TriggersArmed.Set(float64(n))
}

// IncFirings counts one scheduled firing with the given result.
func IncFirings(result string) {
	FiringsTotal.WithLabelValues(result).Inc()
}

// IncPinWrites counts one pin write.
func IncPinWrites(origin string, on bool) {
	action := "off"
	if on {
		action = "on"
	}
	PinWritesTotal.WithLabelValues(origin, action).Inc()
}
