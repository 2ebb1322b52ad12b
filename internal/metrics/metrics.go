// Package metrics registers the Prometheus collectors used by the server.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// StoreLatency records Redis/SQL operation latency by operation name.
	StoreLatency *prometheus.HistogramVec

	// PublishFailuresTotal counts real-time events that could not be published.
	PublishFailuresTotal *prometheus.CounterVec

	// ActiveSubscriptions tracks open real-time stream subscriptions.
	ActiveSubscriptions prometheus.Gauge
)

var validLabelKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseLabels parses a comma-separated list of key=value pairs into constant
// labels. Values support $VAR expansion. Returns nil for an empty string.
func ParseLabels(s string) (prometheus.Labels, error) {
	s = os.Expand(s, os.Getenv)
	if s == "" {
		return nil, nil
	}
	labels := prometheus.Labels{}
	for _, pair := range strings.Split(s, ",") {
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			return nil, fmt.Errorf("invalid label %q: expected key=value", pair)
		}
		k, v := pair[:idx], pair[idx+1:]
		if !validLabelKey.MatchString(k) {
			return nil, fmt.Errorf("invalid label key %q: must match [a-zA-Z_][a-zA-Z0-9_]*", k)
		}
		labels[k] = v
	}
	return labels, nil
}

var initOnce sync.Once

// Init registers all collectors with the given constant labels. Only the
// first call registers; later calls are no-ops.
func Init(constLabels prometheus.Labels) {
	initOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(constLabels, prometheus.DefaultRegisterer)
		f := promauto.With(reg)

		httpRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
			Name: "pidgeon_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "status"})

		httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pidgeon_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"})

		StoreLatency = f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pidgeon_store_latency_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"})

		PublishFailuresTotal = f.NewCounterVec(prometheus.CounterOpts{
			Name: "pidgeon_publish_failures_total",
			Help: "Real-time events that failed to publish",
		}, []string{"event"})

		ActiveSubscriptions = f.NewGauge(prometheus.GaugeOpts{
			Name: "pidgeon_active_subscriptions",
			Help: "Open real-time stream subscriptions",
		})
	})
}

// ObserveStore records the latency of a store operation started at start.
// It is safe to call before Init.
func ObserveStore(operation string, start time.Time) {
	if StoreLatency == nil {
		return
	}
	StoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// PublishFailed increments the publish failure counter for event.
func PublishFailed(event string) {
	if PublishFailuresTotal == nil {
		return
	}
	PublishFailuresTotal.WithLabelValues(event).Inc()
}

// SubscriptionOpened adjusts the open subscription gauge by delta.
func SubscriptionOpened(delta int) {
	if ActiveSubscriptions == nil {
		return
	}
	ActiveSubscriptions.Add(float64(delta))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// Middleware records request count and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if httpRequestsTotal == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
