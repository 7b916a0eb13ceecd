// Package metrics holds the proxy's Prometheus collectors.
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
	// Registry holds the proxy's collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "concourse_proxy",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight inbound requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concourse_proxy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concourse_proxy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of inbound requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concourse_proxy",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of GET requests issued to backends.",
		},
		[]string{"outcome"},
	)

	upstreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "concourse_proxy",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of backend GET requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	tokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concourse_proxy",
			Subsystem: "tokens",
			Name:      "refreshes_total",
			Help:      "Session token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	fanOutWidth = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "concourse_proxy",
			Subsystem: "proxy",
			Name:      "fanout_requests",
			Help:      "Number of backend requests issued per fan-out.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		},
	)
)

// Token refresh outcomes.
const (
	RefreshObtained = "obtained"
	RefreshNoToken  = "no_token"
	RefreshFailed   = "failed"
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		upstreamRequests,
		upstreamDuration,
		tokenRefreshes,
		fanOutWidth,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with inbound request metrics.
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

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordUpstream records one backend GET. err is the transport error, if any.
func RecordUpstream(err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamRequests.WithLabelValues(outcome).Inc()
	upstreamDuration.Observe(duration.Seconds())
}

// RecordTokenRefresh records a refresh attempt outcome.
func RecordTokenRefresh(outcome string) {
	tokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordFanOut records the number of backend calls in one fan-out.
func RecordFanOut(calls int) {
	fanOutWidth.Observe(float64(calls))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Label values for paths the proxy does not recognise.
const otherPath = "other"

var (
	rootPaths = map[string]bool{"healthz": true, "metrics": true, "token": true, "basic": true}

	apiVersions = map[string]bool{"v1": true}

	apiCollections = map[string]bool{
		"info": true, "user": true, "users": true, "teams": true, "pipelines": true,
		"jobs": true, "resources": true, "resource-types": true, "builds": true,
		"workers": true, "containers": true, "volumes": true, "cli": true, "wall": true,
	}

	teamCollections = map[string]bool{
		"auth": true, "pipelines": true, "builds": true, "containers": true,
		"volumes": true, "artifacts": true,
	}
)

// canonicalPath maps a request path onto a fixed label set. Team names,
// unknown segments and anything past the resource collection are dropped.
func canonicalPath(raw string) string {
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if parts[0] == "" {
		return "/"
	}
	if parts[0] != "api" {
		if len(parts) == 1 && rootPaths[parts[0]] {
			return "/" + parts[0]
		}
		return otherPath
	}
	if len(parts) < 3 || !apiVersions[parts[1]] {
		return otherPath
	}

	prefix := "/api/" + parts[1] + "/"
	collection := parts[2]
	if !apiCollections[collection] {
		return prefix + otherPath
	}
	if collection != "teams" || len(parts) < 4 {
		return prefix + collection
	}
	if len(parts) < 5 {
		return prefix + "teams/:team"
	}
	if teamCollections[parts[4]] {
		return prefix + "teams/:team/" + parts[4]
	}
	return prefix + "teams/:team/" + otherPath
}
