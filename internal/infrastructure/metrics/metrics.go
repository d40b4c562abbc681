// Package metrics exposes Prometheus collectors for carrier calls and sync outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/infrastructure/external/carriers"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// CarrierRequests counts outbound carrier calls by carrier, method, route and status
	CarrierRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "carrier_requests_total", Help: "Outbound carrier API requests."},
		[]string{"carrier", "method", "route", "status"},
	)
	// CarrierLatency records carrier call durations in seconds
	CarrierLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "carrier_request_duration_seconds", Help: "Carrier API request duration in seconds.", Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}},
		[]string{"carrier", "method", "route"},
	)

	// SyncOutcomes counts orchestrator operations by carrier, operation and result code
	SyncOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "carrier_sync_outcomes_total", Help: "Carrier service operations by outcome."},
		[]string{"carrier", "operation", "result"},
	)
	// IntelRecords counts intel records created by priority
	IntelRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "carrier_intel_records_total", Help: "Intel records created on status changes."},
		[]string{"carrier", "priority"},
	)
)

var regOnce sync.Once

// RegisterDefault registers collectors to Registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(CarrierRequests)
		Registry.MustRegister(CarrierLatency)
		Registry.MustRegister(SyncOutcomes)
		Registry.MustRegister(IntelRecords)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Sink feeds carrier request logs into CarrierRequests and CarrierLatency.
type Sink struct{}

// Record implements carriers.RequestSink
func (Sink) Record(entry carriers.RequestLog) {
	route := Route(entry.Path)
	status := "error"
	if entry.StatusCode != 0 {
		status = strconv.Itoa(entry.StatusCode)
	}
	CarrierRequests.WithLabelValues(entry.Carrier, entry.Method, route, status).Inc()
	CarrierLatency.WithLabelValues(entry.Carrier, entry.Method, route).Observe(entry.Duration.Seconds())
}

// Recorder implements port.SyncRecorder on SyncOutcomes and IntelRecords.
type Recorder struct{}

// RecordSync counts one operation, labelled "ok" or with the failure code
func (Recorder) RecordSync(carrierCode, operation string, err error) {
	result := "ok"
	if err != nil {
		result = carrier.CodeOf(err)
		if result == "" {
			result = "error"
		}
	}
	SyncOutcomes.WithLabelValues(carrierCode, operation, result).Inc()
}

// RecordIntel counts one intel record
func (Recorder) RecordIntel(carrierCode, priority string) {
	IntelRecords.WithLabelValues(carrierCode, priority).Inc()
}

// Route collapses identifier segments so claim ids do not become label values:
// "/claims/HL-123/documents?x=1" becomes "/claims/:id/documents".
func Route(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			path = rest[j:]
		} else {
			path = "/"
		}
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if looksLikeID(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeID(seg string) bool {
	if seg == "" {
		return false
	}
	if len(seg) > 24 {
		return true
	}
	for _, r := range seg {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

var (
	_ carriers.RequestSink = Sink{}
	_ port.SyncRecorder    = Recorder{}
)
