package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	runsStartedTotal   atomic.Uint64
	runsSucceededTotal atomic.Uint64
	runsFailedTotal    atomic.Uint64
	runsSkippedTotal   atomic.Uint64
	runsCancelledTotal atomic.Uint64

	providerDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncRunStarted counts a new pipeline run.
func IncRunStarted() {
	runsStartedTotal.Add(1)
}

// IncRunSucceeded counts a run that reached the succeeded state.
func IncRunSucceeded() {
	runsSucceededTotal.Add(1)
}

// IncRunFailed counts a transition into the failed state.
func IncRunFailed() {
	runsFailedTotal.Add(1)
}

// IncRunSkipped counts a run finished without analysis.
func IncRunSkipped() {
	runsSkippedTotal.Add(1)
}

// IncRunCancelled counts a cancelled run.
func IncRunCancelled() {
	runsCancelledTotal.Add(1)
}

// ObserveProviderDurationMs records a provider call duration in milliseconds.
func ObserveProviderDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	providerDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_runs_started_total", "Total pipeline runs started", runsStartedTotal.Load())
	writeCounter(&buf, "analysis_runs_succeeded_total", "Total pipeline runs succeeded", runsSucceededTotal.Load())
	writeCounter(&buf, "analysis_runs_failed_total", "Total pipeline failures", runsFailedTotal.Load())
	writeCounter(&buf, "analysis_runs_skipped_total", "Total pipeline runs finished without analysis", runsSkippedTotal.Load())
	writeCounter(&buf, "analysis_runs_cancelled_total", "Total pipeline runs cancelled", runsCancelledTotal.Load())
	writeHistogram(&buf, "analysis_provider_duration_ms", "Provider call duration in milliseconds", providerDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
