package handler

import (
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/adpulse/adpulse/internal/metrics"
)

// MetricsHandler serves recorder output in Prometheus text format. A
// recorder with its own Handler (the Prometheus one) serves itself; an
// in-memory recorder is rendered from its snapshot.
func MetricsHandler(recorder metrics.Recorder) http.Handler {
	if h, ok := recorder.(interface{ Handler() http.Handler }); ok {
		return h.Handler()
	}
	snap, ok := recorder.(metrics.Snapshotter)
	if !ok {
		return http.HandlerFunc(NotFound)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeSnapshot(w, snap.Snapshot())
	})
}

func writeSnapshot(w io.Writer, s metrics.Snapshot) {
	writeCounts(w, "adpulse_graph_requests_total", "endpoint_outcome", s.GraphRequests)
	writeCounts(w, "adpulse_reports_generated_total", "source_outcome", s.ReportsGenerated)
	fmt.Fprintf(w, "adpulse_report_cache_hits_total %d\n", s.ReportCacheHits)
	fmt.Fprintf(w, "adpulse_report_cache_misses_total %d\n", s.ReportCacheMisses)
	fmt.Fprintf(w, "adpulse_reports_degraded_total %d\n", s.ReportsDegraded)
	fmt.Fprintf(w, "adpulse_unclassified_actions_total %d\n", s.UnclassifiedActions)
	fmt.Fprintf(w, "adpulse_scheduler_ticks_total %d\n", s.SchedulerTicks)
	writeCounts(w, "adpulse_scheduler_jobs_total", "status", s.SchedulerJobs)
	writeCounts(w, "adpulse_webhook_deliveries_total", "outcome", s.WebhookDeliveries)
}

// writeCounts emits one sample per label value in sorted order.
func writeCounts(w io.Writer, name, label string, counts map[string]uint64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{%s=%q} %d\n", name, label, k, counts[k])
	}
}
