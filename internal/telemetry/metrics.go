package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	TokenRenewals         = prometheus.NewCounter(prometheus.CounterOpts{Name: "appeears_token_renewals_total", Help: "Successful AppEEARS logins"})
	JobsSubmitted         = prometheus.NewCounter(prometheus.CounterOpts{Name: "appeears_jobs_submitted_total", Help: "Jobs accepted by AppEEARS"})
	JobsCancelled         = prometheus.NewCounter(prometheus.CounterOpts{Name: "appeears_jobs_cancelled_total", Help: "Jobs cancelled through the API"})
	BundleFilesDownloaded = prometheus.NewCounter(prometheus.CounterOpts{Name: "bundle_files_downloaded_total", Help: "Bundle files written to disk"})
	BundleFileFailures    = prometheus.NewCounter(prometheus.CounterOpts{Name: "bundle_file_failures_total", Help: "Bundle files that failed to download"})
	BundleBytes           = prometheus.NewCounter(prometheus.CounterOpts{Name: "bundle_bytes_total", Help: "Bytes of bundle content written to disk"})
	MirrorUploads         = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bundle_mirror_uploads_total", Help: "Bundle files copied to object storage"}, []string{"status"})
	ToolCalls             = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "tool_calls_total", Help: "Tool invocations by outcome"}, []string{"tool", "status"})
	RateLimitRejects      = prometheus.NewCounter(prometheus.CounterOpts{Name: "tool_rate_limit_rejects_total", Help: "Requests rejected by rate limiter"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			TokenRenewals,
			JobsSubmitted,
			JobsCancelled,
			BundleFilesDownloaded,
			BundleFileFailures,
			BundleBytes,
			MirrorUploads,
			ToolCalls,
			RateLimitRejects,
		)
	})
	return promhttp.Handler()
}
