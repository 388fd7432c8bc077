package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stream",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stream",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream",
		Name:      "active_sessions",
		Help:      "Number of currently active torrent sessions.",
	})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream",
		Name:      "download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second.",
	})

	UploadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream",
		Name:      "upload_speed_bytes",
		Help:      "Current aggregate upload speed in bytes per second.",
	})

	PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream",
		Name:      "peers_connected",
		Help:      "Total number of peers connected across all sessions.",
	})

	TranscodeActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stream",
		Name:      "transcode_active_jobs",
		Help:      "Number of currently running transcode subprocesses.",
	})

	TranscodeStartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stream",
		Name:      "transcode_starts_total",
		Help:      "Total number of transcode subprocesses started.",
	})

	TranscodeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stream",
		Name:      "transcode_failures_total",
		Help:      "Total number of transcode deliveries that failed.",
	})

	StreamBytesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stream",
		Name:      "bytes_sent_total",
		Help:      "Total bytes written to streaming responses.",
	})

	EngineStartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stream",
		Name:      "engine_starts_total",
		Help:      "Total engine start attempts by outcome.",
	}, []string{"outcome"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveSessions,
		DownloadSpeedBytes,
		UploadSpeedBytes,
		PeersConnected,
		TranscodeActiveJobs,
		TranscodeStartsTotal,
		TranscodeFailuresTotal,
		StreamBytesSentTotal,
		EngineStartsTotal,
	)
}
