package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UploadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powerpulse_upload_duration_seconds",
			Help:    "Upload processing duration in seconds, from receipt to terminal status",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	UploadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerpulse_upload_total",
			Help: "Total number of uploads processed",
		},
		[]string{"status"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powerpulse_job_duration_seconds",
			Help:    "Per-job (batch) processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"status"},
	)

	JobTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerpulse_job_total",
			Help: "Total number of jobs completed",
		},
		[]string{"status"},
	)

	AICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerpulse_ai_calls_total",
			Help: "Total LLM calls made",
		},
		[]string{"provider", "status"},
	)

	AITokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerpulse_ai_tokens_used_total",
			Help: "Total LLM tokens used",
		},
		[]string{"provider", "type"},
	)

	AICallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powerpulse_ai_call_duration_seconds",
			Help:    "LLM call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	CSIScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "powerpulse_csi_score",
			Help:    "Distribution of computed CSI scores per DailyAnalysis",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	ConversationsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "powerpulse_conversations_ingested_total",
			Help: "Total conversations ingested across all uploads",
		},
	)

	MessagesFiltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerpulse_messages_filtered_total",
			Help: "Total messages filtered before persistence",
		},
		[]string{"reason"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerpulse_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerpulse_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ActiveUploads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "powerpulse_active_uploads",
			Help: "Number of uploads currently being processed",
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "powerpulse_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)
)

func Init() {
	prometheus.MustRegister(UploadDuration)
	prometheus.MustRegister(UploadTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(JobTotal)
	prometheus.MustRegister(AICallsTotal)
	prometheus.MustRegister(AITokensUsed)
	prometheus.MustRegister(AICallDuration)
	prometheus.MustRegister(CSIScore)
	prometheus.MustRegister(ConversationsIngested)
	prometheus.MustRegister(MessagesFiltered)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ActiveUploads)
	prometheus.MustRegister(CircuitBreakerState)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
