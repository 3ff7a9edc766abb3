package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommentsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibe_comments_collected_total",
		Help: "The total number of comments fetched from platforms",
	}, []string{"platform"})

	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibe_analyses_total",
		Help: "Analysis jobs by terminal status",
	}, []string{"status"})

	AnalysisJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vibe_analysis_job_duration_seconds",
		Help:    "Duration of one analysis job from dequeue to terminal status",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"status"})

	AnalysisChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibe_analysis_chunks_total",
		Help: "Comment chunks sent to providers",
	}, []string{"provider", "status"})

	AnalysisChunkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vibe_analysis_chunk_duration_seconds",
		Help:    "Provider call duration per chunk",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})

	AnalysisEmptyChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibe_analysis_empty_chunks_total",
		Help: "Chunks whose response yielded no JSON objects",
	}, []string{"provider"})

	AnalysisResultsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibe_analysis_results_dropped_total",
		Help: "Extracted results that could not be applied to a comment",
	}, []string{"reason"})

	AnalysisFieldsCoerced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibe_analysis_fields_coerced_total",
		Help: "Annotation fields replaced with null because the value was out of range or of the wrong type",
	}, []string{"field"})

	CommentsAnnotated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vibe_comments_annotated_total",
		Help: "Comments marked processed by the persister",
	})

	LLMSessionRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibe_llm_session_refreshes_total",
		Help: "Provider session token refreshes",
	}, []string{"provider", "reason"})

	QueueJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibe_queue_jobs_total",
		Help: "Analysis queue operations",
	}, []string{"op"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibe_http_requests_total",
		Help: "REST API requests by route and status code",
	}, []string{"route", "code"})
)
