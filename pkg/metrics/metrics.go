package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "video_pipeline"

// Outcome label values
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeNoop     = "noop"
)

var (
	// UploadsInitiated initiate calls by outcome (ok / rejected / error)
	UploadsInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registrar",
		Name:      "initiated_total",
		Help:      "Upload intents registered, by outcome.",
	}, []string{"outcome"})

	// UploadsCompleted complete calls by outcome
	UploadsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "receiver",
		Name:      "completed_total",
		Help:      "Upload completion notifications, by outcome.",
	}, []string{"outcome"})

	// JobsClaimed jobs handed to a worker
	JobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "jobs_claimed_total",
		Help:      "Jobs claimed by transcode workers.",
	})

	// JobsFinished terminal transitions reported by workers (done / failed)
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "jobs_finished_total",
		Help:      "Jobs finalized by workers, by final status.",
	}, []string{"status"})

	// ReaperItems rows handled per sweep kind (stale / reclaim / purge) and outcome
	ReaperItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reaper",
		Name:      "items_total",
		Help:      "Rows handled by maintenance sweeps.",
	}, []string{"sweep", "outcome"})

	// WorkerJobs jobs processed by this worker, by outcome
	WorkerJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "jobs_total",
		Help:      "Jobs processed by the transcode worker, by outcome.",
	}, []string{"outcome"})

	// WorkerStageSeconds time spent per pipeline stage
	WorkerStageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "stage_seconds",
		Help:      "Duration of worker stages (download, transcode, probe, upload).",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	// WorkerBytes bytes downloaded / uploaded by the worker
	WorkerBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "bytes_total",
		Help:      "Bytes moved by the worker, by direction.",
	}, []string{"direction"})
)
