package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Writer metrics
	PatchesCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warp_patches_committed_total",
			Help: "Total number of patches committed by local writer sessions",
		},
		[]string{"graph"},
	)

	CASConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warp_writer_cas_conflicts_total",
			Help: "Total number of writer sessions that lost a ref compare-and-swap",
		},
		[]string{"graph"},
	)

	// Materializer metrics
	MaterializeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warp_materialize_duration_seconds",
			Help:    "Time taken to materialize graph state in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PatchesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warp_patches_applied_total",
			Help: "Total number of patches folded into materialized state",
		},
		[]string{"graph"},
	)

	StateNodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warp_state_nodes",
			Help: "Visible nodes in the last materialized state",
		},
		[]string{"graph"},
	)

	StateEdges = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warp_state_edges",
			Help: "Visible edges in the last materialized state",
		},
		[]string{"graph"},
	)

	StateTombstones = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warp_state_tombstones",
			Help: "Tombstoned dots in the last materialized state",
		},
		[]string{"graph"},
	)

	// Checkpoint metrics
	CheckpointDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warp_checkpoint_duration_seconds",
			Help:    "Time taken to create a checkpoint in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CheckpointsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warp_checkpoints_created_total",
			Help: "Total number of checkpoints created",
		},
		[]string{"graph"},
	)

	// Sync metrics
	SyncRounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warp_sync_rounds_total",
			Help: "Total number of sync exchanges by outcome",
		},
		[]string{"status"},
	)

	SyncPatchesTransferred = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warp_sync_patches_transferred_total",
			Help: "Total number of patches received and applied through sync",
		},
	)

	SyncRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warp_sync_retries_total",
			Help: "Total number of sync attempts retried after transient failures",
		},
	)

	// GC metrics
	GCRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warp_gc_runs_total",
			Help: "Total number of tombstone compaction runs",
		},
		[]string{"graph"},
	)

	TombstonesCompacted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warp_gc_tombstones_compacted_total",
			Help: "Total number of tombstoned dots removed by compaction",
		},
	)

	// Bitmap index metrics
	IndexRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warp_index_rebuild_duration_seconds",
			Help:    "Time taken to rebuild the commit bitmap index in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexShardLoads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warp_index_shard_loads_total",
			Help: "Total number of bitmap shards loaded from the store",
		},
	)
)

// Register registers all metrics with Prometheus
func Register() {
	prometheus.MustRegister(
		PatchesCommitted,
		CASConflicts,
		MaterializeDuration,
		PatchesApplied,
		StateNodes,
		StateEdges,
		StateTombstones,
		CheckpointDuration,
		CheckpointsCreated,
		SyncRounds,
		SyncPatchesTransferred,
		SyncRetries,
		GCRuns,
		TombstonesCompacted,
		IndexRebuildDuration,
		IndexShardLoads,
	)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts the metrics HTTP server on the given address
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time in the given histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}
