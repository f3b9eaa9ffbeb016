/*
Package metrics provides Prometheus metrics for warp.

Package-level collectors cover the write path (patches committed, CAS
conflicts), the read path (materialize duration, state sizes), checkpoints,
sync exchanges, GC runs, and bitmap index activity. Call Register() once at
startup and Serve(addr) to expose /metrics.

Timing pattern:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.MaterializeDuration)
*/
package metrics
