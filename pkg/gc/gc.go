package gc

import (
	"time"

	"github.com/git-stunts/warp/pkg/reducer"
)

// Policy decides when tombstone compaction is worth running.
type Policy struct {
	// MaxTombstoneRatio triggers compaction when tombstoned dots exceed
	// this share of all dots.
	MaxTombstoneRatio float64
	// MaxEntries, together with MinPatches, triggers compaction for large
	// states that have absorbed enough new patches since the last run.
	MaxEntries int
	MinPatches int
	// MaxInterval triggers compaction on wall time alone.
	MaxInterval time.Duration
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MaxTombstoneRatio: 0.3,
		MaxEntries:        50_000,
		MinPatches:        1000,
		MaxInterval:       24 * time.Hour,
	}
}

// Stats are the policy inputs observed by the graph handle.
type Stats struct {
	Tombstones   int
	TotalDots    int
	PatchesSince int
	LastRun      time.Time
	Now          time.Time
}

// Decision is the policy output: whether to run and why.
type Decision struct {
	ShouldRun bool
	Reasons   []string
}

// ShouldRun evaluates the policy against the observed stats.
func (p Policy) ShouldRun(s Stats) Decision {
	var d Decision
	if s.TotalDots > 0 {
		ratio := float64(s.Tombstones) / float64(s.TotalDots)
		if ratio > p.MaxTombstoneRatio {
			d.Reasons = append(d.Reasons, "tombstone-ratio")
		}
	}
	if s.TotalDots > p.MaxEntries && s.PatchesSince >= p.MinPatches {
		d.Reasons = append(d.Reasons, "entry-count")
	}
	now := s.Now
	if now.IsZero() {
		now = time.Now()
	}
	if !s.LastRun.IsZero() && p.MaxInterval > 0 && now.Sub(s.LastRun) >= p.MaxInterval {
		d.Reasons = append(d.Reasons, "interval")
	}
	d.ShouldRun = len(d.Reasons) > 0
	return d
}

// Result summarizes one compaction run.
type Result struct {
	NodeDotsRemoved int
	EdgeDotsRemoved int
}

// Removed returns the total number of dots dropped.
func (r Result) Removed() int {
	return r.NodeDotsRemoved + r.EdgeDotsRemoved
}

// Compact drops every safely-superseded tombstone from the state: a
// tombstoned dot covered by the observed frontier cannot be the target of
// any yet-unseen concurrent add, because all future patches from its writer
// carry higher sequence numbers. Property registers are left untouched.
func Compact(s *reducer.State) Result {
	vv := s.Frontier
	return Result{
		NodeDotsRemoved: s.Nodes.Compact(vv),
		EdgeDotsRemoved: s.Edges.Compact(vv),
	}
}
