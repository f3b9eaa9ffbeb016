package syncer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/git-stunts/warp/pkg/errdefs"
	"github.com/git-stunts/warp/pkg/events"
	"github.com/git-stunts/warp/pkg/graph"
	"github.com/git-stunts/warp/pkg/log"
	"github.com/git-stunts/warp/pkg/metrics"
)

// Transport carries one sync exchange to a remote replica. The HTTP
// transport (and its authentication) lives outside the core; Loopback
// below serves in-process replicas and tests.
type Transport interface {
	Exchange(ctx context.Context, req *SyncRequest) (*SyncResponse, error)
}

// DriverOptions tune the retry loop.
type DriverOptions struct {
	// Timeout bounds each attempt. Default 30s.
	Timeout time.Duration
	// MaxRetries caps retries after the first attempt. Default 5.
	MaxRetries uint64
	// InitialBackoff seeds the exponential backoff. Default 500ms.
	InitialBackoff time.Duration
	// Broker receives sync.applied events. Optional.
	Broker *events.Broker
}

func (o *DriverOptions) withDefaults() DriverOptions {
	out := DriverOptions{}
	if o != nil {
		out = *o
	}
	if out.Timeout == 0 {
		out.Timeout = 30 * time.Second
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = 5
	}
	if out.InitialBackoff == 0 {
		out.InitialBackoff = 500 * time.Millisecond
	}
	return out
}

// Driver runs sync exchanges for one graph: frontier out, missing patches
// back, persisted onto the local writer chains. Transient failures
// (E_SYNC_REMOTE, E_SYNC_TIMEOUT, E_SYNC_NETWORK) are retried with
// exponential backoff; protocol errors and cancellation are not.
type Driver struct {
	graph     *graph.Graph
	transport Transport
	opts      DriverOptions
	logger    zerolog.Logger
}

// NewDriver creates a sync driver.
func NewDriver(g *graph.Graph, transport Transport, opts *DriverOptions) *Driver {
	return &Driver{
		graph:     g,
		transport: transport,
		opts:      opts.withDefaults(),
		logger:    log.WithComponent("sync-driver").With().Str("graph", g.Name()).Logger(),
	}
}

// SyncOnce performs one exchange and returns how many patches were
// applied. Applying zero patches is a successful, converged outcome.
func (d *Driver) SyncOnce(ctx context.Context) (int, error) {
	frontier, err := d.graph.Frontier(ctx)
	if err != nil {
		return 0, err
	}
	req := NewSyncRequest(frontier)

	var resp *SyncResponse
	attempt := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
		r, err := d.transport.Exchange(attemptCtx, req)
		if err != nil {
			return d.classify(ctx, attemptCtx, err)
		}
		resp = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.opts.InitialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, d.opts.MaxRetries), ctx)
	notify := func(err error, next time.Duration) {
		metrics.SyncRetries.Inc()
		d.logger.Warn().Err(err).Dur("backoff", next).Msg("sync attempt failed, retrying")
	}
	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		metrics.SyncRounds.WithLabelValues("error").Inc()
		return 0, err
	}

	entries := make([]graph.ImportEntry, 0, len(resp.Patches))
	for _, e := range resp.Patches {
		entries = append(entries, graph.ImportEntry{WriterID: e.WriterID, SHA: e.SHA, Patch: e.Patch})
	}
	applied, err := d.graph.Import(ctx, entries)
	if err != nil {
		metrics.SyncRounds.WithLabelValues("error").Inc()
		return applied, err
	}
	if _, err := d.graph.Materialize(ctx); err != nil {
		return applied, err
	}

	metrics.SyncRounds.WithLabelValues("ok").Inc()
	metrics.SyncPatchesTransferred.Add(float64(applied))
	if d.opts.Broker != nil {
		d.opts.Broker.Publish(&events.Event{
			Type:     events.EventSyncApplied,
			Graph:    d.graph.Name(),
			Metadata: map[string]string{"applied": strconv.Itoa(applied)},
		})
	}
	d.logger.Debug().Int("applied", applied).Msg("sync exchange complete")
	return applied, nil
}

// classify maps a transport failure onto the retry taxonomy. Retryable
// errors return as-is; terminal ones are wrapped in backoff.Permanent.
func (d *Driver) classify(ctx, attemptCtx context.Context, err error) error {
	// cancellation of the overall operation is terminal
	if ctx.Err() != nil {
		return backoff.Permanent(errdefs.Aborted("sync", ctx.Err()))
	}
	// the per-attempt deadline expiring is a transient timeout
	if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() != nil {
		return errdefs.Wrap(err, errdefs.CodeSyncTimeout, "sync attempt timed out")
	}
	switch errdefs.Code(err) {
	case errdefs.CodeSyncRemote, errdefs.CodeSyncTimeout, errdefs.CodeSyncNetwork:
		return err
	case errdefs.CodeSyncProtocol, errdefs.CodeOperationAborted:
		return backoff.Permanent(err)
	case "":
		// uncoded transport failure: treat as a network error and retry
		return errdefs.Wrap(err, errdefs.CodeSyncNetwork, "sync transport failed")
	default:
		return backoff.Permanent(err)
	}
}

// Loopback is a Transport that answers from another in-process graph
// handle. Used by tests and by same-process replica pairs.
type Loopback struct {
	Remote *graph.Graph
}

// Exchange implements Transport.
func (l Loopback) Exchange(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	return ProcessRequest(ctx, l.Remote, req)
}
