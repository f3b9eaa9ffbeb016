package graph

import (
	"context"
	"time"

	"github.com/git-stunts/warp/pkg/events"
)

// Watch polls the frontier at the given interval and publishes a
// frontier.changed event whenever a writer tip moves. It blocks until ctx
// is cancelled. Watching requires a broker on the handle.
func (g *Graph) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := g.HasFrontierChanged(ctx)
			if err != nil {
				g.logger.Error().Err(err).Msg("frontier check failed")
				continue
			}
			if changed {
				g.publish(events.EventFrontierChanged, nil)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
