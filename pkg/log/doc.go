/*
Package log provides structured logging for warp using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific child loggers and configurable log levels. All logs
include timestamps and support filtering by severity level; levels are parsed
leniently and fall back to info.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	matLog := log.WithComponent("materializer")
	matLog.Info().Int("patches", n).Msg("state rebuilt")

	wlog := log.WithWriter("writer-a").With().Str("graph", "main").Logger()
	wlog.Debug().Str("sha", sha).Msg("patch committed")

Structured fields (.Str, .Int, .Err) are preferred over string formatting so
logs stay queryable in aggregation tools.

# Integration Points

  - pkg/graph: materialization, checkpoint, and GC cycles
  - pkg/writer: session commits and CAS conflicts
  - pkg/syncer: exchange rounds and retry decisions
  - pkg/bitmap: index rebuilds and shard loads
*/
package log
