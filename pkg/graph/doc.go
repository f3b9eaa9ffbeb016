/*
Package graph ties the engine together: a Graph is a handle on one named
graph in an object store, owning the cached materialized state, the
last-seen frontier, the provenance index, and the checkpoint/GC policies.

# Architecture

	┌─────────────────────── GRAPH HANDLE ───────────────────────┐
	│                                                             │
	│  write path                      read path                  │
	│  ┌──────────────┐                ┌───────────────────┐     │
	│  │ NewSession   │                │ Materialize        │     │
	│  │  └ writer.*  │                │  ├ Frontier (refs) │     │
	│  │    CAS ref   │                │  ├ checkpoint base │     │
	│  └──────┬───────┘                │  ├ PatchRange walk │     │
	│         │                        │  └ reducer fold    │     │
	│         ▼                        └─────────┬─────────┘     │
	│  refs/warp/<g>/writers/<w>                 ▼                │
	│                                   cached *reducer.State     │
	│  maintenance                                                │
	│  ┌────────────────┐  ┌──────────┐  ┌──────────────────┐    │
	│  │ CreateCheckpoint│  │ RunGC    │  │ Watch / bookmarks │   │
	│  └────────────────┘  └──────────┘  └──────────────────┘    │
	└─────────────────────────────────────────────────────────────┘

# Caching model

Materialize compares the current frontier against the one the cached state
was built from; an unchanged frontier returns the cached state without
touching patch storage. On change, the base is the previous state (or the
latest checkpoint after a restart) and only trailing patches are replayed,
interleaved across writers in EventID order. The cached state is replaced
as a whole object, never mutated, so states handed to earlier callers stay
consistent snapshots.

# Shared state and conflicts

Writer refs, the checkpoint head, and bookmarks live in the store and are
shared between processes; writers serialize through ref compare-and-swap.
A session whose writer ref moved fails with WRITER_CAS_CONFLICT; a chain
walk that cannot reach its expected base fails with E_SYNC_DIVERGENCE.
*/
package graph
