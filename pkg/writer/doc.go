/*
Package writer implements the patch session: the only way mutations enter a
graph.

A session is opened against a writer's current chain tip and the current
materialized state, accumulates operations through a fluent interface, and
commits them as one atomic patch:

	res, err := session.
		AddNode("x").
		AddEdge("x", "y", "knows").
		SetProperty("x", "name", types.Inline("Xavier")).
		Commit(ctx)

Adds mint fresh dots from the writer's sequence counter; removes snapshot
the dots observed in the materialized state at call time, which is what
makes a concurrent unseen add win over the remove. Commit writes
patch blob → tree → commit and moves the writer ref with an atomic
compare-and-swap; if another session advanced the ref first, Commit fails
with WRITER_CAS_CONFLICT and the caller retries on fresh state.

The patch lamport is max(writer's last lamport, max of observed context)+1,
so the EventID order always respects causality.
*/
package writer
