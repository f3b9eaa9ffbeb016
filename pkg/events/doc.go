/*
Package events provides an in-process broker for graph lifecycle events.

Watchers subscribe for patch commits, frontier changes, checkpoints, sync
rounds, and GC runs without polling the store. Delivery is best-effort: a
subscriber whose buffer is full misses events rather than blocking the
publisher, so consumers that need exact state re-check via
Graph.HasFrontierChanged.
*/
package events
