/*
Package object provides the persistence port for the state engine and its
BoltDB-backed default implementation.

The Store interface is the single seam between the engine and the
content-addressed object store: commits, blobs, trees, refs, and a small
string config space. Everything above this package depends on the contract,
not on BoltDB.

# Architecture

	┌──────────────────── OBJECT STORE ────────────────────┐
	│                                                       │
	│  ┌──────────────────────────────────────┐            │
	│  │              Store port               │            │
	│  │  commit / blob / tree / ref / config  │            │
	│  └────────────┬─────────────┬───────────┘            │
	│               │             │                         │
	│       ┌───────▼──────┐ ┌────▼───────┐                │
	│       │  BoltStore   │ │  MemStore  │                │
	│       │ <dir>/warp.db│ │  (tests)   │                │
	│       └──────────────┘ └────────────┘                │
	│                                                       │
	│  Buckets: commits, blobs, trees, refs, config         │
	└───────────────────────────────────────────────────────┘

# Content addressing

Object ids are lowercase-hex SHA-256 over a kind-prefixed payload. Commit
ids cover (message, parents, tree) only — not author or date — so two
replicas that persist the same patch chain independently arrive at the same
shas, which the sync protocol's frontier comparison depends on.

# Concurrency

BoltDB serializes writers; CompareAndSwapRef reads and updates the ref
inside one Update transaction, giving racing writer sessions an atomic
exactly-one-wins outcome. Reads run on MVCC snapshots and never block.

LogStream walks a first-parent chain newest-first and hands commits over an
unbuffered channel, so a slow consumer holds at most one decoded commit in
flight.
*/
package object
