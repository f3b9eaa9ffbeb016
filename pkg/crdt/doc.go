/*
Package crdt implements the conflict-free replicated primitives the state
engine is built from: dots, version vectors, observed-remove sets,
last-writer-wins registers, and the EventID total order.

# Core Components

Dot:
  - (writerId, seq) pair naming exactly one write event
  - canonical string form "writer:seq"

VersionVector:
  - writerId → highest contiguous seq observed
  - partial order (Leq), pointwise-max merge, dot containment

ORSet:
  - entries: element → set of dots introduced by adds
  - tombstones: dots removed after being observed
  - an element is alive while it has at least one non-tombstoned dot, which
    is what makes a concurrent add win over a remove that never saw it
  - Compact(vv) drops tombstoned dots that no unseen concurrent add can
    still reference

Register:
  - value + EventID; higher EventID wins on merge

EventID:
  - (lamport, writerId, patchSha, opIndex) compared lexicographically
  - total, deterministic order for any fixed patch set; used for LWW
    arbitration and for interleaving patches across writers

All merge operations here are commutative, associative, and idempotent, so
any two replicas that have absorbed the same patches converge on identical
state regardless of delivery order.
*/
package crdt
