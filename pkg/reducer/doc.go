/*
Package reducer folds patches into materialized graph state and merges
independently materialized states.

# Semantics

Node and edge liveness are observed-remove sets: adds tag a fresh dot,
removes tombstone only observed dots, so an add concurrent with a remove
survives it. Properties are last-writer-wins registers arbitrated by the
EventID total order (lamport, writer, patchSha, opIndex). The state's
frontier records every write event ever absorbed.

Join is commutative, associative, and idempotent; Reduce sorts its input
into EventID order before folding, so any permutation of the same patch set
produces byte-identical serialized state (see Hash).

# Ordering requirement

ApplyPatch skips an add whose dot the frontier already covers — that is
what makes re-applying an absorbed patch a no-op even after its dots were
compacted away. The skip is only correct when patches arrive in an order
consistent with causality: a patch's context must never be merged before
the patches it observed. Reduce guarantees this by EventID-sorting; every
multi-writer apply path (materializer, sync client) goes through the same
sort.
*/
package reducer
