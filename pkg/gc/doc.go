/*
Package gc decides when to compact safely-superseded tombstones and
executes the compaction.

A tombstoned dot may be dropped once the observed frontier covers its
sequence number: every future patch from that writer carries a higher seq,
so no yet-unseen concurrent add can reference the dot, and removing it
cannot change any element's visibility. Property registers are not swept;
their space cost is traded for simpler correctness.
*/
package gc
