/*
Package traverse implements graph algorithms over two surfaces: the commit
DAG (through the bitmap index's parent/child lookups) and the logical data
graph (over one materialized state snapshot).

Commit-DAG algorithms: BFS, DFS, ancestors/descendants, reachability, path
finding (BFS and bidirectional BFS), common ancestors, topological sort
(Kahn, with cycle detection), and weighted shortest paths — Dijkstra, A*
with epsilon tie-breaking, and bidirectional A* with μ-pruning and
meeting-point detection.

BFS, DFS, FindPath, the helpers built on BFS, and the logical-graph walks
are bounded by MaxNodes (default 100,000) and MaxDepth (default 1,000).
ShortestPath, Dijkstra, AStar and BidirectionalAStar are bounded by
MaxNodes only; TopologicalSort applies neither bound to its given set.
Every traversal polls its context every 1,000 expansions and surfaces
cancellation as OPERATION_ABORTED tagged with the operation name. Routine
not-found outcomes return PathResult{Found: false, Length: -1} rather than
an error; CYCLE_DETECTED is reserved for topological sort with
ThrowOnCycle.

A* subtracts ε·g from each priority so that among equal f-values the entry
with more committed progress is explored first; given an admissible
heuristic its cost equals Dijkstra's.
*/
package traverse
