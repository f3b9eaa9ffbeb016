/*
Package types defines the data model shared by every layer of the engine:
entity identifiers, the six patch operation variants, property value
references, and the Patch envelope itself.

The wire representation (CBOR for storage, JSON for the sync protocol) is
part of the contract: operation type tags, field names, and the packed
property-target encoding are stable and may only grow.

Property targets pack both node and edge identities into one flat string so
a single map can hold node and edge properties: a node target is the node id
itself; an edge target is a reserved leading byte followed by the
NUL-separated (from, to, label) triple.
*/
package types
