/*
Package codec serializes patches and the commit-message envelopes that wrap
them.

# Patch bytes

Patches encode to canonical CBOR (sorted map keys, shortest integer forms)
via fxamacker/cbor's canonical mode, so identical patches yield identical
bytes and a patch blob's object id is a stable content address. Decoding is
strict: malformed bytes and structural rule violations fail with
E_VALIDATION; a patch or op requiring a schema newer than the reader's
maximum fails with E_SCHEMA_UNSUPPORTED.

# Commit envelopes

A warp commit message is a short title plus ordered trailers:

	warp:patch

	eg-graph: main
	eg-kind: patch
	eg-lamport: 7
	eg-patch-oid: 4f2c...
	eg-schema: 2
	eg-writer: alice

Encoders emit trailers in alphabetical order for auditability; the parser
accepts any order, tolerates unknown trailers, and rejects duplicates and
missing required keys. Audit envelopes bind an ops digest (SHA-256 over the
canonical JSON of the op list) to a data commit.
*/
package codec
