/*
Package wormhole compresses a single-writer patch range into a replayable
payload and authenticates state transitions over it.

A wormhole edge carries the decoded patches of an inclusive chain range
[from..to]; replaying it reproduces the range's state delta without
touching the repository. Consecutive wormholes from the same writer
compose into one.

A Boundary Transition Record binds (input hash, output hash, serialized
input state, payload, timestamp) under an HMAC-SHA256 tag, so an untrusted
carrier cannot alter any component without detection; verification can
optionally re-replay the payload to confirm the claimed output hash.
*/
package wormhole
