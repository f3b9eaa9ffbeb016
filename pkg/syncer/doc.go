/*
Package syncer exchanges missing patch ranges between replicas.

# Protocol

Two JSON messages: a sync-request carrying the requester's frontier
(writer → tip sha) and a sync-response carrying the responder's frontier
plus the patches the requester was missing, per writer oldest first.
Because commit shas are deterministic over (message, parents, tree), both
sides agree on every sha and frontier comparison is exact.

ComputeDelta is the pure symmetric difference between two frontiers.
ProcessRequest is the server side: load the requested ranges, silently
skipping writers whose chains diverge. ApplyResponse is the pure client
fold; Driver is the impure client that persists received patches onto the
local chains and re-materializes.

# Retries

The driver wraps each attempt in a timeout and retries E_SYNC_REMOTE,
E_SYNC_TIMEOUT, and E_SYNC_NETWORK with exponential backoff; it never
retries E_SYNC_PROTOCOL or a cancelled context. Re-applying a response a
second time applies zero patches — every dot is already covered by the
observed frontier.

Authentication is the transport's concern; Signer implements the default
content-hash + HMAC-SHA256 request signing for transports that want it.
*/
package syncer
