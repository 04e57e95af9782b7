// Package zrm is a lightweight robotics-style messaging middleware built
// on a generic publish/subscribe transport.
//
// A `Node` is the unit of composition: it owns publishers, subscribers,
// service servers and service clients, and exposes a `Graph` view of
// every entity announced across the distributed system.
//
// ## How it works
//
// A `Context` wraps one transport session (the in-process bus by default,
// gossipsub via the transport package for real deployments). Every node
// on a context periodically broadcasts a snapshot of its entities on a
// well-known discovery topic; replicas fold those snapshots in and expire
// nodes whose liveness deadline lapses, so independently started
// processes find each other's topics and services without any central
// coordination.
//
// Messages are plain structs registered under canonical identifiers of
// the form `zrm/<msgs|srvs>/<module>/<TypeName>`. Every wire message is a
// self-describing envelope (identifier + payload), and receivers reject
// envelopes whose identifier does not match their declared type, so a
// topic can never silently deliver bytes of the wrong schema.
//
// Services synthesize request/response semantics on top of the broadcast
// transport: calls are correlated by per-call ids, servers run one worker
// per request, and callers block only their own goroutine.
//
// ## Design principles
//
// The transport is assumed to be asynchronous, unordered and best-effort;
// nothing above it pretends otherwise. Discovery is eventually
// consistent, delivery may lose messages under load, and APIs surface
// that honestly: graph reads are point-in-time, publishing is
// fire-and-forget, and only service calls carry errors back to a caller.
package zrm
