// Package ensemble is a client for a hierarchical coordination service:
// a replicated, ordered tree of small entries used for leader election,
// configuration, locks and membership in distributed systems.
//
// The package owns a live session with an ensemble of coordination
// servers, translates asynchronous requests into wire operations against
// a pluggable SessionTransport, routes replies back to their waiting
// completions, tracks session state, and delivers one-shot watch events.
package ensemble
