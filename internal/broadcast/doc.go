// Package broadcast tracks live WebSocket connections and fans domain events
// out to them.
//
// Registry maps an identity to its set of sessions and is safe for concurrent
// use. Hub encodes each event once and queues it to every registered session.
// Each session owns a writer goroutine fed by a bounded queue, so a slow or
// dead peer never blocks a publisher: a full queue or a failed write evicts
// that session and delivery to the others carries on.
package broadcast
