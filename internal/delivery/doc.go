// Package delivery implements the time-locked delivery engine.
//
// A Service scans the store for due messages on a fixed interval and
// dispatches each id to a bounded worker pool. A Worker performs the
// single-message attempt: fetch, idempotence guard, notify, then commit the
// delivered transition with a conditional update. The conditional update in
// the store (not in-process locking) is what keeps delivery at-most-once,
// so multiple scheduler processes can share one store.
//
// Failed attempts are not retried in place; the message stays due and is
// re-discovered on the next tick. That bounds worst-case staleness to one
// polling interval plus transport latency.
package delivery
