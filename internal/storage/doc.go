// Package storage persists time-locked messages.
//
// It currently supports:
//   - A SQLite backend (durable, the default)
//   - An in-memory backend (tests and dry runs)
//
// MarkDelivered is a conditional update (delivered must still be false); this
// is the only coordination mechanism between concurrent delivery attempts, so
// multiple scheduler processes can safely share one store.
package storage
