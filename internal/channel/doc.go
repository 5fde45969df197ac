// Package channel keeps the dashboard's live update socket alive.
//
// A Client moves through idle, connecting, open, closed and errored states.
// While open it sends a ping every heartbeat interval and hands decoded
// messages to a Handler in the order they arrived. A lost connection is
// retried with exponentially growing delays; once the retry budget is spent
// the client settles in polling fallback and invokes its Poller on a fixed
// interval until Disconnect.
package channel
