// Package poller runs REST fallback polls on a fixed interval.
//
// The push feed is best effort, so anything the UI must eventually get right
// (the unread notification count) is also polled:
//   - Every task runs once per interval, concurrently with bounded parallelism
//   - Each poll gets its own timeout
//   - Failures are logged and retried on the next tick
package poller
