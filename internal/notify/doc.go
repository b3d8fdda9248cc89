// Package notify maintains the toast queue and unread notification counter.
//
// A Queue is an ordinary value: construct one per consumer, Start it when the
// consumer becomes active and Stop it when it goes away. While started it
//   - listens for notification frames on the trading channel
//   - keeps at most MaxToasts toasts, newest first, each expiring after TTL
//   - counts unread notifications, reconciled against REST at Start and on
//     every fallback poll
package notify
