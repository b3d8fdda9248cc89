// Package subscription binds event handlers to a shared channel for the
// lifetime of a consumer.
//
// A Hook declares which event types it cares about, then Mount acquires the
// channel and registers them and Unmount removes every registration and
// releases the channel. Mount is a no-op when no access token is stored, so a
// logged-out consumer never opens a connection.
package subscription
