// Package pricestream keeps a live price feed for the instrument a consumer
// is currently viewing.
//
// Each Adapter owns its own transport on market/{code}. Switching instruments
// while connected sends a subscribe control frame over the open transport
// rather than reconnecting. While an instrument is subscribed the adapter
// reconnects forever at a fixed delay; Unsubscribe stops it.
//
// Consumers see three things: the latest tick (cleared on every switch), a
// liveness flag, and the last price_error message. Transport failures only
// flip liveness.
package pricestream
