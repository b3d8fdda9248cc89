// Package connection implements the streaming Connection and its Registry.
//
// A Connection:
//   - Binds to exactly one channel path for its lifetime
//   - Authenticates with a bearer token passed as the "token" query parameter
//   - Demultiplexes inbound frames by type through an emitter
//   - Reconnects with capped exponential backoff, up to a fixed attempt budget
//
// The Registry shares one Connection per channel path between subscribers and
// disconnects it when the last subscriber releases its Channel.
package connection
