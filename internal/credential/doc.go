// Package credential provides the key/value stores the streaming client reads
// its access token from.
//
// A missing key is not an error: Get reports ok=false and callers skip
// connecting. Three backends are provided:
//   - MemoryStore: process-local map (tests, CLI flag)
//   - FileStore: YAML key/value file re-read on every Get
//   - PostgresStore: the local_storage table of the dashboard database
package credential
