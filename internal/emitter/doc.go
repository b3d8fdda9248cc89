// Package emitter implements the typed-frame observer shared by the
// streaming components.
//
// The emitter:
//   - Decodes inbound JSON frames and extracts the "type" tag
//   - Keeps a registry of handlers per event type, plus the "*" wildcard
//   - Hands out one token per registration so each can be removed alone
//   - Dispatches exact-type handlers first, then wildcard handlers
package emitter
