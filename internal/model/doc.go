// Package model defines the event payloads pushed by the trading backend.
//
// Every frame on the wire is a JSON object with a mandatory "type" field; the
// remaining fields are the payload for that type.
//
// Conventions:
//   - Prices: float64 in KRW as sent by the backend
//   - Timestamps: RFC 3339 strings parsed into time.Time
//   - Instruments: 6-digit stock codes (e.g. "005930")
package model
