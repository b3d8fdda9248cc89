// Package api provides the dashboard REST client used by the streaming layer.
//
// Only the endpoints the live feed depends on are covered:
//   - GET /notifications/unread-count: authoritative unread notification count
//
// Every request carries the stored access token as a Bearer header, read
// fresh so a re-login is picked up without rebuilding the client.
package api
