// Package mockfeed is a local stand-in for the dashboard backend.
//
// It speaks the same frame protocol as production so the streaming client can
// be exercised end to end without the real trading service:
//
//	GET /health
//	GET /api/notifications/unread-count
//	WS  /ws/trading            order_update, recipe_signal, notification
//	WS  /ws/market/{code}      price_update, price_error; accepts subscribe
package mockfeed
