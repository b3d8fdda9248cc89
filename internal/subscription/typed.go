package subscription

import (
	"log/slog"

	"github.com/rickgao/tradestream/internal/credential"
	"github.com/rickgao/tradestream/internal/emitter"
	"github.com/rickgao/tradestream/internal/model"
)

// Typed adapts fn into a Handler that decodes the frame payload into T.
// Frames that do not decode are dropped.
func Typed[T any](fn func(T)) emitter.Handler {
	return func(f emitter.Frame) {
		var v T
		if err := f.Decode(&v); err != nil {
			return
		}
		fn(v)
	}
}

// OrderUpdates returns a Hook delivering order_update events from the trading channel.
func OrderUpdates(source Source, store credential.Store, fn func(model.OrderUpdate), logger *slog.Logger) *Hook {
	return New(source, store, model.ChannelTrading, logger).
		Handle(model.TypeOrderUpdate, Typed(fn))
}

// RecipeSignals returns a Hook delivering recipe_signal events from the trading channel.
func RecipeSignals(source Source, store credential.Store, fn func(model.RecipeSignal), logger *slog.Logger) *Hook {
	return New(source, store, model.ChannelTrading, logger).
		Handle(model.TypeRecipeSignal, Typed(fn))
}

// Notifications returns a Hook delivering notification events from the trading channel.
func Notifications(source Source, store credential.Store, fn func(model.Notification), logger *slog.Logger) *Hook {
	return New(source, store, model.ChannelTrading, logger).
		Handle(model.TypeNotification, Typed(fn))
}

// TradingEvents returns a Hook receiving every frame on the trading channel.
func TradingEvents(source Source, store credential.Store, fn emitter.Handler, logger *slog.Logger) *Hook {
	return New(source, store, model.ChannelTrading, logger).
		Handle(emitter.Wildcard, fn)
}
