package model

import "time"

// Event types carried in the frame "type" field.
const (
	TypeOrderUpdate  = "order_update"
	TypePriceUpdate  = "price_update"
	TypePriceError   = "price_error"
	TypeRecipeSignal = "recipe_signal"
	TypeNotification = "notification"
	TypeSubscribe    = "subscribe"
)

// Channel paths served by the backend.
const (
	ChannelTrading = "trading"
	marketPrefix   = "market/"
)

// MarketChannel returns the instrument-scoped channel path for a stock code.
func MarketChannel(code string) string {
	return marketPrefix + code
}

// -----------------------------------------------------------------------------
// Trading Channel
// -----------------------------------------------------------------------------

// OrderUpdate reports a state change of an order placed by a recipe or the user.
type OrderUpdate struct {
	OrderID        string    `json:"order_id"`
	RecipeID       string    `json:"recipe_id,omitempty"`
	StockCode      string    `json:"stock_code"`
	StockName      string    `json:"stock_name,omitempty"`
	Side           string    `json:"side"`   // "buy" or "sell"
	Status         string    `json:"status"` // "pending", "partial", "filled", "cancelled", "rejected"
	Quantity       int64     `json:"quantity"`
	FilledQuantity int64     `json:"filled_quantity"`
	Price          float64   `json:"price"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Filled reports whether the order has no remaining quantity.
func (o OrderUpdate) Filled() bool {
	return o.Quantity > 0 && o.FilledQuantity >= o.Quantity
}

// RecipeSignal is a trading signal raised by a running recipe.
type RecipeSignal struct {
	RecipeID   string    `json:"recipe_id"`
	RecipeName string    `json:"recipe_name,omitempty"`
	StockCode  string    `json:"stock_code"`
	Signal     string    `json:"signal"` // "buy", "sell", "hold"
	Price      float64   `json:"price"`
	Strength   float64   `json:"strength,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notification is a user-facing notice pushed on the trading channel.
// All fields are optional on the wire.
type Notification struct {
	ID       string `json:"id,omitempty"`
	Category string `json:"category,omitempty"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message,omitempty"`
	Link     string `json:"link,omitempty"`
}

// UnreadCount is the REST response of the unread-count endpoint.
type UnreadCount struct {
	UnreadCount int `json:"unread_count"`
}

// -----------------------------------------------------------------------------
// Market Channel
// -----------------------------------------------------------------------------

// PriceTick is a live price for one instrument.
type PriceTick struct {
	StockCode  string    `json:"stock_code"`
	Price      float64   `json:"price"`
	Change     float64   `json:"change"`
	ChangeRate float64   `json:"change_rate"`
	Volume     int64     `json:"volume"`
	High       float64   `json:"high,omitempty"`
	Low        float64   `json:"low,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// PriceError is an application-level error reported by the market channel,
// e.g. an unknown instrument or a market that is closed.
type PriceError struct {
	StockCode string `json:"stock_code,omitempty"`
	Message   string `json:"message"`
}

// SubscribeRequest switches the instrument of an open market channel.
type SubscribeRequest struct {
	Type       string `json:"type"`
	Instrument string `json:"instrument"`
}

// NewSubscribeRequest builds the control frame for an instrument switch.
func NewSubscribeRequest(code string) SubscribeRequest {
	return SubscribeRequest{Type: TypeSubscribe, Instrument: code}
}
