package mockfeed

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/rickgao/tradestream/internal/model"
)

// Config holds mock backend settings.
type Config struct {
	Token                string        // Required access token; empty accepts any
	PriceInterval        time.Duration // Between price_update frames
	OrderInterval        time.Duration // Between order_update frames
	NotificationInterval time.Duration // Between notification frames
	InitialUnread        int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PriceInterval:        time.Second,
		OrderInterval:        5 * time.Second,
		NotificationInterval: 15 * time.Second,
	}
}

// Server is the mock backend.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	unread int
}

// New creates a Server.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		unread: cfg.InitialUnread,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/notifications/unread-count", s.handleUnreadCount).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read-all", s.handleReadAll).Methods(http.MethodPost)

	router.HandleFunc("/ws/trading", s.handleTrading)
	router.HandleFunc("/ws/market/{code}", s.handleMarket)

	return router
}

// Unread returns the current unread count.
func (s *Server) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Server) authorized(token string) bool {
	return s.cfg.Token == "" || token == s.cfg.Token
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")) {
		http.Error(w, `{"detail":"not authenticated"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model.UnreadCount{UnreadCount: s.Unread()})
}

func (s *Server) handleReadAll(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")) {
		http.Error(w, `{"detail":"not authenticated"}`, http.StatusUnauthorized)
		return
	}
	s.mu.Lock()
	s.unread = 0
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// upgrade checks the token query parameter and upgrades the request.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, bool) {
	if !s.authorized(r.URL.Query().Get("token")) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, false
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return nil, false
	}
	return conn, true
}

// readLoop consumes client frames until the connection closes, forwarding
// subscribe requests to switches when non-nil.
func readLoop(conn *websocket.Conn, switches chan<- string, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if switches == nil {
			continue
		}
		var req model.SubscribeRequest
		if json.Unmarshal(data, &req) == nil && req.Type == model.TypeSubscribe && req.Instrument != "" {
			select {
			case switches <- req.Instrument:
			default:
			}
		}
	}
}

func (s *Server) handleTrading(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	defer conn.Close()

	s.logger.Info("trading client connected", "remote", r.RemoteAddr)
	defer s.logger.Info("trading client disconnected", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go readLoop(conn, nil, done)

	orders := time.NewTicker(s.cfg.OrderInterval)
	defer orders.Stop()
	notes := time.NewTicker(s.cfg.NotificationInterval)
	defer notes.Stop()

	codes := []string{"005930", "000660", "035420"}
	for {
		var frame any
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-orders.C:
			code := codes[rand.IntN(len(codes))]
			frame = orderFrame(code)
			if rand.IntN(3) == 0 {
				if err := conn.WriteJSON(signalFrame(code)); err != nil {
					return
				}
			}
		case <-notes.C:
			s.mu.Lock()
			s.unread++
			s.mu.Unlock()
			frame = notificationFrame()
		}
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	conn, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	defer conn.Close()

	s.logger.Info("market client connected", "instrument", code)

	switches := make(chan string, 4)
	done := make(chan struct{})
	go readLoop(conn, switches, done)

	ticker := time.NewTicker(s.cfg.PriceInterval)
	defer ticker.Stop()

	price := basePrice(code)
	if err := s.writePrice(conn, code, price); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case next := <-switches:
			s.logger.Info("instrument switched", "from", code, "to", next)
			code = next
			price = basePrice(code)
			if err := s.writePrice(conn, code, price); err != nil {
				return
			}
		case <-ticker.C:
			price *= 1 + (rand.Float64()-0.5)/100
			if err := s.writePrice(conn, code, price); err != nil {
				return
			}
		}
	}
}

// writePrice sends a tick, or a price_error for codes that are not six digits.
func (s *Server) writePrice(conn *websocket.Conn, code string, price float64) error {
	if !validCode(code) {
		return conn.WriteJSON(map[string]any{
			"type":       model.TypePriceError,
			"stock_code": code,
			"message":    "unknown instrument",
		})
	}
	base := basePrice(code)
	return conn.WriteJSON(map[string]any{
		"type":        model.TypePriceUpdate,
		"stock_code":  code,
		"price":       price,
		"change":      price - base,
		"change_rate": (price - base) / base * 100,
		"volume":      rand.Int64N(1_000_000),
		"timestamp":   time.Now().UTC(),
	})
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// basePrice derives a stable starting price from the code.
func basePrice(code string) float64 {
	sum := 0
	for _, c := range code {
		sum = sum*31 + int(c)
	}
	if sum < 0 {
		sum = -sum
	}
	return float64(10_000 + sum%90_000)
}

func orderFrame(code string) map[string]any {
	qty := int64(1 + rand.IntN(100))
	statuses := []string{"pending", "partial", "filled"}
	status := statuses[rand.IntN(len(statuses))]
	filled := int64(0)
	switch status {
	case "partial":
		filled = qty / 2
	case "filled":
		filled = qty
	}
	return map[string]any{
		"type":            model.TypeOrderUpdate,
		"order_id":        uuid.NewString(),
		"stock_code":      code,
		"side":            []string{"buy", "sell"}[rand.IntN(2)],
		"status":          status,
		"quantity":        qty,
		"filled_quantity": filled,
		"price":           basePrice(code),
		"updated_at":      time.Now().UTC(),
	}
}

func signalFrame(code string) map[string]any {
	return map[string]any{
		"type":       model.TypeRecipeSignal,
		"recipe_id":  "recipe-1",
		"stock_code": code,
		"signal":     []string{"buy", "sell", "hold"}[rand.IntN(3)],
		"price":      basePrice(code),
		"timestamp":  time.Now().UTC(),
	}
}

func notificationFrame() map[string]any {
	return map[string]any{
		"type":     model.TypeNotification,
		"id":       uuid.NewString(),
		"category": "order",
		"title":    "Order update",
		"message":  "An order changed status",
	}
}
