package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/tradestream/internal/connection"
	"github.com/rickgao/tradestream/internal/credential"
	"github.com/rickgao/tradestream/internal/emitter"
	"github.com/rickgao/tradestream/internal/model"
)

// fakeChannel is a connection.Channel backed by a local emitter.
type fakeChannel struct {
	events *emitter.Emitter

	mu       sync.Mutex
	released int
	sent     []any
}

func (c *fakeChannel) On(eventType string, h emitter.Handler) func() {
	return c.events.On(eventType, h)
}

func (c *fakeChannel) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeChannel) State() connection.State {
	return connection.StateOpen
}

func (c *fakeChannel) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
}

func (c *fakeChannel) deliver(t *testing.T, raw string) {
	t.Helper()
	f, err := emitter.Decode([]byte(raw), time.Now())
	if err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	c.events.Dispatch(f)
}

type fakeSource struct {
	mu          sync.Mutex
	acquired    []string
	credentials []string
	channels    []*fakeChannel
}

func (s *fakeSource) Acquire(path, cred string) connection.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := &fakeChannel{events: emitter.New()}
	s.acquired = append(s.acquired, path)
	s.credentials = append(s.credentials, cred)
	s.channels = append(s.channels, ch)
	return ch
}

func loggedIn() credential.Store {
	return credential.NewMemoryStore(map[string]string{credential.AccessTokenKey: "tok"})
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("storage unavailable")
}

func TestHook_NoCredentialNoConnection(t *testing.T) {
	stores := map[string]credential.Store{
		"absent": credential.NewMemoryStore(nil),
		"empty":  credential.NewMemoryStore(map[string]string{credential.AccessTokenKey: ""}),
		"broken": brokenStore{},
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			src := &fakeSource{}
			h := New(src, store, model.ChannelTrading, nil).
				Handle(model.TypeOrderUpdate, func(emitter.Frame) {})

			if h.Mount(context.Background()) {
				t.Error("Mount() = true, want false")
			}
			if len(src.acquired) != 0 {
				t.Errorf("Acquire calls = %d, want 0", len(src.acquired))
			}
			if h.Mounted() {
				t.Error("Mounted() = true, want false")
			}
			if err := h.Send(model.NewSubscribeRequest("005930")); !errors.Is(err, connection.ErrNotConnected) {
				t.Errorf("Send() error = %v, want ErrNotConnected", err)
			}

			// Unmount of a never-mounted hook is a no-op
			h.Unmount()
		})
	}
}

func TestHook_MountRegistersEveryType(t *testing.T) {
	src := &fakeSource{}
	var orders, signals int

	h := New(src, loggedIn(), model.ChannelTrading, nil).
		Handle(model.TypeOrderUpdate, func(emitter.Frame) { orders++ }).
		Handle(model.TypeRecipeSignal, func(emitter.Frame) { signals++ })

	if !h.Mount(context.Background()) {
		t.Fatal("Mount() = false, want true")
	}
	if len(src.acquired) != 1 || src.acquired[0] != model.ChannelTrading {
		t.Fatalf("acquired = %v, want [trading]", src.acquired)
	}
	if src.credentials[0] != "tok" {
		t.Errorf("credential = %q, want %q", src.credentials[0], "tok")
	}
	if h.Active() != 2 {
		t.Errorf("Active() = %d, want 2", h.Active())
	}

	ch := src.channels[0]
	ch.deliver(t, `{"type":"order_update","order_id":"o1"}`)
	ch.deliver(t, `{"type":"recipe_signal","recipe_id":"r1"}`)
	ch.deliver(t, `{"type":"notification"}`)

	if orders != 1 || signals != 1 {
		t.Errorf("orders = %d, signals = %d, want 1, 1", orders, signals)
	}

	// Second mount does not acquire again
	h.Mount(context.Background())
	if len(src.acquired) != 1 {
		t.Errorf("acquired after remount = %d, want 1", len(src.acquired))
	}
}

func TestHook_UnmountRemovesEverything(t *testing.T) {
	src := &fakeSource{}
	calls := 0

	h := New(src, loggedIn(), model.ChannelTrading, nil).
		Handle(model.TypeOrderUpdate, func(emitter.Frame) { calls++ }).
		Handle(emitter.Wildcard, func(emitter.Frame) { calls++ })
	h.Mount(context.Background())
	ch := src.channels[0]

	h.Unmount()
	h.Unmount()

	if h.Active() != 0 {
		t.Errorf("Active() = %d, want 0", h.Active())
	}
	if ch.events.Len() != 0 {
		t.Errorf("channel handlers = %d, want 0", ch.events.Len())
	}
	if ch.released != 1 {
		t.Errorf("released = %d, want 1", ch.released)
	}
	if h.State() != connection.StateIdle {
		t.Errorf("State() = %v, want idle", h.State())
	}

	ch.deliver(t, `{"type":"order_update"}`)
	if calls != 0 {
		t.Errorf("handler calls after unmount = %d, want 0", calls)
	}
}

func TestHook_HandleWhileMounted(t *testing.T) {
	src := &fakeSource{}
	h := New(src, loggedIn(), "market/005930", nil)
	h.Mount(context.Background())

	got := 0
	h.Handle(model.TypePriceUpdate, func(emitter.Frame) { got++ })
	if h.Active() != 1 {
		t.Fatalf("Active() = %d, want 1", h.Active())
	}

	src.channels[0].deliver(t, `{"type":"price_update","price":1}`)
	if got != 1 {
		t.Errorf("got = %d, want 1", got)
	}
}

func TestHook_RemountAfterUnmount(t *testing.T) {
	src := &fakeSource{}
	h := New(src, loggedIn(), model.ChannelTrading, nil).
		Handle(model.TypeNotification, func(emitter.Frame) {})

	h.Mount(context.Background())
	h.Unmount()
	h.Mount(context.Background())

	if len(src.acquired) != 2 {
		t.Errorf("acquired = %d, want 2", len(src.acquired))
	}
	if h.Active() != 1 {
		t.Errorf("Active() = %d, want 1", h.Active())
	}
}

func TestHook_Send(t *testing.T) {
	src := &fakeSource{}
	h := New(src, loggedIn(), "market/005930", nil)
	h.Mount(context.Background())

	if err := h.Send(model.NewSubscribeRequest("000660")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	sent := src.channels[0].sent
	if len(sent) != 1 {
		t.Fatalf("sent = %d frames, want 1", len(sent))
	}
	data, _ := json.Marshal(sent[0])
	if string(data) != `{"type":"subscribe","instrument":"000660"}` {
		t.Errorf("sent = %s", data)
	}
}
