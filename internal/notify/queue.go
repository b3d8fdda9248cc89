package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/tradestream/internal/api"
	"github.com/rickgao/tradestream/internal/credential"
	"github.com/rickgao/tradestream/internal/emitter"
	"github.com/rickgao/tradestream/internal/model"
	"github.com/rickgao/tradestream/internal/poller"
	"github.com/rickgao/tradestream/internal/subscription"
)

// Toast defaults for notification frames that omit fields.
const (
	DefaultCategory = "info"
	DefaultTitle    = "New notification"
	DefaultMessage  = "You have a new notification."
)

const changeEvent = "change"

// ErrAlreadyStarted is returned by Start on a running Queue.
var ErrAlreadyStarted = errors.New("notification queue already started")

// UnreadCounter is the REST source of truth for the unread count.
// *api.Client implements it.
type UnreadCounter interface {
	GetUnreadCount(ctx context.Context) (int, error)
}

// Config holds queue settings.
type Config struct {
	MaxToasts    int           // Visible toasts; oldest evicted beyond this
	TTL          time.Duration // Toast lifetime
	PollInterval time.Duration // Unread count fallback poll
	PollTimeout  time.Duration // Per-poll request timeout
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxToasts:    5,
		TTL:          6 * time.Second,
		PollInterval: 60 * time.Second,
		PollTimeout:  10 * time.Second,
	}
}

// Toast is one visible notification.
type Toast struct {
	ID             string
	NotificationID string
	Category       string
	Title          string
	Message        string
	Link           string
	CreatedAt      time.Time
}

type stopper interface {
	Stop() bool
}

// Queue is the toast/unread-count service.
type Queue struct {
	cfg     Config
	counter UnreadCounter
	logger  *slog.Logger
	hook    *subscription.Hook
	poller  *poller.Poller
	events  *emitter.Emitter

	// Swappable in tests
	newID     func() string
	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper

	mu      sync.Mutex
	toasts  []Toast // newest first
	timers  map[string]stopper
	unread  int
	started bool
}

// New creates a stopped Queue. source and store back the notification
// subscription; counter supplies the authoritative unread count.
func New(cfg Config, source subscription.Source, store credential.Store, counter UnreadCounter, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "notify")

	q := &Queue{
		cfg:       cfg,
		counter:   counter,
		logger:    logger,
		events:    emitter.New(),
		newID:     uuid.NewString,
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		timers:    make(map[string]stopper),
	}

	q.hook = subscription.Notifications(source, store, q.push, logger)
	q.poller = poller.New(poller.Config{
		Name:        "unread-count",
		Interval:    cfg.PollInterval,
		Concurrency: 1,
		Timeout:     cfg.PollTimeout,
		Immediate:   false, // Start fetches synchronously
	}, logger, poller.TaskFunc(q.refresh))

	return q
}

// Start fetches the unread count, subscribes to notification frames and
// starts the fallback poll. A failed initial fetch is logged, not returned.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return ErrAlreadyStarted
	}
	q.started = true
	q.mu.Unlock()

	fetchCtx := ctx
	if q.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, q.cfg.PollTimeout)
		defer cancel()
	}
	if err := q.refresh(fetchCtx); err != nil {
		q.logger.Warn("initial unread count fetch failed", "error", err)
	}

	if !q.hook.Mount(ctx) {
		q.logger.Info("notification stream unavailable, relying on polling")
	}

	if err := q.poller.Start(ctx); err != nil {
		q.hook.Unmount()
		q.mu.Lock()
		q.started = false
		q.mu.Unlock()
		return err
	}
	return nil
}

// Stop cancels the poll, drops the subscription and every pending expiry.
// Visible toasts and the unread count are kept.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = false
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()

	q.hook.Unmount()
	return q.poller.Stop(ctx)
}

// Toasts returns the visible toasts, newest first.
func (q *Queue) Toasts() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Toast(nil), q.toasts...)
}

// UnreadCount returns the unread notification count.
func (q *Queue) UnreadCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unread
}

// SetUnreadCount overrides the counter, e.g. after the user marks all read.
func (q *Queue) SetUnreadCount(n int) {
	q.mu.Lock()
	q.unread = n
	q.mu.Unlock()
	q.changed()
}

// Dismiss removes the toast with id. The unread count is unaffected.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	ok := q.removeLocked(id)
	q.mu.Unlock()

	if ok {
		q.changed()
	}
	return ok
}

// Clear removes every toast. The unread count is unaffected.
func (q *Queue) Clear() {
	q.mu.Lock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.toasts = nil
	q.mu.Unlock()

	q.changed()
}

// OnChange registers fn to run after any change to toasts or the counter.
func (q *Queue) OnChange(fn func()) func() {
	return q.events.On(changeEvent, func(emitter.Frame) { fn() })
}

// push handles one notification frame.
func (q *Queue) push(n model.Notification) {
	t := Toast{
		ID:             q.newID(),
		NotificationID: n.ID,
		Category:       n.Category,
		Title:          n.Title,
		Message:        n.Message,
		Link:           n.Link,
		CreatedAt:      q.now(),
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if t.Title == "" {
		t.Title = DefaultTitle
	}
	if t.Message == "" {
		t.Message = DefaultMessage
	}

	q.mu.Lock()
	q.unread++
	q.toasts = append([]Toast{t}, q.toasts...)
	for len(q.toasts) > q.cfg.MaxToasts {
		oldest := q.toasts[len(q.toasts)-1]
		q.removeLocked(oldest.ID)
	}
	if q.started {
		id := t.ID
		q.timers[id] = q.afterFunc(q.cfg.TTL, func() { q.expire(id) })
	}
	q.mu.Unlock()

	q.logger.Debug("toast queued", "id", t.ID, "category", t.Category)
	q.changed()
}

// expire removes a toast whose TTL elapsed. Already dismissed toasts are ignored.
func (q *Queue) expire(id string) {
	q.mu.Lock()
	ok := q.removeLocked(id)
	q.mu.Unlock()

	if ok {
		q.changed()
	}
}

// removeLocked drops a toast and its timer. Must be called with mu held.
func (q *Queue) removeLocked(id string) bool {
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	for i, t := range q.toasts {
		if t.ID == id {
			q.toasts = append(q.toasts[:i:i], q.toasts[i+1:]...)
			return true
		}
	}
	return false
}

// refresh overwrites the unread count with the REST value.
func (q *Queue) refresh(ctx context.Context) error {
	if q.counter == nil {
		return nil
	}
	n, err := q.counter.GetUnreadCount(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			q.logger.Debug("unread count requires login")
			return nil
		}
		return err
	}

	q.mu.Lock()
	changed := q.unread != n
	q.unread = n
	q.mu.Unlock()

	if changed {
		q.changed()
	}
	return nil
}

func (q *Queue) changed() {
	q.events.Dispatch(emitter.Frame{Type: changeEvent, ReceivedAt: q.now()})
}
