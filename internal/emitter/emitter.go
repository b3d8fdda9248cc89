package emitter

import "sync"

// Handler receives dispatched frames.
type Handler func(Frame)

// Token identifies one registration.
type Token uint64

// Emitter routes frames to handlers registered by event type.
// It is safe for concurrent use.
type Emitter struct {
	mu       sync.RWMutex
	next     Token
	handlers map[string]map[Token]Handler // event type → token → handler
	types    map[Token]string             // token → event type
}

// New creates an empty Emitter.
func New() *Emitter {
	return &Emitter{
		handlers: make(map[string]map[Token]Handler),
		types:    make(map[Token]string),
	}
}

// Subscribe registers h for eventType (or Wildcard) and returns its token.
func (e *Emitter) Subscribe(eventType string, h Handler) Token {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.next++
	tok := e.next

	set, ok := e.handlers[eventType]
	if !ok {
		set = make(map[Token]Handler)
		e.handlers[eventType] = set
	}
	set[tok] = h
	e.types[tok] = eventType

	return tok
}

// Unsubscribe removes the registration behind tok.
// Returns false if it was already removed.
func (e *Emitter) Unsubscribe(tok Token) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	eventType, ok := e.types[tok]
	if !ok {
		return false
	}
	delete(e.types, tok)

	set := e.handlers[eventType]
	delete(set, tok)
	if len(set) == 0 {
		delete(e.handlers, eventType)
	}
	return true
}

// On registers h and returns a function that removes exactly this registration.
// The returned function is safe to call more than once.
func (e *Emitter) On(eventType string, h Handler) func() {
	tok := e.Subscribe(eventType, h)
	var once sync.Once
	return func() {
		once.Do(func() { e.Unsubscribe(tok) })
	}
}

// Dispatch invokes every handler registered for the frame type, then every
// wildcard handler. Handlers run without the lock held and may unsubscribe.
// Returns the number of handlers invoked.
func (e *Emitter) Dispatch(f Frame) int {
	e.mu.RLock()
	targets := make([]Handler, 0, len(e.handlers[f.Type])+len(e.handlers[Wildcard]))
	for _, h := range e.handlers[f.Type] {
		targets = append(targets, h)
	}
	if f.Type != Wildcard {
		for _, h := range e.handlers[Wildcard] {
			targets = append(targets, h)
		}
	}
	e.mu.RUnlock()

	for _, h := range targets {
		h(f)
	}
	return len(targets)
}

// Len returns the total number of registrations.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.types)
}

// Count returns the number of registrations for one event type.
func (e *Emitter) Count(eventType string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[eventType])
}

// Clear removes every registration.
func (e *Emitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = make(map[string]map[Token]Handler)
	e.types = make(map[Token]string)
}
