package bridge

import (
	"sort"
	"sync"

	"ghcopilot/internal/panel"
)

// Hub is an in-process EventSource. Hosts publish their key presses and
// resizes to it; subscribers are called synchronously in subscription order.
type Hub struct {
	mu      sync.Mutex
	nextSub int
	nextKey uint64
	keys    map[int]func(*KeyEvent)
	resizes map[int]func(panel.Size)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		keys:    make(map[int]func(*KeyEvent)),
		resizes: make(map[int]func(panel.Size)),
	}
}

// SubscribeKeys implements EventSource.
func (h *Hub) SubscribeKeys(fn func(*KeyEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	h.keys[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.keys, id)
		h.mu.Unlock()
	}
}

// SubscribeResize implements EventSource.
func (h *Hub) SubscribeResize(fn func(panel.Size)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	h.resizes[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.resizes, id)
		h.mu.Unlock()
	}
}

// PublishKey delivers one key press and reports whether a subscriber handled it.
func (h *Hub) PublishKey(chord string) bool {
	h.mu.Lock()
	h.nextKey++
	ev := &KeyEvent{ID: h.nextKey, Chord: chord}
	subs := ordered(h.keys)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
	return ev.Handled
}

// PublishResize delivers a host resize.
func (h *Hub) PublishResize(s panel.Size) {
	h.mu.Lock()
	subs := ordered(h.resizes)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// Subscribers returns the number of key and resize subscriptions.
func (h *Hub) Subscribers() (keys, resizes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.keys), len(h.resizes)
}

func ordered[F any](m map[int]F) []F {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]F, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}
