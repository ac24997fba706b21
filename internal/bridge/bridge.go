// Package bridge connects the host's input events to a panel: the open and
// close key chords, and host resize notifications.
package bridge

import (
	"strings"
	"sync"

	"ghcopilot/internal/logging"
	"ghcopilot/internal/panel"
)

// KeyEvent is one physical key press delivered by the host. ID is unique per
// press; handlers set Handled to stop the host's default handling.
type KeyEvent struct {
	ID      uint64
	Chord   string
	Handled bool
}

// EventSource delivers host events. Subscribe functions return a function
// that removes the subscription.
type EventSource interface {
	SubscribeKeys(fn func(*KeyEvent)) (unsubscribe func())
	SubscribeResize(fn func(panel.Size)) (unsubscribe func())
}

// Target is what the bridge drives. *panel.Machine implements it.
type Target interface {
	Open()
	Close()
	Reposition(host panel.Size)
}

// Bridge forwards events from one attached source to its target.
type Bridge struct {
	mu         sync.Mutex
	target     Target
	openChord  string
	closeChord string

	src       EventSource
	unsubs    []func()
	lastKeyID uint64
}

// New creates a detached bridge. An empty closeChord disables closing by key.
func New(target Target, openChord, closeChord string) *Bridge {
	return &Bridge{
		target:     target,
		openChord:  NormalizeChord(openChord),
		closeChord: NormalizeChord(closeChord),
	}
}

// Attach subscribes to src. Attaching the source already attached is a
// no-op; attaching a different source detaches from the old one first.
func (b *Bridge) Attach(src EventSource) {
	b.mu.Lock()
	if b.src == src {
		b.mu.Unlock()
		return
	}
	old := b.detachLocked()
	b.src = src
	b.mu.Unlock()

	for _, unsub := range old {
		unsub()
	}
	// Subscribing outside mu: a source may deliver synchronously.
	keys := src.SubscribeKeys(b.onKey)
	resize := src.SubscribeResize(b.onResize)

	b.mu.Lock()
	b.unsubs = []func(){keys, resize}
	b.mu.Unlock()
	logging.Get(logging.CategoryBridge).Info("attached (open=%s close=%s)", b.openChord, b.closeChord)
}

// Detach removes the subscriptions. Detaching a detached bridge is a no-op.
func (b *Bridge) Detach() {
	b.mu.Lock()
	unsubs := b.detachLocked()
	b.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
	if len(unsubs) > 0 {
		logging.Get(logging.CategoryBridge).Info("detached")
	}
}

// Attached reports whether the bridge is subscribed to a source.
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.src != nil
}

func (b *Bridge) detachLocked() []func() {
	unsubs := b.unsubs
	b.unsubs = nil
	b.src = nil
	return unsubs
}

func (b *Bridge) onKey(ev *KeyEvent) {
	chord := NormalizeChord(ev.Chord)
	if chord != b.openChord && (b.closeChord == "" || chord != b.closeChord) {
		return
	}

	b.mu.Lock()
	if ev.ID != 0 && ev.ID == b.lastKeyID {
		b.mu.Unlock()
		return
	}
	b.lastKeyID = ev.ID
	b.mu.Unlock()

	ev.Handled = true
	if chord == b.openChord {
		logging.Get(logging.CategoryBridge).Debug("open chord %s", chord)
		b.target.Open()
		return
	}
	logging.Get(logging.CategoryBridge).Debug("close chord %s", chord)
	b.target.Close()
}

func (b *Bridge) onResize(s panel.Size) {
	b.target.Reposition(s)
}

// NormalizeChord lowercases a chord and orders its modifiers, so "Shift+Ctrl+K"
// and "ctrl+shift+k" match.
func NormalizeChord(chord string) string {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(chord)), "+")
	if len(parts) <= 1 {
		return strings.Join(parts, "")
	}
	key := parts[len(parts)-1]
	mods := map[string]bool{}
	for _, p := range parts[:len(parts)-1] {
		mods[strings.TrimSpace(p)] = true
	}
	var out []string
	for _, m := range []string{"ctrl", "alt", "shift"} {
		if mods[m] {
			out = append(out, m)
		}
	}
	return strings.Join(append(out, strings.TrimSpace(key)), "+")
}
