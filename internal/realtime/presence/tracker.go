package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// Publisher pushes the full local presence to the room.
type Publisher interface {
	PublishPresence(ctx context.Context, p Presence) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, p Presence) error

func (f PublisherFunc) PublishPresence(ctx context.Context, p Presence) error { return f(ctx, p) }

// Tracker owns the local connection's presence. Setters replace the relevant
// field and return immediately; Run publishes the whole record from its own
// goroutine. States that change faster than the publisher can deliver them
// are coalesced, and the latest state is always the one that goes out.
type Tracker struct {
	mu      sync.Mutex
	current Presence
	pub     Publisher
	dirty   chan struct{}
}

// NewTracker creates a Tracker starting from initial. Nothing is published
// until Run is started.
func NewTracker(initial Presence, pub Publisher) *Tracker {
	return &Tracker{
		current: initial.clone(),
		pub:     pub,
		dirty:   make(chan struct{}, 1),
	}
}

// Run publishes the current presence every time it changes, until ctx ends.
// A change made while a publish is in flight is sent once that publish
// returns.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.dirty:
		}
		if t.pub == nil {
			continue
		}

		p := t.Current()
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := t.pub.PublishPresence(pubCtx, p)
		cancel()
		if err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Str("connection_id", p.ConnectionID).Msg("presence: publish dropped")
		}
	}
}

// Current returns a copy of the local presence.
func (t *Tracker) Current() Presence {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current.clone()
}

// Announce republishes the current presence unchanged.
func (t *Tracker) Announce() {
	t.update(func(*Presence) {})
}

func (t *Tracker) SetCursor(x, y float64) {
	t.update(func(p *Presence) { p.Cursor = &Cursor{X: x, Y: y} })
}

func (t *Tracker) ClearCursor() {
	t.update(func(p *Presence) { p.Cursor = nil })
}

// SetDragging records the entity being dragged. An empty id ends the drag.
func (t *Tracker) SetDragging(kind DragKind, id string) {
	t.update(func(p *Presence) {
		switch kind {
		case DragCard:
			p.DraggingCardID = id
		case DragList:
			p.DraggingListID = id
		}
	})
}

// SetEditing records the card being edited. An empty id closes the editor.
func (t *Tracker) SetEditing(id string) {
	t.update(func(p *Presence) { p.EditingCardID = id })
}

// update applies fn and wakes Run without waiting for it.
func (t *Tracker) update(fn func(*Presence)) {
	t.mu.Lock()
	fn(&t.current)
	t.mu.Unlock()

	select {
	case t.dirty <- struct{}{}:
	default:
	}
}
