package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 64

// MemoryBroker is an in-process Broker for single-node deployments and tests.
type MemoryBroker struct {
	mu    sync.Mutex
	rooms map[string]*memoryRoom
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{rooms: make(map[string]*memoryRoom)}
}

// Room returns the room for boardID, creating it on first use.
func (b *MemoryBroker) Room(boardID string) Room {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.rooms[boardID]
	if !ok {
		r = &memoryRoom{
			boardID:   boardID,
			subs:      make(map[int]chan Frame),
			presences: make(map[string]json.RawMessage),
		}
		b.rooms[boardID] = r
	}
	return r
}

type memoryRoom struct {
	boardID string

	mu        sync.Mutex
	nextID    int
	subs      map[int]chan Frame
	presences map[string]json.RawMessage
}

// Publish fans f out without blocking. A subscriber whose buffer is full
// misses the frame.
func (r *memoryRoom) Publish(_ context.Context, f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fanout(f)
	return nil
}

func (r *memoryRoom) fanout(f Frame) {
	for id, ch := range r.subs {
		select {
		case ch <- f:
		default:
			log.Debug().Str("board_id", r.boardID).Int("subscriber", id).Str("kind", string(f.Kind)).Msg("transport: subscriber buffer full, frame dropped")
		}
	}
}

func (r *memoryRoom) Subscribe(ctx context.Context) (<-chan Frame, func(), error) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	ch := make(chan Frame, subscriberBuffer)
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			close(ch)
			r.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cleanup()
	}()

	return ch, cleanup, nil
}

func (r *memoryRoom) SetPresence(_ context.Context, connID string, payload json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.presences[connID] = append(json.RawMessage(nil), payload...)
	r.fanout(Frame{Kind: FramePresence, Connection: connID, Payload: payload})
	return nil
}

func (r *memoryRoom) ClearPresence(_ context.Context, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.presences[connID]; !ok {
		return nil
	}
	delete(r.presences, connID)
	r.fanout(Frame{Kind: FrameLeave, Connection: connID})
	return nil
}

func (r *memoryRoom) Presences(_ context.Context) (map[string]json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]json.RawMessage, len(r.presences))
	for k, v := range r.presences {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out, nil
}
