package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/gosuda/kanbansync/internal/domain"
	"github.com/gosuda/kanbansync/internal/realtime/event"
	"github.com/gosuda/kanbansync/internal/realtime/presence"
	"github.com/gosuda/kanbansync/internal/realtime/transport"
	"github.com/gosuda/kanbansync/internal/server/middleware"
)

const (
	writeTimeout = 10 * time.Second
	clearTimeout = 5 * time.Second
	readLimit    = 64 << 10
)

// Options tunes a Hub.
type Options struct {
	// PresenceRate and PresenceBurst bound presence writes per connection.
	// Frames over the limit are coalesced: the latest one is stored as soon
	// as the limiter allows.
	PresenceRate  float64
	PresenceBurst int
	// KeepAlive, when positive, is how often each connection rewrites its
	// stored presence and prunes expired peers. It should be well below the
	// transport's presence TTL.
	KeepAlive time.Duration
	// OriginPatterns are passed to websocket.Accept for cross-origin
	// upgrades.
	OriginPatterns []string
}

// Hub relays frames between WebSocket clients and board rooms.
type Hub struct {
	broker transport.Broker
	opts   Options
}

// NewHub creates a new WebSocket hub.
func NewHub(broker transport.Broker, opts Options) *Hub {
	if opts.PresenceRate <= 0 {
		opts.PresenceRate = 30
	}
	if opts.PresenceBurst <= 0 {
		opts.PresenceBurst = 10
	}
	return &Hub{broker: broker, opts: opts}
}

// ServeBoard handles a WebSocket connection to one board room. The client
// first receives a welcome frame with its connection ID and then the current
// roster; after that every room frame is relayed, its own included.
func (h *Hub) ServeBoard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, `{"title":"Unauthorized","status":401,"detail":"authentication required"}`, http.StatusUnauthorized)
		return
	}
	role, _ := middleware.RoleFromContext(r.Context())

	boardID := chi.URLParam(r, "boardID")
	if boardID == "" {
		http.Error(w, "missing board id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{
		conn:     conn,
		room:     h.broker.Room(boardID),
		user:     user,
		canWrite: middleware.CanWrite(role),
		connID:   uuid.NewString(),
		limiter:  rate.NewLimiter(rate.Limit(h.opts.PresenceRate), h.opts.PresenceBurst),
	}
	c.logger = log.With().
		Str("board_id", boardID).
		Str("connection_id", c.connID).
		Str("user_id", user.ID).
		Logger()

	frames, cleanup, err := c.room.Subscribe(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	if err := c.greet(ctx, boardID); err != nil {
		c.logger.Debug().Err(err).Msg("websocket greet")
		return
	}
	defer c.leave()

	c.logger.Info().Msg("ws: client joined")

	go func() {
		defer cancel()
		c.readLoop(ctx)
	}()
	if h.opts.KeepAlive > 0 {
		go c.keepAlive(ctx, h.opts.KeepAlive)
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case f, msgOK := <-frames:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := c.write(ctx, f); writeErr != nil {
				c.logger.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}

type client struct {
	conn     *websocket.Conn
	room     transport.Room
	user     domain.UserRef
	canWrite bool
	connID   string
	limiter  *rate.Limiter
	logger   zerolog.Logger

	// presenceMu serialises every write of this connection's presence.
	presenceMu sync.Mutex
	latest     presence.Presence
	present    bool
	pending    *presence.Presence
	flush      *time.Timer
	closed     bool
}

func (c *client) write(ctx context.Context, f transport.Frame) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.conn, f)
}

// greet sends the welcome and roster frames and registers an empty presence.
func (c *client) greet(ctx context.Context, boardID string) error {
	welcome, err := json.Marshal(transport.Welcome{Connection: c.connID, UserID: c.user.ID, BoardID: boardID})
	if err != nil {
		return err
	}
	if err := c.write(ctx, transport.Frame{Kind: transport.FrameWelcome, Connection: c.connID, Payload: welcome}); err != nil {
		return err
	}

	presences, err := c.room.Presences(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("ws: roster unavailable")
		presences = nil
	}
	roster, err := transport.RosterFrame(presences)
	if err != nil {
		return err
	}
	if err := c.write(ctx, roster); err != nil {
		return err
	}

	c.presenceMu.Lock()
	c.setPresence(ctx, presence.Presence{})
	c.presenceMu.Unlock()
	return nil
}

func (c *client) leave() {
	c.presenceMu.Lock()
	c.closed = true
	c.dropPending()
	c.presenceMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
	defer cancel()
	if err := c.room.ClearPresence(ctx, c.connID); err != nil {
		c.logger.Warn().Err(err).Msg("ws: clear presence")
	}
	c.logger.Info().Msg("ws: client left")
}

func (c *client) readLoop(ctx context.Context) {
	for {
		var f transport.Frame
		if err := wsjson.Read(ctx, c.conn, &f); err != nil {
			var closeErr websocket.CloseError
			if !errors.As(err, &closeErr) && ctx.Err() == nil {
				c.logger.Debug().Err(err).Msg("websocket read")
			}
			return
		}

		switch f.Kind {
		case transport.FrameEvent:
			c.relayEvent(ctx, f.Payload)
		case transport.FramePresence:
			p, err := presence.Decode(f.Payload)
			if err != nil {
				c.logger.Debug().Err(err).Msg("ws: bad presence frame")
				continue
			}
			c.offerPresence(ctx, p)
		case transport.FrameLeave:
			c.withdraw(ctx)
		default:
			c.logger.Debug().Str("kind", string(f.Kind)).Msg("ws: unexpected frame kind")
		}
	}
}

func (c *client) relayEvent(ctx context.Context, payload json.RawMessage) {
	h, err := event.PeekHeader(payload)
	if err != nil {
		c.logger.Debug().Err(err).Msg("ws: bad event frame")
		return
	}
	if !c.canWrite {
		c.logger.Warn().Str("event_type", string(h.Type)).Msg("ws: event from read-only participant dropped")
		return
	}
	if h.UserID != c.user.ID {
		c.logger.Warn().Str("event_type", string(h.Type)).Str("claimed_user", h.UserID).Msg("ws: event with foreign user id dropped")
		return
	}

	if err := c.room.Publish(ctx, transport.Frame{Kind: transport.FrameEvent, Connection: c.connID, Payload: payload}); err != nil {
		c.logger.Warn().Err(err).Str("event_type", string(h.Type)).Msg("ws: publish")
	}
}

// ---------------------------------------------------------------------------
// Presence
// ---------------------------------------------------------------------------

// offerPresence stores p now if the limiter allows it. Otherwise p becomes
// the pending presence, replacing any older pending one, and is stored when
// the limiter next has a token. A drag end that follows a burst of cursor
// moves is therefore delayed, never lost.
func (c *client) offerPresence(ctx context.Context, p presence.Presence) {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()

	if c.closed {
		return
	}
	if c.pending != nil {
		c.pending = &p
		return
	}
	if c.limiter.Allow() {
		c.setPresence(ctx, p)
		return
	}

	c.pending = &p
	delay := c.limiter.Reserve().Delay()
	c.flush = time.AfterFunc(delay, func() { c.flushPending(ctx) })
}

// flushPending stores the pending presence. The limiter token was reserved
// when the timer was armed.
func (c *client) flushPending(ctx context.Context) {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()

	if c.closed || c.pending == nil || ctx.Err() != nil {
		return
	}
	p := *c.pending
	c.pending = nil
	c.flush = nil
	c.setPresence(ctx, p)
}

// dropPending discards a pending presence. c.presenceMu must be held.
func (c *client) dropPending() {
	if c.flush != nil {
		c.flush.Stop()
		c.flush = nil
	}
	c.pending = nil
}

// withdraw handles a client leave frame: the connection stays open but its
// presence is removed until the next presence frame.
func (c *client) withdraw(ctx context.Context) {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()

	c.dropPending()
	c.present = false
	if err := c.room.ClearPresence(ctx, c.connID); err != nil {
		c.logger.Warn().Err(err).Msg("ws: clear presence")
	}
}

// keepAlive rewrites the stored presence every interval so it outlives the
// transport TTL, and reads the roster so that entries whose owners stopped
// refreshing are pruned.
func (c *client) keepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.presenceMu.Lock()
		if !c.closed && c.present {
			c.setPresence(ctx, c.latest)
		}
		c.presenceMu.Unlock()

		if _, err := c.room.Presences(ctx); err != nil && ctx.Err() == nil {
			c.logger.Debug().Err(err).Msg("ws: prune presence")
		}
	}
}

// setPresence stores p under the server-assigned connection ID and the
// authenticated identity, whatever the client claimed. c.presenceMu must be
// held.
func (c *client) setPresence(ctx context.Context, p presence.Presence) {
	p.ConnectionID = c.connID
	p.User = c.user

	data, err := presence.Encode(p)
	if err != nil {
		c.logger.Error().Err(err).Msg("ws: encode presence")
		return
	}
	c.latest = p
	c.present = true
	if err := c.room.SetPresence(ctx, c.connID, data); err != nil {
		c.logger.Warn().Err(err).Msg("ws: set presence")
	}
}
