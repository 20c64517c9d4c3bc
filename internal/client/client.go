// Package client connects to a kanbansync server: a WebSocket room that
// satisfies transport.Room, and the REST snapshot endpoint.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanbansync/internal/domain"
	"github.com/gosuda/kanbansync/internal/realtime/transport"
)

const subscriberBuffer = 64

// Conn is one WebSocket connection to a board room.
type Conn struct {
	ws      *websocket.Conn
	welcome transport.Welcome

	mu        sync.Mutex
	closed    bool
	nextID    int
	subs      map[int]chan transport.Frame
	presences map[string]json.RawMessage

	done chan struct{}
}

var _ transport.Room = (*Conn)(nil)

// Dial opens the board room at baseURL (http or https) and waits for the
// welcome and roster frames.
func Dial(ctx context.Context, baseURL, boardID, token string) (*Conn, error) {
	u, err := roomURL(baseURL, boardID)
	if err != nil {
		return nil, fmt.Errorf("client.Dial: %w", err)
	}

	ws, resp, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client.Dial: %w", statusError(resp.StatusCode, err))
		}
		return nil, fmt.Errorf("client.Dial: %w", err)
	}

	c := &Conn{
		ws:        ws,
		subs:      make(map[int]chan transport.Frame),
		presences: make(map[string]json.RawMessage),
		done:      make(chan struct{}),
	}
	if err := c.handshake(ctx); err != nil {
		ws.CloseNow()
		return nil, fmt.Errorf("client.Dial: %w", err)
	}

	go c.readLoop()
	return c, nil
}

func (c *Conn) handshake(ctx context.Context) error {
	var f transport.Frame
	if err := wsjson.Read(ctx, c.ws, &f); err != nil {
		return fmt.Errorf("read welcome: %w", err)
	}
	if f.Kind != transport.FrameWelcome {
		return fmt.Errorf("expected welcome frame, got %q", f.Kind)
	}
	if err := json.Unmarshal(f.Payload, &c.welcome); err != nil {
		return fmt.Errorf("decode welcome: %w", err)
	}

	if err := wsjson.Read(ctx, c.ws, &f); err != nil {
		return fmt.Errorf("read roster: %w", err)
	}
	if f.Kind != transport.FrameRoster {
		return fmt.Errorf("expected roster frame, got %q", f.Kind)
	}
	return c.replaceRoster(f.Payload)
}

// ConnectionID is the ID the server assigned to this connection.
func (c *Conn) ConnectionID() string { return c.welcome.Connection }

// UserID is the authenticated user as seen by the server.
func (c *Conn) UserID() string { return c.welcome.UserID }

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close ends the connection. The server withdraws the presence.
func (c *Conn) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}

	err := c.ws.Close(websocket.StatusNormalClosure, "bye")
	<-c.done
	if err != nil && websocket.CloseStatus(err) == -1 {
		return fmt.Errorf("client.Conn.Close: %w", err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		var f transport.Frame
		if err := wsjson.Read(context.Background(), c.ws, &f); err != nil {
			if websocket.CloseStatus(err) == -1 {
				log.Debug().Err(err).Str("connection_id", c.ConnectionID()).Msg("client: read")
			}
			return
		}
		c.observe(f)
	}
}

func (c *Conn) observe(f transport.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch f.Kind {
	case transport.FramePresence:
		c.presences[f.Connection] = f.Payload
	case transport.FrameLeave:
		delete(c.presences, f.Connection)
	case transport.FrameRoster:
		var m map[string]json.RawMessage
		if err := json.Unmarshal(f.Payload, &m); err == nil && m != nil {
			c.presences = m
		}
	}

	for id, ch := range c.subs {
		select {
		case ch <- f:
		default:
			log.Debug().Str("connection_id", c.ConnectionID()).Int("subscriber", id).Msg("client: subscriber buffer full, frame dropped")
		}
	}
}

func (c *Conn) replaceRoster(payload json.RawMessage) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("decode roster: %w", err)
	}
	if m == nil {
		m = make(map[string]json.RawMessage)
	}
	c.mu.Lock()
	c.presences = m
	c.mu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// transport.Room
// ---------------------------------------------------------------------------

// Publish sends an event frame. The server stamps the connection.
func (c *Conn) Publish(ctx context.Context, f transport.Frame) error {
	return c.send(ctx, transport.Frame{Kind: f.Kind, Payload: f.Payload})
}

func (c *Conn) Subscribe(ctx context.Context) (<-chan transport.Frame, func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, fmt.Errorf("client.Conn.Subscribe: %w", transport.ErrClosed)
	}
	id := c.nextID
	c.nextID++
	ch := make(chan transport.Frame, subscriberBuffer)
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
		}
		cleanup()
	}()

	return ch, cleanup, nil
}

// SetPresence sends the local presence. The server files it under this
// connection's ID, so connID is ignored.
func (c *Conn) SetPresence(ctx context.Context, _ string, payload json.RawMessage) error {
	return c.send(ctx, transport.Frame{Kind: transport.FramePresence, Payload: payload})
}

// ClearPresence asks the server to withdraw this connection's presence.
func (c *Conn) ClearPresence(ctx context.Context, _ string) error {
	return c.send(ctx, transport.Frame{Kind: transport.FrameLeave})
}

// Presences returns the roster as last seen on this connection.
func (c *Conn) Presences(_ context.Context) (map[string]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]json.RawMessage, len(c.presences))
	for k, v := range c.presences {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out, nil
}

func (c *Conn) send(ctx context.Context, f transport.Frame) error {
	select {
	case <-c.done:
		return fmt.Errorf("client.Conn: %w", transport.ErrClosed)
	default:
	}
	if err := wsjson.Write(ctx, c.ws, f); err != nil {
		return fmt.Errorf("client.Conn: write %s: %w", f.Kind, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// REST
// ---------------------------------------------------------------------------

// FetchBoard reads the canonical board snapshot.
func FetchBoard(ctx context.Context, baseURL, boardID, token string) (*domain.BoardSnapshot, error) {
	u := strings.TrimRight(baseURL, "/") + "/api/v1/boards/" + url.PathEscape(boardID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("client.FetchBoard: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client.FetchBoard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client.FetchBoard: %w", statusError(resp.StatusCode, nil))
	}

	var snap domain.BoardSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("client.FetchBoard: decode: %w", err)
	}
	return &snap, nil
}

func roomURL(baseURL, boardID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/boards/" + url.PathEscape(boardID)
	return u.String(), nil
}

func statusError(code int, cause error) error {
	var sentinel error
	switch code {
	case http.StatusUnauthorized:
		sentinel = domain.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = domain.ErrForbidden
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	default:
		sentinel = fmt.Errorf("unexpected status %d", code)
	}
	if cause != nil {
		return fmt.Errorf("%w: %w", sentinel, cause)
	}
	return sentinel
}
