package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanbansync/internal/realtime/transport"
)

// PubSub is a transport.Broker backed by Redis pub/sub for frames. Each
// connection's presence is its own key with the presence TTL, listed in a
// per-board index set; a presence that stops being rewritten expires on its
// own and is pruned from the index the next time the roster is read.
type PubSub struct {
	client      *redis.Client
	presenceTTL time.Duration
}

func New(ctx context.Context, addr, password string, db int, presenceTTL time.Duration) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client, presenceTTL: presenceTTL}, nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// Room returns the board room. Rooms are stateless handles and cheap to
// create.
func (ps *PubSub) Room(boardID string) transport.Room {
	return &room{ps: ps, boardID: boardID}
}

// RoomChannel returns the Redis channel name for a board room.
func RoomChannel(boardID string) string {
	return "board:" + boardID
}

// PresenceIndexKey returns the Redis set listing the connections that have
// a presence on a board.
func PresenceIndexKey(boardID string) string {
	return "presence:" + boardID
}

// PresenceKey returns the Redis key holding one connection's presence.
func PresenceKey(boardID, connID string) string {
	return "presence:" + boardID + ":" + connID
}

// ---------------------------------------------------------------------------
// Room
// ---------------------------------------------------------------------------

type room struct {
	ps      *PubSub
	boardID string
}

func (r *room) Publish(ctx context.Context, f transport.Frame) error {
	data, err := transport.EncodeFrame(f)
	if err != nil {
		return fmt.Errorf("redis.room.Publish: %w", err)
	}
	if err := r.ps.Publish(ctx, RoomChannel(r.boardID), data); err != nil {
		return fmt.Errorf("redis.room.Publish: %w", err)
	}
	return nil
}

func (r *room) Subscribe(ctx context.Context) (<-chan transport.Frame, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	raw, cleanup, err := r.ps.Subscribe(ctx, RoomChannel(r.boardID))
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("redis.room.Subscribe: %w", err)
	}

	out := make(chan transport.Frame, 64)
	go func() {
		defer close(out)
		for data := range raw {
			f, err := transport.DecodeFrame(data)
			if err != nil {
				log.Warn().Err(err).Str("board_id", r.boardID).Msg("redis: undecodable frame skipped")
				continue
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() {
		cancel()
		cleanup()
	}, nil
}

func (r *room) SetPresence(ctx context.Context, connID string, payload json.RawMessage) error {
	index := PresenceIndexKey(r.boardID)

	pipe := r.ps.client.TxPipeline()
	pipe.Set(ctx, PresenceKey(r.boardID, connID), []byte(payload), r.ps.presenceTTL)
	pipe.SAdd(ctx, index, connID)
	if r.ps.presenceTTL > 0 {
		pipe.Expire(ctx, index, r.ps.presenceTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis.room.SetPresence: %w", err)
	}

	return r.Publish(ctx, transport.Frame{Kind: transport.FramePresence, Connection: connID, Payload: payload})
}

func (r *room) ClearPresence(ctx context.Context, connID string) error {
	pipe := r.ps.client.TxPipeline()
	pipe.Del(ctx, PresenceKey(r.boardID, connID))
	removed := pipe.SRem(ctx, PresenceIndexKey(r.boardID), connID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis.room.ClearPresence: %w", err)
	}
	if removed.Val() == 0 {
		return nil
	}
	return r.Publish(ctx, transport.Frame{Kind: transport.FrameLeave, Connection: connID})
}

// Presences returns every live presence on the board. Index entries whose
// key has expired are removed and announced as leaves.
func (r *room) Presences(ctx context.Context) (map[string]json.RawMessage, error) {
	index := PresenceIndexKey(r.boardID)

	connIDs, err := r.ps.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.room.Presences: %w", err)
	}
	out := make(map[string]json.RawMessage, len(connIDs))
	if len(connIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(connIDs))
	for i, connID := range connIDs {
		keys[i] = PresenceKey(r.boardID, connID)
	}
	values, err := r.ps.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.room.Presences: %w", err)
	}

	for i, v := range values {
		connID := connIDs[i]
		if str, ok := v.(string); ok {
			out[connID] = json.RawMessage(str)
			continue
		}
		r.prune(ctx, connID)
	}
	return out, nil
}

// prune drops an expired connection from the index. Only the reader that
// actually removes it announces the leave.
func (r *room) prune(ctx context.Context, connID string) {
	n, err := r.ps.client.SRem(ctx, PresenceIndexKey(r.boardID), connID).Result()
	if err != nil {
		log.Warn().Err(err).Str("board_id", r.boardID).Str("connection_id", connID).Msg("redis: prune presence")
		return
	}
	if n == 0 {
		return
	}
	if err := r.Publish(ctx, transport.Frame{Kind: transport.FrameLeave, Connection: connID}); err != nil {
		log.Warn().Err(err).Str("board_id", r.boardID).Str("connection_id", connID).Msg("redis: announce expired presence")
	}
}
