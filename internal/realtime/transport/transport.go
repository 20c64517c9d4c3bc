// Package transport defines the board-scoped room abstraction the realtime
// layer publishes to and subscribes from.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed room connection.
var ErrClosed = errors.New("transport: closed")

// FrameKind tags a frame on the room channel.
type FrameKind string

const (
	// FrameEvent carries a broadcast event.
	FrameEvent FrameKind = "event"
	// FramePresence carries the full presence of one connection.
	FramePresence FrameKind = "presence"
	// FrameLeave announces that a connection's presence is gone.
	FrameLeave FrameKind = "leave"
	// FrameRoster carries every presence in the room, keyed by connection.
	FrameRoster FrameKind = "roster"
	// FrameWelcome tells a WebSocket client its connection ID.
	FrameWelcome FrameKind = "welcome"
)

// Frame is the unit exchanged inside a room.
type Frame struct {
	Kind       FrameKind       `json:"kind"`
	Connection string          `json:"connection,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Welcome is the payload of a FrameWelcome.
type Welcome struct {
	Connection string `json:"connection"`
	UserID     string `json:"user_id"`
	BoardID    string `json:"board_id"`
}

// Room is one board's channel. Publishing is at-most-once with no ordering
// guarantee across publishers; implementations never retry.
type Room interface {
	Publish(ctx context.Context, f Frame) error
	// Subscribe delivers every frame published to the room after the call
	// returns. The channel is closed when ctx ends or cleanup is called.
	Subscribe(ctx context.Context) (<-chan Frame, func(), error)
	// SetPresence stores payload as the presence of connID and fans it out
	// as a FramePresence.
	SetPresence(ctx context.Context, connID string, payload json.RawMessage) error
	// ClearPresence removes connID and fans out a FrameLeave.
	ClearPresence(ctx context.Context, connID string) error
	// Presences returns every stored presence keyed by connection ID.
	Presences(ctx context.Context) (map[string]json.RawMessage, error)
}

// Broker hands out rooms by board ID. Frames never cross rooms.
type Broker interface {
	Room(boardID string) Room
}

// EncodeFrame serialises f.
func EncodeFrame(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("transport.EncodeFrame: %w", err)
	}
	return data, nil
}

// DecodeFrame parses a frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("transport.DecodeFrame: %w", err)
	}
	return f, nil
}

// RosterFrame builds a FrameRoster from a presence map.
func RosterFrame(presences map[string]json.RawMessage) (Frame, error) {
	if presences == nil {
		presences = map[string]json.RawMessage{}
	}
	data, err := json.Marshal(presences)
	if err != nil {
		return Frame{}, fmt.Errorf("transport.RosterFrame: %w", err)
	}
	return Frame{Kind: FrameRoster, Payload: data}, nil
}
