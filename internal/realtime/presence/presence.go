// Package presence tracks the ephemeral per-connection state of board
// participants: cursor position and what they are dragging or editing.
package presence

import (
	"encoding/json"
	"fmt"

	"github.com/gosuda/kanbansync/internal/domain"
)

// Cursor is a pointer position in board coordinates.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DragKind selects which drag slot SetDragging updates.
type DragKind string

const (
	DragCard DragKind = "card"
	DragList DragKind = "list"
)

// Presence is the state one connection shares with the room. Empty IDs mean
// "nothing"; a nil Cursor means the pointer is outside the board.
type Presence struct {
	ConnectionID   string         `json:"connectionId"`
	User           domain.UserRef `json:"user"`
	Cursor         *Cursor        `json:"cursor"`
	DraggingCardID string         `json:"draggingCardId,omitempty"`
	DraggingListID string         `json:"draggingListId,omitempty"`
	EditingCardID  string         `json:"editingCardId,omitempty"`
}

// Decode parses a presence payload.
func Decode(data []byte) (Presence, error) {
	var p Presence
	if err := json.Unmarshal(data, &p); err != nil {
		return Presence{}, fmt.Errorf("presence.Decode: %w", err)
	}
	return p, nil
}

// Encode serialises p.
func Encode(p Presence) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("presence.Encode: %w", err)
	}
	return data, nil
}

func (p Presence) clone() Presence {
	if p.Cursor != nil {
		c := *p.Cursor
		p.Cursor = &c
	}
	return p
}
