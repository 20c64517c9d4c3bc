package domain

import (
	"context"
	"time"
)

type Board struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Background  string    `json:"background"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type List struct {
	ID       string  `json:"id"`
	BoardID  string  `json:"board_id"`
	Title    string  `json:"title"`
	Position int     `json:"position"`
	Cards    []*Card `json:"cards"`
}

type Card struct {
	ID          string     `json:"id"`
	ListID      string     `json:"list_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Position    int        `json:"position"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}

// BoardSnapshot is the canonical, position-ordered state of a board as
// returned by the persistence layer. Archived lists and cards are excluded.
type BoardSnapshot struct {
	Board     *Board    `json:"board"`
	Lists     []*List   `json:"lists"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CardIndex returns the list ID and the zero-based index of cardID within it.
func (s *BoardSnapshot) CardIndex(cardID string) (listID string, index int, ok bool) {
	for _, l := range s.Lists {
		for i, c := range l.Cards {
			if c.ID == cardID {
				return l.ID, i, true
			}
		}
	}
	return "", -1, false
}

// BoardRepository reads canonical board state. Mutations are owned by the
// backend mutation layer and are not exposed here.
type BoardRepository interface {
	Snapshot(ctx context.Context, boardID string) (*BoardSnapshot, error)
}
