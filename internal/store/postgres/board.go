package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/kanbansync/internal/domain"
)

type BoardRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool, now: time.Now}
}

// Snapshot reads a board with its open lists and cards, each ordered by
// position. The three reads share a repeatable-read transaction so a
// concurrent move cannot show a card in two lists.
func (r *BoardRepo) Snapshot(ctx context.Context, boardID string) (*domain.BoardSnapshot, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("boardRepo.Snapshot: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var b domain.Board
	err = tx.QueryRow(ctx,
		`SELECT id, title, description, background, updated_at
		 FROM boards WHERE id = $1 AND archived_at IS NULL`,
		boardID,
	).Scan(&b.ID, &b.Title, &b.Description, &b.Background, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.Snapshot: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.Snapshot: board: %w", err)
	}

	lists, err := queryLists(ctx, tx, boardID)
	if err != nil {
		return nil, err
	}

	cards, err := queryCards(ctx, tx, boardID)
	if err != nil {
		return nil, err
	}

	return &domain.BoardSnapshot{
		Board:     &b,
		Lists:     assemble(lists, cards),
		FetchedAt: r.now().UTC(),
	}, nil
}

func queryLists(ctx context.Context, tx pgx.Tx, boardID string) ([]*domain.List, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, board_id, title, position
		 FROM lists WHERE board_id = $1 AND archived_at IS NULL
		 ORDER BY position, id`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.Snapshot: lists: %w", err)
	}
	defer rows.Close()

	var lists []*domain.List
	for rows.Next() {
		var l domain.List
		if err := rows.Scan(&l.ID, &l.BoardID, &l.Title, &l.Position); err != nil {
			return nil, fmt.Errorf("boardRepo.Snapshot: scan list: %w", err)
		}
		lists = append(lists, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.Snapshot: lists: %w", err)
	}

	return lists, nil
}

func queryCards(ctx context.Context, tx pgx.Tx, boardID string) ([]*domain.Card, error) {
	rows, err := tx.Query(ctx,
		`SELECT c.id, c.list_id, c.title, c.description, c.position, c.due_at
		 FROM cards c
		 JOIN lists l ON l.id = c.list_id
		 WHERE l.board_id = $1 AND l.archived_at IS NULL AND c.archived_at IS NULL
		 ORDER BY c.list_id, c.position, c.id`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.Snapshot: cards: %w", err)
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.ListID, &c.Title, &c.Description, &c.Position, &c.DueAt); err != nil {
			return nil, fmt.Errorf("boardRepo.Snapshot: scan card: %w", err)
		}
		cards = append(cards, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.Snapshot: cards: %w", err)
	}

	return cards, nil
}

// assemble attaches cards to their lists, keeping the incoming order of
// both. Cards whose list is not present are dropped. Every list gets a
// non-nil Cards slice.
func assemble(lists []*domain.List, cards []*domain.Card) []*domain.List {
	byID := make(map[string]*domain.List, len(lists))
	for _, l := range lists {
		l.Cards = make([]*domain.Card, 0)
		byID[l.ID] = l
	}
	for _, c := range cards {
		if l, ok := byID[c.ListID]; ok {
			l.Cards = append(l.Cards, c)
		}
	}
	if lists == nil {
		return make([]*domain.List, 0)
	}
	return lists
}
