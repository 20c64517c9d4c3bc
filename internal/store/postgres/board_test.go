package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/kanbansync/internal/domain"
)

func TestAssemble(t *testing.T) {
	t.Parallel()

	t.Run("cards keep query order within their list", func(t *testing.T) {
		t.Parallel()

		lists := []*domain.List{
			{ID: "L1", Position: 0},
			{ID: "L2", Position: 1},
		}
		cards := []*domain.Card{
			{ID: "a", ListID: "L1", Position: 0},
			{ID: "x0", ListID: "L2", Position: 0},
			{ID: "x1", ListID: "L2", Position: 1},
			{ID: "c7", ListID: "L2", Position: 2},
		}

		got := assemble(lists, cards)
		require.Len(t, got, 2)
		assert.Len(t, got[0].Cards, 1)
		require.Len(t, got[1].Cards, 3)

		snap := &domain.BoardSnapshot{Lists: got}
		listID, idx, ok := snap.CardIndex("c7")
		require.True(t, ok)
		assert.Equal(t, "L2", listID)
		assert.Equal(t, 2, idx)
	})

	t.Run("orphan cards are dropped", func(t *testing.T) {
		t.Parallel()

		got := assemble(
			[]*domain.List{{ID: "L1"}},
			[]*domain.Card{{ID: "gone", ListID: "archived-list"}},
		)
		require.Len(t, got, 1)
		assert.NotNil(t, got[0].Cards)
		assert.Empty(t, got[0].Cards)
	})

	t.Run("empty board", func(t *testing.T) {
		t.Parallel()

		got := assemble(nil, nil)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}
