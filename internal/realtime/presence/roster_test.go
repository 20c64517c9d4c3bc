package presence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/kanbansync/internal/domain"
	"github.com/gosuda/kanbansync/internal/realtime/presence"
)

func remote(conn, user string) presence.Presence {
	return presence.Presence{ConnectionID: conn, User: domain.UserRef{ID: user}}
}

func TestRoster_ExcludesSelf(t *testing.T) {
	t.Parallel()

	r := presence.NewRoster("me")

	self := remote("me", "u1")
	self.DraggingCardID = "c1"
	assert.False(t, r.Upsert(self))
	assert.False(t, r.Upsert(remote("", "ghost")))
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.IsDraggingCardByOthers("c1"), "own drag is not someone else's")
}

func TestRoster_DragArbitration(t *testing.T) {
	t.Parallel()

	r := presence.NewRoster("me")

	u := remote("conn-u", "U")
	u.DraggingCardID = "c1"
	u.DraggingListID = "L9"
	require.True(t, r.Upsert(u))

	assert.True(t, r.IsDraggingCardByOthers("c1"))
	assert.False(t, r.IsDraggingCardByOthers("c2"))
	assert.True(t, r.IsDraggingListByOthers("L9"))
	assert.False(t, r.IsDraggingListByOthers("c1"), "card drag does not lock a list with the same id")
	assert.False(t, r.IsDraggingCardByOthers(""), "empty id never matches")

	who, ok := r.WhoIsDragging("c1")
	require.True(t, ok)
	assert.Equal(t, "U", who.User.ID)

	who, ok = r.WhoIsDragging("L9")
	require.True(t, ok)
	assert.Equal(t, "conn-u", who.ConnectionID)

	_, ok = r.WhoIsDragging("nobody")
	assert.False(t, ok)

	// Drag end.
	u.DraggingCardID = ""
	r.Upsert(u)
	assert.False(t, r.IsDraggingCardByOthers("c1"))
}

func TestRoster_EditArbitration(t *testing.T) {
	t.Parallel()

	r := presence.NewRoster("me")
	v := remote("conn-v", "V")
	v.EditingCardID = "c3"
	r.Upsert(v)

	assert.True(t, r.IsEditingByOthers("c3"))
	assert.False(t, r.IsEditingByOthers("c4"))

	who, ok := r.WhoIsEditing("c3")
	require.True(t, ok)
	assert.Equal(t, "V", who.User.ID)

	r.Remove("conn-v")
	assert.False(t, r.IsEditingByOthers("c3"))
}

func TestRoster_WhoIsDraggingIsDeterministic(t *testing.T) {
	t.Parallel()

	r := presence.NewRoster("me")
	for _, conn := range []string{"conn-c", "conn-a", "conn-b"} {
		p := remote(conn, conn)
		p.DraggingCardID = "c1"
		r.Upsert(p)
	}

	for i := 0; i < 10; i++ {
		who, ok := r.WhoIsDragging("c1")
		require.True(t, ok)
		assert.Equal(t, "conn-a", who.ConnectionID)
	}
}

func TestRoster_OthersSortedAndReplace(t *testing.T) {
	t.Parallel()

	r := presence.NewRoster("me")
	r.Upsert(remote("b", "u2"))
	r.Upsert(remote("a", "u1"))

	others := r.Others()
	require.Len(t, others, 2)
	assert.Equal(t, "a", others[0].ConnectionID)
	assert.Equal(t, "b", others[1].ConnectionID)

	r.Replace([]presence.Presence{remote("z", "u3"), remote("me", "u0")})
	others = r.Others()
	require.Len(t, others, 1)
	assert.Equal(t, "z", others[0].ConnectionID)
}

func TestRoster_SameUserOtherTabCounts(t *testing.T) {
	t.Parallel()

	// Arbitration is per connection, so a second tab of the same user
	// shows up as "someone else".
	r := presence.NewRoster("tab-1")
	other := remote("tab-2", "u1")
	other.DraggingCardID = "c1"
	r.Upsert(other)

	assert.True(t, r.IsDraggingCardByOthers("c1"))
}
