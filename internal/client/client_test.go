package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/kanbansync/internal/api/ws"
	"github.com/gosuda/kanbansync/internal/auth"
	"github.com/gosuda/kanbansync/internal/client"
	"github.com/gosuda/kanbansync/internal/domain"
	"github.com/gosuda/kanbansync/internal/realtime"
	"github.com/gosuda/kanbansync/internal/realtime/presence"
	"github.com/gosuda/kanbansync/internal/realtime/transport"
	"github.com/gosuda/kanbansync/internal/server/middleware"
)

const testSecret = "client-test-secret-0123456789abcdefgh"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	hub := ws.NewHub(transport.NewMemoryBroker(), ws.Options{PresenceRate: 1000, PresenceBurst: 1000})

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(testSecret))
		r.Get("/ws/boards/{boardID}", hub.ServeBoard)
		r.Get("/api/v1/boards/{boardID}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "boardID") != "b1" {
				http.Error(w, `{"title":"Not Found","status":404}`, http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(domain.BoardSnapshot{
				Board: &domain.Board{ID: "b1", Title: "Roadmap"},
				Lists: []*domain.List{{ID: "L2", BoardID: "b1", Cards: []*domain.Card{{ID: "x0"}, {ID: "x1"}, {ID: "c7"}}}},
			})
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, domain.UserRef{ID: userID}, "", time.Minute)
	require.NoError(t, err)
	return tok
}

func dial(t *testing.T, srv *httptest.Server, userID string) *client.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := client.Dial(ctx, srv.URL, "b1", token(t, userID))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func join(t *testing.T, conn *client.Conn, userID string, opts ...realtime.Option) *realtime.Session {
	t.Helper()
	s, err := realtime.Join(context.Background(), conn, realtime.Participant{
		BoardID:      "b1",
		ConnectionID: conn.ConnectionID(),
		User:         domain.UserRef{ID: userID},
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestDial(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	t.Run("welcome", func(t *testing.T) {
		t.Parallel()

		conn := dial(t, srv, "u1")
		assert.NotEmpty(t, conn.ConnectionID())
		assert.Equal(t, "u1", conn.UserID())
	})

	t.Run("bad token", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := client.Dial(ctx, srv.URL, "b1", "garbage")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("bad scheme", func(t *testing.T) {
		t.Parallel()

		_, err := client.Dial(context.Background(), "ftp://example.com", "b1", "tok")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported scheme")
	})
}

func TestConn_RosterSeedsLateJoiner(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	a := dial(t, srv, "u1")
	sa := join(t, a, "u1")
	sa.SetDragging(presence.DragCard, "c1")

	b := dial(t, srv, "u2")

	assert.Eventually(t, func() bool {
		ps, err := b.Presences(context.Background())
		if err != nil {
			return false
		}
		raw, ok := ps[a.ConnectionID()]
		if !ok {
			return false
		}
		p, err := presence.Decode(raw)
		return err == nil && p.DraggingCardID == "c1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionsOverWebSocket(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	var refreshes atomic.Int32
	a := dial(t, srv, "A")
	b := dial(t, srv, "B")

	sa := join(t, a, "A")
	sb := join(t, b, "B", realtime.WithBoardUpdate(func() { refreshes.Add(1) }))

	t.Run("field update lands in the remote overlay only", func(t *testing.T) {
		sa.BroadcastCardUpdated("c1", "title", "X")

		assert.Eventually(t, func() bool {
			v, ok := sb.CardOptimisticValue("c1", "title")
			return ok && v == "X"
		}, 2*time.Second, 10*time.Millisecond)

		_, ok := sa.CardOptimisticValue("c1", "title")
		assert.False(t, ok)
	})

	t.Run("drag is visible to the other participant", func(t *testing.T) {
		sa.SetDragging(presence.DragCard, "c7")

		assert.Eventually(t, func() bool { return sb.IsDraggingCardByOthers("c7") }, 2*time.Second, 10*time.Millisecond)
		assert.False(t, sa.IsDraggingCardByOthers("c7"))

		who, ok := sb.WhoIsDragging("c7")
		require.True(t, ok)
		assert.Equal(t, "A", who.User.ID)
		assert.Equal(t, a.ConnectionID(), who.ConnectionID)
	})

	t.Run("structural move triggers refetch", func(t *testing.T) {
		sa.SetDragging(presence.DragCard, "")
		sa.BroadcastCardMoved("c7", "L1", "L2", 0, 2)

		assert.Eventually(t, func() bool { return refreshes.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Eventually(t, func() bool { return !sb.IsDraggingCardByOthers("c7") }, 2*time.Second, 10*time.Millisecond)

		mark := sb.OverlayMark()
		snap, err := client.FetchBoard(context.Background(), srv.URL, "b1", token(t, "B"))
		require.NoError(t, err)
		sb.CanonicalRefreshed(mark)

		listID, idx, ok := snap.CardIndex("c7")
		require.True(t, ok)
		assert.Equal(t, "L2", listID)
		assert.Equal(t, 2, idx)
		assert.Equal(t, 0, sb.PendingOverlayEntries())
	})

	t.Run("closing a session withdraws its presence", func(t *testing.T) {
		require.Len(t, sb.OtherUsers(), 1)
		sa.Close()

		assert.Eventually(t, func() bool { return len(sb.OtherUsers()) == 0 }, 2*time.Second, 10*time.Millisecond)
	})
}

func TestFetchBoard(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	t.Run("ok", func(t *testing.T) {
		t.Parallel()

		snap, err := client.FetchBoard(context.Background(), srv.URL+"/", "b1", token(t, "u1"))
		require.NoError(t, err)
		require.NotNil(t, snap.Board)
		assert.Equal(t, "Roadmap", snap.Board.Title)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		_, err := client.FetchBoard(context.Background(), srv.URL, "nope", token(t, "u1"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unauthorized", func(t *testing.T) {
		t.Parallel()

		_, err := client.FetchBoard(context.Background(), srv.URL, "b1", "garbage")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestConn_ClosedOperations(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	conn := dial(t, srv, "u1")
	require.NoError(t, conn.Close())

	<-conn.Done()
	err := conn.Publish(context.Background(), transport.Frame{Kind: transport.FrameEvent, Payload: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, transport.ErrClosed)

	_, _, err = conn.Subscribe(context.Background())
	assert.ErrorIs(t, err, transport.ErrClosed)

	assert.NoError(t, conn.Close())
}
