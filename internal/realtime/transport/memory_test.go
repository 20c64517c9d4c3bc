package transport_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/kanbansync/internal/realtime/transport"
)

func receive(t *testing.T, ch <-chan transport.Frame) transport.Frame {
	t.Helper()
	select {
	case f, ok := <-ch:
		require.True(t, ok, "channel closed")
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return transport.Frame{}
	}
}

func assertSilent(t *testing.T, ch <-chan transport.Frame) {
	t.Helper()
	select {
	case f := <-ch:
		t.Fatalf("unexpected frame %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := transport.NewMemoryBroker()
	room := b.Room("board-1")

	a, cleanupA, err := room.Subscribe(ctx)
	require.NoError(t, err)
	defer cleanupA()
	c, cleanupC, err := room.Subscribe(ctx)
	require.NoError(t, err)
	defer cleanupC()

	frame := transport.Frame{Kind: transport.FrameEvent, Payload: json.RawMessage(`{"type":"CARD_MOVED"}`)}
	require.NoError(t, room.Publish(ctx, frame))

	assert.Equal(t, frame, receive(t, a))
	assert.Equal(t, frame, receive(t, c))
}

func TestMemoryBroker_RoomIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := transport.NewMemoryBroker()

	other, cleanup, err := b.Room("board-2").Subscribe(ctx)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, b.Room("board-1").Publish(ctx, transport.Frame{Kind: transport.FrameEvent}))
	require.NoError(t, b.Room("board-1").SetPresence(ctx, "conn-1", json.RawMessage(`{}`)))

	assertSilent(t, other)

	ps, err := b.Room("board-2").Presences(ctx)
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestMemoryBroker_SameRoomInstance(t *testing.T) {
	t.Parallel()

	b := transport.NewMemoryBroker()
	assert.Same(t, b.Room("x"), b.Room("x"))
}

func TestMemoryBroker_Presence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	room := transport.NewMemoryBroker().Room("board-1")

	ch, cleanup, err := room.Subscribe(ctx)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, room.SetPresence(ctx, "conn-1", json.RawMessage(`{"cursor":null}`)))
	f := receive(t, ch)
	assert.Equal(t, transport.FramePresence, f.Kind)
	assert.Equal(t, "conn-1", f.Connection)

	// Overwrite keeps a single entry.
	require.NoError(t, room.SetPresence(ctx, "conn-1", json.RawMessage(`{"cursor":{"x":1,"y":2}}`)))
	receive(t, ch)

	ps, err := room.Presences(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.JSONEq(t, `{"cursor":{"x":1,"y":2}}`, string(ps["conn-1"]))

	require.NoError(t, room.ClearPresence(ctx, "conn-1"))
	f = receive(t, ch)
	assert.Equal(t, transport.FrameLeave, f.Kind)
	assert.Equal(t, "conn-1", f.Connection)

	// Clearing an absent connection is a silent no-op.
	require.NoError(t, room.ClearPresence(ctx, "conn-1"))
	assertSilent(t, ch)

	ps, err = room.Presences(ctx)
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestMemoryBroker_UnsubscribeOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	room := transport.NewMemoryBroker().Room("board-1")

	ch, cleanup, err := room.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Cleanup after cancel is safe, and publishing to a room with no
	// subscribers is fine.
	cleanup()
	require.NoError(t, room.Publish(context.Background(), transport.Frame{Kind: transport.FrameEvent}))
}

func TestMemoryBroker_SlowSubscriberDropsFrames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	room := transport.NewMemoryBroker().Room("board-1")

	ch, cleanup, err := room.Subscribe(ctx)
	require.NoError(t, err)
	defer cleanup()

	for i := 0; i < 200; i++ {
		require.NoError(t, room.Publish(ctx, transport.Frame{Kind: transport.FrameEvent}))
	}
	assert.Equal(t, 64, len(ch))
}

func TestFrameCodec(t *testing.T) {
	t.Parallel()

	f := transport.Frame{Kind: transport.FramePresence, Connection: "c1", Payload: json.RawMessage(`{"a":1}`)}
	data, err := transport.EncodeFrame(f)
	require.NoError(t, err)

	got, err := transport.DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, f.Kind, got.Kind)
	assert.Equal(t, f.Connection, got.Connection)
	assert.JSONEq(t, string(f.Payload), string(got.Payload))

	_, err = transport.DecodeFrame([]byte("garbage"))
	assert.Error(t, err)
}

func TestRosterFrame(t *testing.T) {
	t.Parallel()

	f, err := transport.RosterFrame(nil)
	require.NoError(t, err)
	assert.Equal(t, transport.FrameRoster, f.Kind)
	assert.JSONEq(t, `{}`, string(f.Payload))

	f, err = transport.RosterFrame(map[string]json.RawMessage{"c1": json.RawMessage(`{"x":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"c1":{"x":1}}`, string(f.Payload))
}
