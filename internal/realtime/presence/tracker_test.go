package presence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/kanbansync/internal/domain"
	"github.com/gosuda/kanbansync/internal/realtime/presence"
)

// recorder captures every published presence.
type recorder struct {
	mu        sync.Mutex
	published []presence.Presence
	err       error
}

func (r *recorder) PublishPresence(_ context.Context, p presence.Presence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, p)
	return r.err
}

func (r *recorder) all() []presence.Presence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]presence.Presence(nil), r.published...)
}

// last returns the most recent publication, or false if none happened yet.
func (r *recorder) last() (presence.Presence, bool) {
	all := r.all()
	if len(all) == 0 {
		return presence.Presence{}, false
	}
	return all[len(all)-1], true
}

// eventually waits until the most recent publication satisfies cond.
func (r *recorder) eventually(t *testing.T, cond func(presence.Presence) bool) presence.Presence {
	t.Helper()
	var got presence.Presence
	require.Eventually(t, func() bool {
		p, ok := r.last()
		if !ok || !cond(p) {
			return false
		}
		got = p
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

// newTracker creates a tracker whose sender runs for the rest of the test.
func newTracker(t *testing.T, pub presence.Publisher) *presence.Tracker {
	t.Helper()
	tr := presence.NewTracker(presence.Presence{
		ConnectionID: "conn-1",
		User:         domain.UserRef{ID: "u1", Name: "Ada"},
	}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return tr
}

func TestTracker_SettersPublishFullPresence(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	tr := newTracker(t, rec)

	tr.SetCursor(10, 20)
	tr.SetDragging(presence.DragCard, "c1")
	tr.SetEditing("c2")

	last := rec.eventually(t, func(p presence.Presence) bool { return p.EditingCardID == "c2" })
	assert.Equal(t, "conn-1", last.ConnectionID)
	assert.Equal(t, "u1", last.User.ID)
	require.NotNil(t, last.Cursor)
	assert.Equal(t, presence.Cursor{X: 10, Y: 20}, *last.Cursor)
	assert.Equal(t, "c1", last.DraggingCardID)
	assert.LessOrEqual(t, len(rec.all()), 3, "rapid changes may coalesce but never multiply")
}

func TestTracker_NothingPublishedWithoutRun(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	tr := presence.NewTracker(presence.Presence{ConnectionID: "conn-1"}, rec)
	tr.SetCursor(1, 1)

	assert.Empty(t, rec.all())
	require.NotNil(t, tr.Current().Cursor)
}

func TestTracker_CursorOverwriteIsIdempotent(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	tr := newTracker(t, rec)

	tr.SetCursor(1, 1)
	tr.SetCursor(5, 7)

	cur := tr.Current()
	require.NotNil(t, cur.Cursor)
	assert.Equal(t, presence.Cursor{X: 5, Y: 7}, *cur.Cursor)
	rec.eventually(t, func(p presence.Presence) bool {
		return p.Cursor != nil && *p.Cursor == presence.Cursor{X: 5, Y: 7}
	})
}

func TestTracker_ClearCursor(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	tr := newTracker(t, rec)

	tr.SetCursor(3, 4)
	rec.eventually(t, func(p presence.Presence) bool { return p.Cursor != nil })
	tr.ClearCursor()

	assert.Nil(t, tr.Current().Cursor)
	rec.eventually(t, func(p presence.Presence) bool { return p.Cursor == nil })
}

// blockingPublisher stalls every publish until release is closed.
type blockingPublisher struct {
	recorder
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPublisher) PublishPresence(ctx context.Context, p presence.Presence) error {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.recorder.PublishPresence(ctx, p)
}

func TestTracker_SettersDoNotWaitForPublisher(t *testing.T) {
	t.Parallel()

	pub := &blockingPublisher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	tr := newTracker(t, pub)

	tr.Announce()
	select {
	case <-pub.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("sender never started publishing")
	}

	start := time.Now()
	for i := 0; i < 50; i++ {
		tr.SetCursor(float64(i), float64(i))
	}
	tr.SetDragging(presence.DragCard, "c9")
	assert.Less(t, time.Since(start), 100*time.Millisecond, "setters must not block on a stalled publisher")
	assert.Equal(t, "c9", tr.Current().DraggingCardID)

	close(pub.release)

	last := pub.eventually(t, func(p presence.Presence) bool { return p.DraggingCardID == "c9" })
	require.NotNil(t, last.Cursor)
	assert.Equal(t, presence.Cursor{X: 49, Y: 49}, *last.Cursor)
	assert.LessOrEqual(t, len(pub.all()), 3, "the backlog collapses to the latest state")
}

func TestTracker_DragSlotsAreIndependent(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, &recorder{})

	tr.SetDragging(presence.DragCard, "c1")
	tr.SetDragging(presence.DragList, "L1")
	cur := tr.Current()
	assert.Equal(t, "c1", cur.DraggingCardID)
	assert.Equal(t, "L1", cur.DraggingListID)

	tr.SetDragging(presence.DragCard, "")
	cur = tr.Current()
	assert.Empty(t, cur.DraggingCardID)
	assert.Equal(t, "L1", cur.DraggingListID)
}

func TestTracker_PublisherErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	rec := &recorder{err: errors.New("transport down")}
	tr := newTracker(t, rec)

	assert.NotPanics(t, func() { tr.SetEditing("c1") })
	assert.Equal(t, "c1", tr.Current().EditingCardID, "local state still updates")
	rec.eventually(t, func(p presence.Presence) bool { return p.EditingCardID == "c1" })

	tr.SetEditing("c2")
	rec.eventually(t, func(p presence.Presence) bool { return p.EditingCardID == "c2" })
}

func TestTracker_NilPublisher(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, nil)
	tr.SetCursor(1, 2)
	require.NotNil(t, tr.Current().Cursor)
}

func TestTracker_CurrentIsACopy(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, &recorder{})
	tr.SetCursor(1, 2)

	cur := tr.Current()
	cur.Cursor.X = 99

	assert.Equal(t, 1.0, tr.Current().Cursor.X)
}

func TestFollowPointer(t *testing.T) {
	t.Parallel()

	t.Run("applies moves and clears on leave", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		tr := newTracker(t, rec)
		events := make(chan presence.PointerEvent)
		done := make(chan struct{})

		go func() {
			presence.FollowPointer(context.Background(), tr, events)
			close(done)
		}()

		events <- presence.PointerEvent{X: 1, Y: 2}
		events <- presence.PointerEvent{X: 3, Y: 4}
		require.Eventually(t, func() bool {
			c := tr.Current().Cursor
			return c != nil && *c == presence.Cursor{X: 3, Y: 4}
		}, 2*time.Second, 5*time.Millisecond)
		rec.eventually(t, func(p presence.Presence) bool { return p.Cursor != nil })

		events <- presence.PointerEvent{Leave: true}
		close(events)
		<-done

		assert.Nil(t, tr.Current().Cursor)
		rec.eventually(t, func(p presence.Presence) bool { return p.Cursor == nil })
	})

	t.Run("cancellation releases cursor", func(t *testing.T) {
		t.Parallel()

		tr := newTracker(t, &recorder{})
		events := make(chan presence.PointerEvent)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			presence.FollowPointer(ctx, tr, events)
			close(done)
		}()

		events <- presence.PointerEvent{X: 5, Y: 5}
		cancel()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("FollowPointer did not return after cancel")
		}
		assert.Nil(t, tr.Current().Cursor)
	})
}

func TestPresence_EncodeDecode(t *testing.T) {
	t.Parallel()

	p := presence.Presence{
		ConnectionID:   "conn-1",
		User:           domain.UserRef{ID: "u1"},
		Cursor:         &presence.Cursor{X: 1, Y: 2},
		DraggingCardID: "c1",
	}
	data, err := presence.Encode(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"draggingCardId":"c1"`)
	assert.NotContains(t, string(data), "editingCardId")

	got, err := presence.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = presence.Decode([]byte("nope"))
	assert.Error(t, err)
}
