package presence

import "context"

// PointerEvent is a pointer move, or a pointer leaving the board when Leave
// is set.
type PointerEvent struct {
	X, Y  float64
	Leave bool
}

// FollowPointer feeds pointer events into t until ctx is cancelled or events
// is closed. It blocks; run it in its own goroutine for the lifetime of the
// board view. The cursor is always cleared on return.
func FollowPointer(ctx context.Context, t *Tracker, events <-chan PointerEvent) {
	defer t.ClearCursor()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Leave {
				t.ClearCursor()
				continue
			}
			t.SetCursor(ev.X, ev.Y)
		}
	}
}
