// Package realtime is the client side of a board room: it publishes local
// mutations and presence, and turns remote events into overlay patches or
// refresh signals.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanbansync/internal/domain"
	"github.com/gosuda/kanbansync/internal/realtime/event"
	"github.com/gosuda/kanbansync/internal/realtime/overlay"
	"github.com/gosuda/kanbansync/internal/realtime/presence"
	"github.com/gosuda/kanbansync/internal/realtime/transport"
)

const publishTimeout = 5 * time.Second

// Participant identifies the local end of a room connection.
type Participant struct {
	BoardID      string
	ConnectionID string
	User         domain.UserRef
}

// Outcome is the terminal state of one received event.
type Outcome uint8

const (
	// OutcomeEchoDiscarded: the event was published by the local user.
	OutcomeEchoDiscarded Outcome = iota + 1
	// OutcomeOverlayApplied: the event's fields were written to the overlay.
	OutcomeOverlayApplied
	// OutcomeRefreshTriggered: the board update callback was invoked.
	OutcomeRefreshTriggered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEchoDiscarded:
		return "echo-discarded"
	case OutcomeOverlayApplied:
		return "overlay-applied"
	case OutcomeRefreshTriggered:
		return "refresh-triggered"
	default:
		return "unknown"
	}
}

// Option configures a Session.
type Option func(*Session)

// WithBoardUpdate sets the callback invoked for FORCE_REFRESH events. It
// should take OverlayMark, refetch canonical board state and then call
// CanonicalRefreshed with that mark.
func WithBoardUpdate(fn func()) Option {
	return func(s *Session) { s.onBoardUpdate = fn }
}

// WithObserver sets a callback that sees every received event together with
// its outcome.
func WithObserver(fn func(event.Event, Outcome)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithClock overrides the clock used to timestamp published events.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is one participant's view of a board room. Frames are handled one
// at a time on a single goroutine and outgoing events and presence are sent
// from two more; accessors and publishers may be called from any goroutine
// and never wait on the transport.
type Session struct {
	room    transport.Room
	self    Participant
	overlay *overlay.Overlay
	roster  *presence.Roster
	tracker *presence.Tracker
	logger  zerolog.Logger

	onBoardUpdate func()
	observer      func(event.Event, Outcome)
	now           func() time.Time

	outMu   sync.Mutex
	outbox  []transport.Frame
	outWake chan struct{}

	stopSend    context.CancelFunc
	sendDone    chan struct{}
	trackerDone chan struct{}
	closing     atomic.Bool

	cancel    context.CancelFunc
	cleanup   func()
	done      chan struct{}
	closeOnce sync.Once
}

// Join subscribes to room, loads the current roster, announces the local
// presence and starts dispatching. It fails only if the subscription cannot
// be established.
func Join(ctx context.Context, room transport.Room, self Participant, opts ...Option) (*Session, error) {
	s := &Session{
		room:        room,
		self:        self,
		overlay:     overlay.New(),
		roster:      presence.NewRoster(self.ConnectionID),
		now:         time.Now,
		done:        make(chan struct{}),
		outWake:     make(chan struct{}, 1),
		sendDone:    make(chan struct{}),
		trackerDone: make(chan struct{}),
		logger: log.With().
			Str("board_id", self.BoardID).
			Str("connection_id", self.ConnectionID).
			Str("user_id", self.User.ID).
			Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	frames, cleanup, err := room.Subscribe(subCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("realtime.Join: %w", err)
	}
	s.cancel = cancel
	s.cleanup = cleanup

	if presences, pErr := room.Presences(ctx); pErr != nil {
		s.logger.Warn().Err(pErr).Msg("realtime: roster unavailable, starting empty")
	} else {
		s.replaceRoster(presences)
	}

	s.tracker = presence.NewTracker(presence.Presence{
		ConnectionID: self.ConnectionID,
		User:         self.User,
	}, presence.PublisherFunc(s.publishPresence))
	s.tracker.Announce()

	sendCtx, stopSend := context.WithCancel(context.Background())
	s.stopSend = stopSend
	go func() {
		defer close(s.trackerDone)
		s.tracker.Run(sendCtx)
	}()
	go s.sendLoop(sendCtx)
	go s.run(frames)

	return s, nil
}

// Close flushes queued events, withdraws the local presence, ends the
// subscription and waits for every session goroutine to exit. It is safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.stopSend()
		<-s.trackerDone
		<-s.sendDone

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.room.ClearPresence(ctx, s.self.ConnectionID); err != nil {
			s.logger.Debug().Err(err).Msg("realtime: clear presence")
		}

		s.cancel()
		s.cleanup()
		<-s.done
	})
}

// Done is closed once the subscription ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Self returns the local participant.
func (s *Session) Self() Participant { return s.self }

func (s *Session) run(frames <-chan transport.Frame) {
	defer close(s.done)
	for f := range frames {
		s.handleFrame(f)
	}
}

func (s *Session) handleFrame(f transport.Frame) {
	switch f.Kind {
	case transport.FrameEvent:
		e, err := event.Decode(f.Payload)
		if err != nil {
			s.logger.Warn().Err(err).Msg("realtime: undecodable event skipped")
			return
		}
		s.dispatch(e)

	case transport.FramePresence:
		p, err := presence.Decode(f.Payload)
		if err != nil {
			s.logger.Warn().Err(err).Msg("realtime: undecodable presence skipped")
			return
		}
		if f.Connection != "" {
			p.ConnectionID = f.Connection
		}
		s.roster.Upsert(p)

	case transport.FrameLeave:
		s.roster.Remove(f.Connection)

	case transport.FrameRoster:
		var presences map[string]json.RawMessage
		if err := json.Unmarshal(f.Payload, &presences); err != nil {
			s.logger.Warn().Err(err).Msg("realtime: undecodable roster skipped")
			return
		}
		s.replaceRoster(presences)

	case transport.FrameWelcome:
		// Consumed by the WebSocket client before the session starts.
	}
}

// dispatch runs one event through the echo filter and the classifier.
// Every event that passes the filter ends in exactly one of overlay-applied
// or refresh-triggered.
func (s *Session) dispatch(e event.Event) Outcome {
	h := e.Header()

	var outcome Outcome
	if h.UserID == s.self.User.ID {
		outcome = OutcomeEchoDiscarded
	} else {
		route := event.Resolve(e)
		switch route.Disposition {
		case event.Patchable:
			for _, p := range route.Patches {
				s.overlay.Apply(p.Namespace, p.EntityID, p.Field, p.Value)
			}
			outcome = OutcomeOverlayApplied
		case event.ForceRefresh:
			if s.onBoardUpdate != nil {
				s.onBoardUpdate()
			}
			outcome = OutcomeRefreshTriggered
		}
	}

	s.logger.Debug().
		Str("event_type", string(h.Type)).
		Str("from_user", h.UserID).
		Stringer("outcome", outcome).
		Msg("realtime: event handled")

	if s.observer != nil {
		s.observer(e, outcome)
	}
	return outcome
}

func (s *Session) replaceRoster(raw map[string]json.RawMessage) {
	ps := make([]presence.Presence, 0, len(raw))
	for connID, payload := range raw {
		p, err := presence.Decode(payload)
		if err != nil {
			s.logger.Warn().Err(err).Str("peer", connID).Msg("realtime: undecodable presence in roster")
			continue
		}
		p.ConnectionID = connID
		ps = append(ps, p)
	}
	s.roster.Replace(ps)
}

func (s *Session) publishPresence(ctx context.Context, p presence.Presence) error {
	payload, err := presence.Encode(p)
	if err != nil {
		return err
	}
	return s.room.SetPresence(ctx, s.self.ConnectionID, payload)
}

// Publish stamps e with the local user and the current time and queues it
// for the room. Events leave in the order they were published, each at most
// once. Failures are logged and otherwise ignored.
func (s *Session) Publish(e event.Event) {
	event.Stamp(e, s.self.User.ID, s.now())

	payload, err := event.Encode(e)
	if err != nil {
		s.logger.Error().Err(err).Msg("realtime: encode event")
		return
	}
	if s.closing.Load() {
		s.logger.Debug().Str("event_type", string(e.Header().Type)).Msg("realtime: publish after close dropped")
		return
	}

	s.outMu.Lock()
	s.outbox = append(s.outbox, transport.Frame{
		Kind:       transport.FrameEvent,
		Connection: s.self.ConnectionID,
		Payload:    payload,
	})
	s.outMu.Unlock()

	select {
	case s.outWake <- struct{}{}:
	default:
	}
}

// sendLoop delivers queued events until ctx ends, then makes one last
// bounded attempt to drain the queue.
func (s *Session) sendLoop(ctx context.Context) {
	defer close(s.sendDone)
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			s.flushOutbox(drainCtx)
			cancel()
			return
		case <-s.outWake:
			s.flushOutbox(context.Background())
		}
	}
}

func (s *Session) flushOutbox(ctx context.Context) {
	for {
		s.outMu.Lock()
		if len(s.outbox) == 0 {
			s.outMu.Unlock()
			return
		}
		f := s.outbox[0]
		s.outbox[0] = transport.Frame{}
		s.outbox = s.outbox[1:]
		s.outMu.Unlock()

		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := s.room.Publish(pubCtx, f)
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Msg("realtime: publish dropped")
		}
	}
}

// ---------------------------------------------------------------------------
// Overlay accessors
// ---------------------------------------------------------------------------

func (s *Session) CardOptimisticValue(cardID, field string) (any, bool) {
	return s.overlay.Get(overlay.NamespaceCard, cardID, field)
}

func (s *Session) ListOptimisticValue(listID, field string) (any, bool) {
	return s.overlay.Get(overlay.NamespaceList, listID, field)
}

func (s *Session) LabelOptimisticValue(labelID, field string) (any, bool) {
	return s.overlay.Get(overlay.NamespaceLabel, labelID, field)
}

// BoardOptimisticValue reads a pending board field for the session's board.
func (s *Session) BoardOptimisticValue(field string) (any, bool) {
	return s.overlay.Get(overlay.NamespaceBoard, s.self.BoardID, field)
}

// PendingCardFields returns every pending field for a card.
func (s *Session) PendingCardFields(cardID string) map[string]any {
	return s.overlay.Entity(overlay.NamespaceCard, cardID)
}

// OverlayMark returns a position in the stream of overlay writes. Take it
// before requesting a canonical snapshot.
func (s *Session) OverlayMark() uint64 { return s.overlay.Mark() }

// CanonicalRefreshed tells the session that the view has fetched canonical
// board state after taking mark. Entries written at or before mark are
// dropped; entries that arrived while the fetch was in flight stay pending.
func (s *Session) CanonicalRefreshed(mark uint64) {
	s.overlay.ClearThrough(mark)
}

// PendingOverlayEntries reports how many overlay keys are pending.
func (s *Session) PendingOverlayEntries() int { return s.overlay.Len() }

// OverlayGeneration increases each time CanonicalRefreshed prunes the overlay.
func (s *Session) OverlayGeneration() uint64 { return s.overlay.Generation() }

// ---------------------------------------------------------------------------
// Presence and arbitration
// ---------------------------------------------------------------------------

// OtherUsers returns every other connection in the room.
func (s *Session) OtherUsers() []presence.Presence { return s.roster.Others() }

// Presence returns the local presence.
func (s *Session) Presence() presence.Presence { return s.tracker.Current() }

func (s *Session) SetCursor(x, y float64) {
	s.tracker.SetCursor(x, y)
}

// ClearCursor is called on pointer-leave.
func (s *Session) ClearCursor() {
	s.tracker.ClearCursor()
}

// SetDragging records a drag start (non-empty id) or end (empty id).
func (s *Session) SetDragging(kind presence.DragKind, id string) {
	s.tracker.SetDragging(kind, id)
}

func (s *Session) SetEditing(cardID string) {
	s.tracker.SetEditing(cardID)
}

// FollowPointer drives the local cursor from events until ctx ends; see
// presence.FollowPointer.
func (s *Session) FollowPointer(ctx context.Context, events <-chan presence.PointerEvent) {
	presence.FollowPointer(ctx, s.tracker, events)
}

func (s *Session) IsDraggingCardByOthers(cardID string) bool {
	return s.roster.IsDraggingCardByOthers(cardID)
}

func (s *Session) IsDraggingListByOthers(listID string) bool {
	return s.roster.IsDraggingListByOthers(listID)
}

func (s *Session) IsEditingByOthers(cardID string) bool {
	return s.roster.IsEditingByOthers(cardID)
}

func (s *Session) WhoIsDragging(entityID string) (presence.Presence, bool) {
	return s.roster.WhoIsDragging(entityID)
}

func (s *Session) WhoIsEditing(cardID string) (presence.Presence, bool) {
	return s.roster.WhoIsEditing(cardID)
}

// CanStartDrag is the soft-lock gate: it reports false while another
// participant is dragging the same entity. It does not prevent anything.
func (s *Session) CanStartDrag(kind presence.DragKind, id string) bool {
	switch kind {
	case presence.DragCard:
		return !s.roster.IsDraggingCardByOthers(id)
	case presence.DragList:
		return !s.roster.IsDraggingListByOthers(id)
	default:
		return true
	}
}
