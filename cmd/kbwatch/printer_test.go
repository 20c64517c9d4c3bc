package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/gosuda/kanbansync/internal/domain"
	"github.com/gosuda/kanbansync/internal/realtime"
	"github.com/gosuda/kanbansync/internal/realtime/event"
	"github.com/gosuda/kanbansync/internal/realtime/presence"
)

func init() {
	color.NoColor = true
}

func TestDescribe(t *testing.T) {
	upd := &event.CardUpdatedEvent{CardID: "c1"}
	upd.Type = event.CardUpdated
	upd.UserID = "u2"
	upd.Field = "title"
	upd.Value = "X"

	got := describe(upd, realtime.OutcomeOverlayApplied)
	assert.Contains(t, got, "overlay")
	assert.Contains(t, got, "CARD_UPDATED")
	assert.Contains(t, got, "c1.title=X")

	moved := &event.CardMovedEvent{CardID: "c7"}
	moved.Type = event.CardMoved
	moved.UserID = "u2"

	got = describe(moved, realtime.OutcomeRefreshTriggered)
	assert.Contains(t, got, "refresh")
	assert.Contains(t, got, "by u2")
}

func TestDescribePresence(t *testing.T) {
	assert.Equal(t, "Ada dragging card c1", describePresence(presence.Presence{User: domain.UserRef{ID: "u1", Name: "Ada"}, DraggingCardID: "c1"}))
	assert.Equal(t, "u2 editing card c3", describePresence(presence.Presence{User: domain.UserRef{ID: "u2"}, EditingCardID: "c3"}))
	assert.Equal(t, "u3", describePresence(presence.Presence{User: domain.UserRef{ID: "u3"}}))
}

func TestRenderSnapshot(t *testing.T) {
	var buf bytes.Buffer
	renderSnapshot(&buf, &domain.BoardSnapshot{
		Board: &domain.Board{Title: "Roadmap"},
		Lists: []*domain.List{{Title: "Todo", Cards: []*domain.Card{{Title: "Ship it"}}}},
	})
	assert.Equal(t, "Roadmap\n  Todo (1)\n    - Ship it\n", buf.String())
}
