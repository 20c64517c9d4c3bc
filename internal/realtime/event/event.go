// Package event defines the broadcast events exchanged inside a board room
// and the table that decides whether a receiver patches its overlay or
// refetches the board.
package event

import (
	"sort"
	"time"

	"github.com/gosuda/kanbansync/internal/realtime/overlay"
)

// Meta is the header common to every event.
type Meta struct {
	Type      Type   `json:"type"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds, informational only
}

// Header returns the event header.
func (m Meta) Header() Meta { return m }

// Time converts the timestamp to a time.Time.
func (m Meta) Time() time.Time { return time.UnixMilli(m.Timestamp) }

func (m *Meta) meta() *Meta { return m }

// Event is the sum type of all broadcast events. Only pointers to the
// concrete types declared in this package satisfy it.
type Event interface {
	Header() Meta
	// Route says how a receiver absorbs the event.
	Route() Route
	meta() *Meta
}

// Patch is a single overlay write.
type Patch struct {
	Namespace overlay.Namespace
	EntityID  string
	Field     string
	Value     any
}

// Route is the classification of one event instance.
type Route struct {
	Disposition Disposition
	Patches     []Patch
}

var refresh = Route{Disposition: ForceRefresh} //nolint:gochecknoglobals // immutable value

// Resolve returns the route of e. A patchable event that carries no field
// degrades to FORCE_REFRESH so that it is never silently dropped.
func Resolve(e Event) Route {
	r := e.Route()
	if r.Disposition == Patchable && len(r.Patches) == 0 {
		return refresh
	}
	return r
}

// FieldChange is the payload of a field-update event: a single field/value
// pair, optionally accompanied by further changed fields.
type FieldChange struct {
	Field   string         `json:"field,omitempty"`
	Value   any            `json:"value,omitempty"`
	Changes map[string]any `json:"changes,omitempty"`
}

func (c FieldChange) patches(ns overlay.Namespace, entityID string) []Patch {
	if entityID == "" {
		return nil
	}
	out := make([]Patch, 0, 1+len(c.Changes))
	if c.Field != "" {
		out = append(out, Patch{Namespace: ns, EntityID: entityID, Field: c.Field, Value: c.Value})
	}
	keys := make([]string, 0, len(c.Changes))
	for k := range c.Changes {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, Patch{Namespace: ns, EntityID: entityID, Field: k, Value: c.Changes[k]})
	}
	return out
}

// Board field names accepted in BOARD_UPDATED.
const (
	BoardFieldTitle       = "title"
	BoardFieldDescription = "description"
	BoardFieldBackground  = "background"
)

// ---------------------------------------------------------------------------
// Card
// ---------------------------------------------------------------------------

type CardCreatedEvent struct {
	Meta
	CardID   string `json:"cardId"`
	ListID   string `json:"listId"`
	Title    string `json:"title,omitempty"`
	Position int    `json:"position"`
}

func (CardCreatedEvent) Route() Route { return refresh }

type CardDuplicatedEvent struct {
	Meta
	CardID       string `json:"cardId"`
	SourceCardID string `json:"sourceCardId"`
	ListID       string `json:"listId"`
	Position     int    `json:"position"`
}

func (CardDuplicatedEvent) Route() Route { return refresh }

type CardUpdatedEvent struct {
	Meta
	CardID string `json:"cardId"`
	FieldChange
}

func (e CardUpdatedEvent) Route() Route {
	return Route{Disposition: Patchable, Patches: e.patches(overlay.NamespaceCard, e.CardID)}
}

type CardMovedEvent struct {
	Meta
	CardID              string `json:"cardId"`
	SourceListID        string `json:"sourceListId"`
	DestinationListID   string `json:"destinationListId"`
	SourcePosition      int    `json:"sourcePosition"`
	DestinationPosition int    `json:"destinationPosition"`
}

func (CardMovedEvent) Route() Route { return refresh }

type CardReorderedEvent struct {
	Meta
	CardID              string `json:"cardId"`
	ListID              string `json:"listId"`
	SourcePosition      int    `json:"sourcePosition"`
	DestinationPosition int    `json:"destinationPosition"`
}

func (CardReorderedEvent) Route() Route { return refresh }

type CardDeletedEvent struct {
	Meta
	CardID string `json:"cardId"`
	ListID string `json:"listId,omitempty"`
}

func (CardDeletedEvent) Route() Route { return refresh }

type CardArchivedEvent struct {
	Meta
	CardID string `json:"cardId"`
	ListID string `json:"listId,omitempty"`
}

func (CardArchivedEvent) Route() Route { return refresh }

type CardRestoredEvent struct {
	Meta
	CardID string `json:"cardId"`
	ListID string `json:"listId,omitempty"`
}

func (CardRestoredEvent) Route() Route { return refresh }

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

type ListCreatedEvent struct {
	Meta
	ListID   string `json:"listId"`
	Title    string `json:"title,omitempty"`
	Position int    `json:"position"`
}

func (ListCreatedEvent) Route() Route { return refresh }

type ListDuplicatedEvent struct {
	Meta
	ListID       string `json:"listId"`
	SourceListID string `json:"sourceListId"`
	Position     int    `json:"position"`
}

func (ListDuplicatedEvent) Route() Route { return refresh }

type ListUpdatedEvent struct {
	Meta
	ListID string `json:"listId"`
	FieldChange
}

func (e ListUpdatedEvent) Route() Route {
	return Route{Disposition: Patchable, Patches: e.patches(overlay.NamespaceList, e.ListID)}
}

type ListMovedEvent struct {
	Meta
	ListID              string `json:"listId"`
	SourcePosition      int    `json:"sourcePosition"`
	DestinationPosition int    `json:"destinationPosition"`
}

func (ListMovedEvent) Route() Route { return refresh }

type ListDeletedEvent struct {
	Meta
	ListID string `json:"listId"`
}

func (ListDeletedEvent) Route() Route { return refresh }

type ListArchivedEvent struct {
	Meta
	ListID string `json:"listId"`
}

func (ListArchivedEvent) Route() Route { return refresh }

type ListRestoredEvent struct {
	Meta
	ListID string `json:"listId"`
}

func (ListRestoredEvent) Route() Route { return refresh }

// ---------------------------------------------------------------------------
// Label
// ---------------------------------------------------------------------------

type LabelCreatedEvent struct {
	Meta
	LabelID string `json:"labelId"`
	Name    string `json:"name,omitempty"`
	Color   string `json:"color,omitempty"`
}

func (LabelCreatedEvent) Route() Route { return refresh }

type LabelUpdatedEvent struct {
	Meta
	LabelID string `json:"labelId"`
	FieldChange
}

func (e LabelUpdatedEvent) Route() Route {
	return Route{Disposition: Patchable, Patches: e.patches(overlay.NamespaceLabel, e.LabelID)}
}

type LabelDeletedEvent struct {
	Meta
	LabelID string `json:"labelId"`
}

func (LabelDeletedEvent) Route() Route { return refresh }

// LabelAddedEvent links a label to a card.
type LabelAddedEvent struct {
	Meta
	CardID  string `json:"cardId"`
	LabelID string `json:"labelId"`
}

func (LabelAddedEvent) Route() Route { return refresh }

// LabelRemovedEvent unlinks a label from a card.
type LabelRemovedEvent struct {
	Meta
	CardID  string `json:"cardId"`
	LabelID string `json:"labelId"`
}

func (LabelRemovedEvent) Route() Route { return refresh }

// ---------------------------------------------------------------------------
// Member
// ---------------------------------------------------------------------------

type BoardMemberAddedEvent struct {
	Meta
	MemberID string `json:"memberId"`
	Role     string `json:"role,omitempty"`
}

func (BoardMemberAddedEvent) Route() Route { return refresh }

type BoardMemberRoleChangedEvent struct {
	Meta
	MemberID string `json:"memberId"`
	Role     string `json:"role"`
}

func (BoardMemberRoleChangedEvent) Route() Route { return refresh }

type BoardMemberRemovedEvent struct {
	Meta
	MemberID string `json:"memberId"`
}

func (BoardMemberRemovedEvent) Route() Route { return refresh }

type MemberAssignedEvent struct {
	Meta
	CardID   string `json:"cardId"`
	MemberID string `json:"memberId"`
}

func (MemberAssignedEvent) Route() Route { return refresh }

type MemberUnassignedEvent struct {
	Meta
	CardID   string `json:"cardId"`
	MemberID string `json:"memberId"`
}

func (MemberUnassignedEvent) Route() Route { return refresh }

// ---------------------------------------------------------------------------
// Comment
// ---------------------------------------------------------------------------

type CommentAddedEvent struct {
	Meta
	CommentID string `json:"commentId"`
	CardID    string `json:"cardId"`
	Text      string `json:"text,omitempty"`
}

func (CommentAddedEvent) Route() Route { return refresh }

type CommentUpdatedEvent struct {
	Meta
	CommentID string `json:"commentId"`
	CardID    string `json:"cardId"`
	Text      string `json:"text"`
}

func (CommentUpdatedEvent) Route() Route { return refresh }

type CommentDeletedEvent struct {
	Meta
	CommentID string `json:"commentId"`
	CardID    string `json:"cardId"`
}

func (CommentDeletedEvent) Route() Route { return refresh }

type ReactionAddedEvent struct {
	Meta
	CommentID string `json:"commentId"`
	CardID    string `json:"cardId"`
	Emoji     string `json:"emoji"`
}

func (ReactionAddedEvent) Route() Route { return refresh }

type ReactionRemovedEvent struct {
	Meta
	CommentID string `json:"commentId"`
	CardID    string `json:"cardId"`
	Emoji     string `json:"emoji"`
}

func (ReactionRemovedEvent) Route() Route { return refresh }

// ---------------------------------------------------------------------------
// Checklist
// ---------------------------------------------------------------------------

type ChecklistCreatedEvent struct {
	Meta
	ChecklistID string `json:"checklistId"`
	CardID      string `json:"cardId"`
	Title       string `json:"title,omitempty"`
}

func (ChecklistCreatedEvent) Route() Route { return refresh }

type ChecklistUpdatedEvent struct {
	Meta
	ChecklistID string `json:"checklistId"`
	CardID      string `json:"cardId"`
	FieldChange
}

func (ChecklistUpdatedEvent) Route() Route { return refresh }

type ChecklistDeletedEvent struct {
	Meta
	ChecklistID string `json:"checklistId"`
	CardID      string `json:"cardId"`
}

func (ChecklistDeletedEvent) Route() Route { return refresh }

type ChecklistItemCreatedEvent struct {
	Meta
	ItemID      string `json:"itemId"`
	ChecklistID string `json:"checklistId"`
	CardID      string `json:"cardId"`
	Text        string `json:"text,omitempty"`
}

func (ChecklistItemCreatedEvent) Route() Route { return refresh }

type ChecklistItemUpdatedEvent struct {
	Meta
	ItemID      string `json:"itemId"`
	ChecklistID string `json:"checklistId"`
	CardID      string `json:"cardId"`
	FieldChange
}

func (ChecklistItemUpdatedEvent) Route() Route { return refresh }

type ChecklistItemToggledEvent struct {
	Meta
	ItemID      string `json:"itemId"`
	ChecklistID string `json:"checklistId"`
	CardID      string `json:"cardId"`
	Completed   bool   `json:"completed"`
}

func (ChecklistItemToggledEvent) Route() Route { return refresh }

type ChecklistItemReorderedEvent struct {
	Meta
	ItemID              string `json:"itemId"`
	ChecklistID         string `json:"checklistId"`
	CardID              string `json:"cardId"`
	SourcePosition      int    `json:"sourcePosition"`
	DestinationPosition int    `json:"destinationPosition"`
}

func (ChecklistItemReorderedEvent) Route() Route { return refresh }

type ChecklistItemDeletedEvent struct {
	Meta
	ItemID      string `json:"itemId"`
	ChecklistID string `json:"checklistId"`
	CardID      string `json:"cardId"`
}

func (ChecklistItemDeletedEvent) Route() Route { return refresh }

// ---------------------------------------------------------------------------
// Attachment
// ---------------------------------------------------------------------------

type AttachmentAddedEvent struct {
	Meta
	AttachmentID string `json:"attachmentId"`
	CardID       string `json:"cardId"`
	Name         string `json:"name,omitempty"`
	URL          string `json:"url,omitempty"`
}

func (AttachmentAddedEvent) Route() Route { return refresh }

type AttachmentDeletedEvent struct {
	Meta
	AttachmentID string `json:"attachmentId"`
	CardID       string `json:"cardId"`
}

func (AttachmentDeletedEvent) Route() Route { return refresh }

// ---------------------------------------------------------------------------
// Board
// ---------------------------------------------------------------------------

type BoardUpdatedEvent struct {
	Meta
	BoardID string `json:"boardId"`
	FieldChange
}

func (e BoardUpdatedEvent) Route() Route {
	return Route{Disposition: Patchable, Patches: e.patches(overlay.NamespaceBoard, e.BoardID)}
}
