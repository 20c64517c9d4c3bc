package event

import (
	"reflect"
	"sort"
)

// Type is the wire tag of a broadcast event.
type Type string

const (
	CardCreated    Type = "CARD_CREATED"
	CardDuplicated Type = "CARD_DUPLICATED"
	CardUpdated    Type = "CARD_UPDATED"
	CardMoved      Type = "CARD_MOVED"
	CardReordered  Type = "CARD_REORDERED"
	CardDeleted    Type = "CARD_DELETED"
	CardArchived   Type = "CARD_ARCHIVED"
	CardRestored   Type = "CARD_RESTORED"

	ListCreated    Type = "LIST_CREATED"
	ListDuplicated Type = "LIST_DUPLICATED"
	ListUpdated    Type = "LIST_UPDATED"
	ListMoved      Type = "LIST_MOVED"
	ListDeleted    Type = "LIST_DELETED"
	ListArchived   Type = "LIST_ARCHIVED"
	ListRestored   Type = "LIST_RESTORED"

	LabelCreated Type = "LABEL_CREATED"
	LabelUpdated Type = "LABEL_UPDATED"
	LabelDeleted Type = "LABEL_DELETED"
	LabelAdded   Type = "LABEL_ADDED"
	LabelRemoved Type = "LABEL_REMOVED"

	BoardMemberAdded       Type = "BOARD_MEMBER_ADDED"
	BoardMemberRoleChanged Type = "BOARD_MEMBER_ROLE_CHANGED"
	BoardMemberRemoved     Type = "BOARD_MEMBER_REMOVED"
	MemberAssigned         Type = "MEMBER_ASSIGNED"
	MemberUnassigned       Type = "MEMBER_UNASSIGNED"

	CommentAdded    Type = "COMMENT_ADDED"
	CommentUpdated  Type = "COMMENT_UPDATED"
	CommentDeleted  Type = "COMMENT_DELETED"
	ReactionAdded   Type = "REACTION_ADDED"
	ReactionRemoved Type = "REACTION_REMOVED"

	ChecklistCreated       Type = "CHECKLIST_CREATED"
	ChecklistUpdated       Type = "CHECKLIST_UPDATED"
	ChecklistDeleted       Type = "CHECKLIST_DELETED"
	ChecklistItemCreated   Type = "CHECKLIST_ITEM_CREATED"
	ChecklistItemUpdated   Type = "CHECKLIST_ITEM_UPDATED"
	ChecklistItemToggled   Type = "CHECKLIST_ITEM_TOGGLED"
	ChecklistItemReordered Type = "CHECKLIST_ITEM_REORDERED"
	ChecklistItemDeleted   Type = "CHECKLIST_ITEM_DELETED"

	AttachmentAdded   Type = "ATTACHMENT_ADDED"
	AttachmentDeleted Type = "ATTACHMENT_DELETED"

	BoardUpdated Type = "BOARD_UPDATED"
)

// Entity names what kind of board object an event describes.
type Entity string

const (
	EntityCard       Entity = "card"
	EntityList       Entity = "list"
	EntityLabel      Entity = "label"
	EntityMember     Entity = "member"
	EntityComment    Entity = "comment"
	EntityChecklist  Entity = "checklist"
	EntityAttachment Entity = "attachment"
	EntityBoard      Entity = "board"
)

// Effect is the kind of change an event describes.
type Effect string

const (
	EffectCreation    Effect = "creation"
	EffectFieldUpdate Effect = "field_update"
	EffectStructural  Effect = "structural"
	EffectRemoval     Effect = "removal"
)

// Disposition says how a receiver absorbs an event.
type Disposition uint8

const (
	// Patchable events are applied to the optimistic overlay.
	Patchable Disposition = iota + 1
	// ForceRefresh events make the owning view refetch canonical state.
	ForceRefresh
)

func (d Disposition) String() string {
	switch d {
	case Patchable:
		return "PATCHABLE"
	case ForceRefresh:
		return "FORCE_REFRESH"
	default:
		return "UNKNOWN"
	}
}

type descriptor struct {
	entity Entity
	effect Effect
	alloc  func() Event
}

// registry is the single table of known tags. Decode and Stamp rely on it;
// a new event type must be added here and must implement Route.
var registry = map[Type]descriptor{ //nolint:gochecknoglobals // static table
	CardCreated:    {EntityCard, EffectCreation, func() Event { return &CardCreatedEvent{} }},
	CardDuplicated: {EntityCard, EffectCreation, func() Event { return &CardDuplicatedEvent{} }},
	CardUpdated:    {EntityCard, EffectFieldUpdate, func() Event { return &CardUpdatedEvent{} }},
	CardMoved:      {EntityCard, EffectStructural, func() Event { return &CardMovedEvent{} }},
	CardReordered:  {EntityCard, EffectStructural, func() Event { return &CardReorderedEvent{} }},
	CardDeleted:    {EntityCard, EffectRemoval, func() Event { return &CardDeletedEvent{} }},
	CardArchived:   {EntityCard, EffectRemoval, func() Event { return &CardArchivedEvent{} }},
	CardRestored:   {EntityCard, EffectRemoval, func() Event { return &CardRestoredEvent{} }},

	ListCreated:    {EntityList, EffectCreation, func() Event { return &ListCreatedEvent{} }},
	ListDuplicated: {EntityList, EffectCreation, func() Event { return &ListDuplicatedEvent{} }},
	ListUpdated:    {EntityList, EffectFieldUpdate, func() Event { return &ListUpdatedEvent{} }},
	ListMoved:      {EntityList, EffectStructural, func() Event { return &ListMovedEvent{} }},
	ListDeleted:    {EntityList, EffectRemoval, func() Event { return &ListDeletedEvent{} }},
	ListArchived:   {EntityList, EffectRemoval, func() Event { return &ListArchivedEvent{} }},
	ListRestored:   {EntityList, EffectRemoval, func() Event { return &ListRestoredEvent{} }},

	LabelCreated: {EntityLabel, EffectCreation, func() Event { return &LabelCreatedEvent{} }},
	LabelUpdated: {EntityLabel, EffectFieldUpdate, func() Event { return &LabelUpdatedEvent{} }},
	LabelDeleted: {EntityLabel, EffectRemoval, func() Event { return &LabelDeletedEvent{} }},
	LabelAdded:   {EntityLabel, EffectRemoval, func() Event { return &LabelAddedEvent{} }},
	LabelRemoved: {EntityLabel, EffectRemoval, func() Event { return &LabelRemovedEvent{} }},

	BoardMemberAdded:       {EntityMember, EffectCreation, func() Event { return &BoardMemberAddedEvent{} }},
	BoardMemberRoleChanged: {EntityMember, EffectFieldUpdate, func() Event { return &BoardMemberRoleChangedEvent{} }},
	BoardMemberRemoved:     {EntityMember, EffectRemoval, func() Event { return &BoardMemberRemovedEvent{} }},
	MemberAssigned:         {EntityMember, EffectRemoval, func() Event { return &MemberAssignedEvent{} }},
	MemberUnassigned:       {EntityMember, EffectRemoval, func() Event { return &MemberUnassignedEvent{} }},

	CommentAdded:    {EntityComment, EffectCreation, func() Event { return &CommentAddedEvent{} }},
	CommentUpdated:  {EntityComment, EffectFieldUpdate, func() Event { return &CommentUpdatedEvent{} }},
	CommentDeleted:  {EntityComment, EffectRemoval, func() Event { return &CommentDeletedEvent{} }},
	ReactionAdded:   {EntityComment, EffectRemoval, func() Event { return &ReactionAddedEvent{} }},
	ReactionRemoved: {EntityComment, EffectRemoval, func() Event { return &ReactionRemovedEvent{} }},

	ChecklistCreated:       {EntityChecklist, EffectCreation, func() Event { return &ChecklistCreatedEvent{} }},
	ChecklistUpdated:       {EntityChecklist, EffectFieldUpdate, func() Event { return &ChecklistUpdatedEvent{} }},
	ChecklistDeleted:       {EntityChecklist, EffectRemoval, func() Event { return &ChecklistDeletedEvent{} }},
	ChecklistItemCreated:   {EntityChecklist, EffectCreation, func() Event { return &ChecklistItemCreatedEvent{} }},
	ChecklistItemUpdated:   {EntityChecklist, EffectFieldUpdate, func() Event { return &ChecklistItemUpdatedEvent{} }},
	ChecklistItemToggled:   {EntityChecklist, EffectFieldUpdate, func() Event { return &ChecklistItemToggledEvent{} }},
	ChecklistItemReordered: {EntityChecklist, EffectStructural, func() Event { return &ChecklistItemReorderedEvent{} }},
	ChecklistItemDeleted:   {EntityChecklist, EffectRemoval, func() Event { return &ChecklistItemDeletedEvent{} }},

	AttachmentAdded:   {EntityAttachment, EffectCreation, func() Event { return &AttachmentAddedEvent{} }},
	AttachmentDeleted: {EntityAttachment, EffectRemoval, func() Event { return &AttachmentDeletedEvent{} }},

	BoardUpdated: {EntityBoard, EffectFieldUpdate, func() Event { return &BoardUpdatedEvent{} }},
}

// tags maps a concrete Go type back to its wire tag.
var tags = func() map[reflect.Type]Type { //nolint:gochecknoglobals // derived from registry
	m := make(map[reflect.Type]Type, len(registry))
	for t, d := range registry {
		m[reflect.TypeOf(d.alloc())] = t
	}
	return m
}()

// Types returns every known tag in lexical order.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether t is a registered tag.
func Known(t Type) bool {
	_, ok := registry[t]
	return ok
}

// Describe returns the entity and effect class of a tag.
func Describe(t Type) (Entity, Effect, bool) {
	d, ok := registry[t]
	if !ok {
		return "", "", false
	}
	return d.entity, d.effect, true
}

// Classify returns the static disposition of a tag: PATCHABLE for the four
// overlay-backed field updates, FORCE_REFRESH for everything else.
func Classify(t Type) (Disposition, bool) {
	d, ok := registry[t]
	if !ok {
		return 0, false
	}
	return d.alloc().Route().Disposition, true
}

// TypeOf returns the tag for a concrete event value.
func TypeOf(e Event) (Type, bool) {
	t, ok := tags[reflect.TypeOf(e)]
	return t, ok
}
