package realtime

import "github.com/gosuda/kanbansync/internal/realtime/event"

// The Broadcast methods are called exactly once after the corresponding
// backend mutation has succeeded. They never report failure.

func (s *Session) BroadcastCardCreated(cardID, listID, title string, position int) {
	s.Publish(&event.CardCreatedEvent{CardID: cardID, ListID: listID, Title: title, Position: position})
}

func (s *Session) BroadcastCardDuplicated(cardID, sourceCardID, listID string, position int) {
	s.Publish(&event.CardDuplicatedEvent{CardID: cardID, SourceCardID: sourceCardID, ListID: listID, Position: position})
}

func (s *Session) BroadcastCardUpdated(cardID, field string, value any) {
	s.Publish(&event.CardUpdatedEvent{CardID: cardID, FieldChange: event.FieldChange{Field: field, Value: value}})
}

// BroadcastCardFieldsUpdated publishes one CARD_UPDATED carrying several
// changed fields.
func (s *Session) BroadcastCardFieldsUpdated(cardID string, changes map[string]any) {
	s.Publish(&event.CardUpdatedEvent{CardID: cardID, FieldChange: event.FieldChange{Changes: changes}})
}

func (s *Session) BroadcastCardMoved(cardID, sourceListID, destinationListID string, sourcePosition, destinationPosition int) {
	s.Publish(&event.CardMovedEvent{
		CardID:              cardID,
		SourceListID:        sourceListID,
		DestinationListID:   destinationListID,
		SourcePosition:      sourcePosition,
		DestinationPosition: destinationPosition,
	})
}

func (s *Session) BroadcastCardReordered(cardID, listID string, sourcePosition, destinationPosition int) {
	s.Publish(&event.CardReorderedEvent{
		CardID:              cardID,
		ListID:              listID,
		SourcePosition:      sourcePosition,
		DestinationPosition: destinationPosition,
	})
}

func (s *Session) BroadcastCardDeleted(cardID, listID string) {
	s.Publish(&event.CardDeletedEvent{CardID: cardID, ListID: listID})
}

func (s *Session) BroadcastCardArchived(cardID, listID string) {
	s.Publish(&event.CardArchivedEvent{CardID: cardID, ListID: listID})
}

func (s *Session) BroadcastCardRestored(cardID, listID string) {
	s.Publish(&event.CardRestoredEvent{CardID: cardID, ListID: listID})
}

func (s *Session) BroadcastListCreated(listID, title string, position int) {
	s.Publish(&event.ListCreatedEvent{ListID: listID, Title: title, Position: position})
}

func (s *Session) BroadcastListDuplicated(listID, sourceListID string, position int) {
	s.Publish(&event.ListDuplicatedEvent{ListID: listID, SourceListID: sourceListID, Position: position})
}

func (s *Session) BroadcastListUpdated(listID, field string, value any) {
	s.Publish(&event.ListUpdatedEvent{ListID: listID, FieldChange: event.FieldChange{Field: field, Value: value}})
}

func (s *Session) BroadcastListMoved(listID string, sourcePosition, destinationPosition int) {
	s.Publish(&event.ListMovedEvent{ListID: listID, SourcePosition: sourcePosition, DestinationPosition: destinationPosition})
}

func (s *Session) BroadcastListDeleted(listID string) {
	s.Publish(&event.ListDeletedEvent{ListID: listID})
}

func (s *Session) BroadcastListArchived(listID string) {
	s.Publish(&event.ListArchivedEvent{ListID: listID})
}

func (s *Session) BroadcastListRestored(listID string) {
	s.Publish(&event.ListRestoredEvent{ListID: listID})
}

func (s *Session) BroadcastLabelCreated(labelID, name, color string) {
	s.Publish(&event.LabelCreatedEvent{LabelID: labelID, Name: name, Color: color})
}

func (s *Session) BroadcastLabelUpdated(labelID, field string, value any) {
	s.Publish(&event.LabelUpdatedEvent{LabelID: labelID, FieldChange: event.FieldChange{Field: field, Value: value}})
}

func (s *Session) BroadcastLabelDeleted(labelID string) {
	s.Publish(&event.LabelDeletedEvent{LabelID: labelID})
}

func (s *Session) BroadcastLabelAdded(cardID, labelID string) {
	s.Publish(&event.LabelAddedEvent{CardID: cardID, LabelID: labelID})
}

func (s *Session) BroadcastLabelRemoved(cardID, labelID string) {
	s.Publish(&event.LabelRemovedEvent{CardID: cardID, LabelID: labelID})
}

func (s *Session) BroadcastBoardMemberAdded(memberID, role string) {
	s.Publish(&event.BoardMemberAddedEvent{MemberID: memberID, Role: role})
}

func (s *Session) BroadcastBoardMemberRoleChanged(memberID, role string) {
	s.Publish(&event.BoardMemberRoleChangedEvent{MemberID: memberID, Role: role})
}

func (s *Session) BroadcastBoardMemberRemoved(memberID string) {
	s.Publish(&event.BoardMemberRemovedEvent{MemberID: memberID})
}

func (s *Session) BroadcastMemberAssigned(cardID, memberID string) {
	s.Publish(&event.MemberAssignedEvent{CardID: cardID, MemberID: memberID})
}

func (s *Session) BroadcastMemberUnassigned(cardID, memberID string) {
	s.Publish(&event.MemberUnassignedEvent{CardID: cardID, MemberID: memberID})
}

func (s *Session) BroadcastCommentAdded(commentID, cardID, text string) {
	s.Publish(&event.CommentAddedEvent{CommentID: commentID, CardID: cardID, Text: text})
}

func (s *Session) BroadcastCommentUpdated(commentID, cardID, text string) {
	s.Publish(&event.CommentUpdatedEvent{CommentID: commentID, CardID: cardID, Text: text})
}

func (s *Session) BroadcastCommentDeleted(commentID, cardID string) {
	s.Publish(&event.CommentDeletedEvent{CommentID: commentID, CardID: cardID})
}

func (s *Session) BroadcastReactionAdded(commentID, cardID, emoji string) {
	s.Publish(&event.ReactionAddedEvent{CommentID: commentID, CardID: cardID, Emoji: emoji})
}

func (s *Session) BroadcastReactionRemoved(commentID, cardID, emoji string) {
	s.Publish(&event.ReactionRemovedEvent{CommentID: commentID, CardID: cardID, Emoji: emoji})
}

func (s *Session) BroadcastChecklistCreated(checklistID, cardID, title string) {
	s.Publish(&event.ChecklistCreatedEvent{ChecklistID: checklistID, CardID: cardID, Title: title})
}

func (s *Session) BroadcastChecklistUpdated(checklistID, cardID, field string, value any) {
	s.Publish(&event.ChecklistUpdatedEvent{ChecklistID: checklistID, CardID: cardID, FieldChange: event.FieldChange{Field: field, Value: value}})
}

func (s *Session) BroadcastChecklistDeleted(checklistID, cardID string) {
	s.Publish(&event.ChecklistDeletedEvent{ChecklistID: checklistID, CardID: cardID})
}

func (s *Session) BroadcastChecklistItemCreated(itemID, checklistID, cardID, text string) {
	s.Publish(&event.ChecklistItemCreatedEvent{ItemID: itemID, ChecklistID: checklistID, CardID: cardID, Text: text})
}

func (s *Session) BroadcastChecklistItemUpdated(itemID, checklistID, cardID, field string, value any) {
	s.Publish(&event.ChecklistItemUpdatedEvent{
		ItemID:      itemID,
		ChecklistID: checklistID,
		CardID:      cardID,
		FieldChange: event.FieldChange{Field: field, Value: value},
	})
}

func (s *Session) BroadcastChecklistItemToggled(itemID, checklistID, cardID string, completed bool) {
	s.Publish(&event.ChecklistItemToggledEvent{ItemID: itemID, ChecklistID: checklistID, CardID: cardID, Completed: completed})
}

func (s *Session) BroadcastChecklistItemReordered(itemID, checklistID, cardID string, sourcePosition, destinationPosition int) {
	s.Publish(&event.ChecklistItemReorderedEvent{
		ItemID:              itemID,
		ChecklistID:         checklistID,
		CardID:              cardID,
		SourcePosition:      sourcePosition,
		DestinationPosition: destinationPosition,
	})
}

func (s *Session) BroadcastChecklistItemDeleted(itemID, checklistID, cardID string) {
	s.Publish(&event.ChecklistItemDeletedEvent{ItemID: itemID, ChecklistID: checklistID, CardID: cardID})
}

func (s *Session) BroadcastAttachmentAdded(attachmentID, cardID, name, url string) {
	s.Publish(&event.AttachmentAddedEvent{AttachmentID: attachmentID, CardID: cardID, Name: name, URL: url})
}

func (s *Session) BroadcastAttachmentDeleted(attachmentID, cardID string) {
	s.Publish(&event.AttachmentDeletedEvent{AttachmentID: attachmentID, CardID: cardID})
}

// BroadcastBoardUpdated publishes a change to one of the board's own fields
// (event.BoardFieldTitle, BoardFieldDescription or BoardFieldBackground).
func (s *Session) BroadcastBoardUpdated(field string, value any) {
	s.Publish(&event.BoardUpdatedEvent{BoardID: s.self.BoardID, FieldChange: event.FieldChange{Field: field, Value: value}})
}
