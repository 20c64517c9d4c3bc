package presence

import (
	"sort"
	"sync"
)

// Roster is the set of presences in a room other than the local connection.
// The drag and edit queries on it are advisory: nothing stops the local user
// from acting on an entity someone else holds.
type Roster struct {
	mu     sync.RWMutex
	self   string
	others map[string]Presence
}

// NewRoster creates a Roster that ignores selfConnectionID.
func NewRoster(selfConnectionID string) *Roster {
	return &Roster{self: selfConnectionID, others: make(map[string]Presence)}
}

// Upsert stores p keyed by its connection ID. It reports false when p is the
// local connection or has no connection ID.
func (r *Roster) Upsert(p Presence) bool {
	if p.ConnectionID == "" || p.ConnectionID == r.self {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.others[p.ConnectionID] = p.clone()
	return true
}

// Remove drops a connection from the roster.
func (r *Roster) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.others, connectionID)
}

// Replace swaps the whole roster for ps.
func (r *Roster) Replace(ps []Presence) {
	next := make(map[string]Presence, len(ps))
	for _, p := range ps {
		if p.ConnectionID == "" || p.ConnectionID == r.self {
			continue
		}
		next[p.ConnectionID] = p.clone()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.others = next
}

// Others returns the other presences ordered by connection ID.
func (r *Roster) Others() []Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Presence, 0, len(r.others))
	for _, p := range r.others {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.others)
}

func (r *Roster) find(id string, match func(Presence) string) (Presence, bool) {
	if id == "" {
		return Presence{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Deterministic pick when several others hold the same entity.
	var (
		found Presence
		ok    bool
	)
	for _, p := range r.others {
		if match(p) != id {
			continue
		}
		if !ok || p.ConnectionID < found.ConnectionID {
			found, ok = p, true
		}
	}
	return found.clone(), ok
}

func draggingCard(p Presence) string { return p.DraggingCardID }
func draggingList(p Presence) string { return p.DraggingListID }
func editingCard(p Presence) string  { return p.EditingCardID }

func (r *Roster) IsDraggingCardByOthers(cardID string) bool {
	_, ok := r.find(cardID, draggingCard)
	return ok
}

func (r *Roster) IsDraggingListByOthers(listID string) bool {
	_, ok := r.find(listID, draggingList)
	return ok
}

func (r *Roster) IsEditingByOthers(cardID string) bool {
	_, ok := r.find(cardID, editingCard)
	return ok
}

// WhoIsDragging returns the other participant dragging the card or list
// with the given ID.
func (r *Roster) WhoIsDragging(entityID string) (Presence, bool) {
	if p, ok := r.find(entityID, draggingCard); ok {
		return p, true
	}
	return r.find(entityID, draggingList)
}

// WhoIsEditing returns the other participant editing cardID.
func (r *Roster) WhoIsEditing(cardID string) (Presence, bool) {
	return r.find(cardID, editingCard)
}
