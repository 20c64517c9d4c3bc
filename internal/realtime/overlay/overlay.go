// Package overlay holds field values received from other participants that
// have not yet been reflected by a canonical board refetch.
package overlay

import (
	"sync"
)

// Namespace separates the key spaces of the overlay. The same entity ID may
// appear in several namespaces without collision.
type Namespace uint8

const (
	NamespaceCard Namespace = iota + 1
	NamespaceList
	NamespaceLabel
	NamespaceBoard
)

func (n Namespace) String() string {
	switch n {
	case NamespaceCard:
		return "card"
	case NamespaceList:
		return "list"
	case NamespaceLabel:
		return "label"
	case NamespaceBoard:
		return "board"
	default:
		return "unknown"
	}
}

// entry is a pending value tagged with the arrival sequence of the write
// that produced it.
type entry struct {
	value any
	seq   uint64
}

// fields maps field name to the latest pending entry.
type fields map[string]entry

// Overlay is a per-session, last-write-wins cache keyed by
// (namespace, entity, field). Writes win by arrival order; event timestamps
// are not consulted. It is safe for concurrent use.
type Overlay struct {
	mu         sync.RWMutex
	tables     map[Namespace]map[string]fields
	seq        uint64
	generation uint64
}

// New creates an empty Overlay.
func New() *Overlay {
	return &Overlay{tables: make(map[Namespace]map[string]fields)}
}

// Apply records value as the pending value of field on entityID, replacing
// any earlier pending value for the same key.
func (o *Overlay) Apply(ns Namespace, entityID, field string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	table, ok := o.tables[ns]
	if !ok {
		table = make(map[string]fields)
		o.tables[ns] = table
	}
	entity, ok := table[entityID]
	if !ok {
		entity = make(fields)
		table[entityID] = entity
	}
	o.seq++
	entity[field] = entry{value: value, seq: o.seq}
}

// Get returns the pending value for the key. The boolean distinguishes a
// pending nil (field cleared remotely) from no pending value at all.
func (o *Overlay) Get(ns Namespace, entityID, field string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	e, ok := o.tables[ns][entityID][field]
	return e.value, ok
}

// Entity returns a copy of every pending field for entityID, or nil.
func (o *Overlay) Entity(ns Namespace, entityID string) map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()

	entity, ok := o.tables[ns][entityID]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(entity))
	for k, e := range entity {
		out[k] = e.value
	}
	return out
}

// Mark returns the arrival sequence of the most recent Apply. Take a mark
// before requesting a canonical snapshot and pass it to ClearThrough once the
// snapshot has arrived.
func (o *Overlay) Mark() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.seq
}

// ClearThrough drops every entry applied at or before mark and starts a new
// generation. Entries applied after mark are newer than the snapshot the
// caller fetched and stay pending.
func (o *Overlay) ClearThrough(mark uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for ns, table := range o.tables {
		for id, entity := range table {
			for field, e := range entity {
				if e.seq <= mark {
					delete(entity, field)
				}
			}
			if len(entity) == 0 {
				delete(table, id)
			}
		}
		if len(table) == 0 {
			delete(o.tables, ns)
		}
	}
	o.generation++
}

// Clear drops every entry and starts a new generation.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.tables = make(map[Namespace]map[string]fields)
	o.generation++
}

// Len returns the number of pending (namespace, entity, field) keys.
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	n := 0
	for _, table := range o.tables {
		for _, entity := range table {
			n += len(entity)
		}
	}
	return n
}

// Generation counts how many times the overlay has been cleared.
func (o *Overlay) Generation() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.generation
}
