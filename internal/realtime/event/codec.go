package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownType is returned when a payload carries an unregistered tag.
	ErrUnknownType = errors.New("event: unknown type")
	// ErrMissingType is returned when a payload has no type tag.
	ErrMissingType = errors.New("event: missing type")
)

// PeekHeader decodes only the common header of a wire event.
func PeekHeader(data []byte) (Meta, error) {
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("event.PeekHeader: %w", err)
	}
	if m.Type == "" {
		return Meta{}, fmt.Errorf("event.PeekHeader: %w", ErrMissingType)
	}
	return m, nil
}

// Decode parses a wire event into its concrete type. Payload fields are not
// validated beyond what JSON decoding enforces.
func Decode(data []byte) (Event, error) {
	m, err := PeekHeader(data)
	if err != nil {
		return nil, fmt.Errorf("event.Decode: %w", err)
	}

	d, ok := registry[m.Type]
	if !ok {
		return nil, fmt.Errorf("event.Decode: %w: %q", ErrUnknownType, m.Type)
	}

	e := d.alloc()
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("event.Decode %s: %w", m.Type, err)
	}
	return e, nil
}

// Encode serialises e in its wire form. The type tag is derived from the
// concrete Go type so that a mislabelled header cannot be sent.
func Encode(e Event) ([]byte, error) {
	t, ok := TypeOf(e)
	if !ok {
		return nil, fmt.Errorf("event.Encode: %w: %T", ErrUnknownType, e)
	}
	e.meta().Type = t

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("event.Encode %s: %w", t, err)
	}
	return data, nil
}

// Stamp fills in the header of e for publication by userID at time at.
func Stamp(e Event, userID string, at time.Time) Event {
	m := e.meta()
	if t, ok := TypeOf(e); ok {
		m.Type = t
	}
	m.UserID = userID
	m.Timestamp = at.UnixMilli()
	return e
}
