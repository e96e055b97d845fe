package form

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when an entry index does not address an entry.
	ErrIndexOutOfRange = errors.New("entry index out of range")
	// ErrUnknownField is returned for a field name the record does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownGroup is returned for a group kind that does not exist.
	ErrUnknownGroup = errors.New("unknown entry group")
)

// Entry pairs a record with the validation result of its fields.
type Entry[T, E any] struct {
	Value  T `json:"value"`
	Errors E `json:"errors"`
}

// Group is an ordered, index-addressed collection of entries. Indices are
// positional: removing an entry shifts the ones after it down by one.
type Group[T, E any] struct {
	entries []Entry[T, E]
}

// Len returns the number of entries.
func (g *Group[T, E]) Len() int { return len(g.entries) }

// Append adds an entry at the end and returns its index.
func (g *Group[T, E]) Append(value T, errs E) int {
	g.entries = append(g.entries, Entry[T, E]{Value: value, Errors: errs})
	return len(g.entries) - 1
}

// RemoveAt deletes the entry at index.
func (g *Group[T, E]) RemoveAt(index int) error {
	if err := g.check(index); err != nil {
		return err
	}
	g.entries = append(g.entries[:index:index], g.entries[index+1:]...)
	return nil
}

// At returns a copy of the entry at index.
func (g *Group[T, E]) At(index int) (Entry[T, E], error) {
	if err := g.check(index); err != nil {
		return Entry[T, E]{}, err
	}
	return g.entries[index], nil
}

// Update applies fn to a copy of the entry at index and stores the copy only
// when fn succeeds, so a failed update leaves the group untouched.
func (g *Group[T, E]) Update(index int, fn func(*Entry[T, E]) error) error {
	if err := g.check(index); err != nil {
		return err
	}
	next := g.entries[index]
	if err := fn(&next); err != nil {
		return err
	}
	g.entries[index] = next
	return nil
}

// Values returns the records in order.
func (g *Group[T, E]) Values() []T {
	out := make([]T, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.Value
	}
	return out
}

// ErrorRecords returns the per-entry error records in order; the result has
// the same length as Values.
func (g *Group[T, E]) ErrorRecords() []E {
	out := make([]E, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.Errors
	}
	return out
}

func (g *Group[T, E]) check(index int) error {
	if index < 0 || index >= len(g.entries) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(g.entries))
	}
	return nil
}

// MarshalJSON encodes the group as a list of entries.
func (g Group[T, E]) MarshalJSON() ([]byte, error) {
	if g.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(g.entries)
}

// UnmarshalJSON decodes a list of entries.
func (g *Group[T, E]) UnmarshalJSON(data []byte) error {
	var entries []Entry[T, E]
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	g.entries = entries
	return nil
}
