// Package step implements discrete value cycling over ordered step tables.
package step

import (
	"cmp"
	"errors"
	"fmt"
)

var (
	// ErrEmptyTable is returned for a table without entries.
	ErrEmptyTable = errors.New("step table is empty")
	// ErrNotAscending is returned when entries are not strictly ascending.
	ErrNotAscending = errors.New("step table is not strictly ascending")
)

// Table is an immutable, non-empty, strictly ascending sequence of step values.
type Table[T cmp.Ordered] struct {
	values []T
}

// Validate reports whether values form a usable step table.
func Validate[T cmp.Ordered](values []T) error {
	if len(values) == 0 {
		return ErrEmptyTable
	}
	for i := 1; i < len(values); i++ {
		if !(values[i-1] < values[i]) {
			return fmt.Errorf("%w: entry %d (%v) after %v", ErrNotAscending, i, values[i], values[i-1])
		}
	}
	return nil
}

// NewTable builds a table from the given values.
// Panics if the values are empty or not strictly ascending; tables are
// declared at startup, so a malformed one is a programming error.
func NewTable[T cmp.Ordered](values ...T) Table[T] {
	if err := Validate(values); err != nil {
		panic(err)
	}
	return Table[T]{values: append([]T(nil), values...)}
}

// Next returns the first entry strictly greater than current, wrapping to
// the smallest entry once current reaches or passes the maximum.
func Next[T cmp.Ordered](current T, t Table[T]) T {
	for _, v := range t.values {
		if current < v {
			return v
		}
	}
	return t.values[0]
}

// Next is the method form of Next.
func (t Table[T]) Next(current T) T {
	return Next(current, t)
}

// Len returns the number of entries.
func (t Table[T]) Len() int {
	return len(t.values)
}

// Min returns the smallest entry.
func (t Table[T]) Min() T {
	return t.values[0]
}

// Max returns the largest entry.
func (t Table[T]) Max() T {
	return t.values[len(t.values)-1]
}

// Values returns a copy of the entries in ascending order.
func (t Table[T]) Values() []T {
	return append([]T(nil), t.values...)
}
