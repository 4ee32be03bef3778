package optimistic

import (
	"errors"
	"fmt"

	"github.com/fulldump/optimist/orderby"
)

var (
	ErrorInvalidInput     = errors.New("invalid optimistic input")
	ErrorInvalidOperation = errors.New("invalid optimistic operation")
)

// Transform produces the speculative snapshot shown while the real
// mutation runs. Transforms are pure: the current snapshot is never
// modified, a nil current snapshot is tolerated.
type Transform func(current *Snapshot) *Snapshot

// Config carries the per-query context every transform needs: the
// unique identifier field, the active order specification and whether
// the query tracks a row count.
type Config struct {
	IDField   string
	OrderBy   []orderby.Field
	KeepCount bool
}

// Identity returns the current snapshot untouched.
func (c Config) Identity() Transform {
	return func(current *Snapshot) *Snapshot {
		if current == nil {
			return emptySnapshot()
		}
		return current
	}
}

// Insert appends row, re-sorts per the active order specification and
// counts one more. An absent snapshot is treated as an empty one.
func (c Config) Insert(row JSON) Transform {
	return func(current *Snapshot) *Snapshot {
		next := &Snapshot{}
		if current != nil {
			next.Rows = append(next.Rows, current.Rows...)
			if c.KeepCount && current.Count != nil {
				next.Count = Int64(*current.Count + 1)
			}
		}
		next.Rows = orderby.Sort(c.OrderBy, append(next.Rows, row))
		return next
	}
}

// Edit replaces the row whose identifier matches row's and re-sorts,
// since an edit may change the sort order. The count is untouched.
func (c Config) Edit(row JSON) Transform {
	return func(current *Snapshot) *Snapshot {
		if current == nil {
			return emptySnapshot()
		}

		next := &Snapshot{Count: current.Count}
		id := row[c.IDField]
		for _, r := range current.Rows {
			if sameID(r[c.IDField], id) {
				next.Rows = append(next.Rows, row)
				continue
			}
			next.Rows = append(next.Rows, r)
		}
		next.Rows = orderby.Sort(c.OrderBy, next.Rows)
		return next
	}
}

// Delete builds the transform that filters out the row matching the
// speculative row's unique identifier. The identifier must be a scalar
// (string or number); anything else is a caller bug and fails here,
// before any backend work starts. The count is decremented even when no
// row matched: the decrement follows the requested delete, not the
// actual removal.
func (c Config) Delete(row JSON) (Transform, error) {

	id := row[c.IDField]
	if !isScalar(id) {
		return nil, fmt.Errorf("%w: delete needs a string or number '%s', got %T", ErrorInvalidInput, c.IDField, id)
	}

	return func(current *Snapshot) *Snapshot {
		if current == nil {
			return emptySnapshot()
		}

		next := &Snapshot{}
		for _, r := range current.Rows {
			if sameID(r[c.IDField], id) {
				continue
			}
			next.Rows = append(next.Rows, r)
		}
		// removal keeps the survivors' relative order, no re-sort needed
		if c.KeepCount && current.Count != nil {
			next.Count = Int64(*current.Count - 1)
		}
		return next
	}, nil
}

// Replace substitutes the whole dataset and count.
func (c Config) Replace(rows []JSON, count *int64) Transform {
	return func(current *Snapshot) *Snapshot {
		if current == nil {
			return emptySnapshot()
		}
		return &Snapshot{Rows: rows, Count: count}
	}
}

func isScalar(value interface{}) bool {
	if _, ok := value.(string); ok {
		return true
	}
	_, ok := orderby.Number(value)
	return ok
}

func sameID(a, b interface{}) bool {

	numberA, okA := orderby.Number(a)
	numberB, okB := orderby.Number(b)
	if okA || okB {
		return okA && okB && numberA == numberB
	}

	return a == b
}
