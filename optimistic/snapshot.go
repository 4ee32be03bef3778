// Package optimistic applies speculative transforms to cached query
// results, so the UI reflects a mutation immediately while the real one
// is still in flight.
package optimistic

type JSON = map[string]interface{}

// Snapshot is the cached view of one query: the rows plus, when count
// tracking is enabled, the total row count. A nil Count means the count
// is not tracked (or not known yet).
type Snapshot struct {
	Rows  []JSON `json:"rows"`
	Count *int64 `json:"count"`
}

// Fields stamped on speculative rows. They identify the row as
// not-yet-confirmed until the server response supersedes it, and are
// stripped before anything is sent to the backend.
const (
	FieldOptimisticID = "optimisticId"
	FieldIsOptimistic = "isOptimistic"
)

// Int64 returns a pointer to n, handy for Snapshot.Count literals.
func Int64(n int64) *int64 {
	return &n
}

func emptySnapshot() *Snapshot {
	return &Snapshot{}
}
