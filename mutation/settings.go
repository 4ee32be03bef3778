// Package mutation coordinates one optimistic mutation lifecycle end to
// end: pick the real backend call and the speculative transform for the
// requested kind, apply the transform to the cache, run the call, then
// reconcile or roll back and report a normalized result.
package mutation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fulldump/optimist/flexible"
	"github.com/fulldump/optimist/optimistic"
	"github.com/fulldump/optimist/orderby"
)

type JSON = map[string]interface{}

// Kind is the closed set of mutation kinds.
type Kind string

const (
	KindInsert   Kind = "insert"
	KindUpdate   Kind = "update"
	KindDelete   Kind = "delete"
	KindFlexible Kind = "flexible"
	KindRPC      Kind = "rpc"
)

// CountMode says how the query tracks its row count.
type CountMode string

const (
	CountExact     CountMode = "exact"
	CountEstimated CountMode = "estimated"
	CountNone      CountMode = "none"
)

var (
	ErrorInvalidKind            = errors.New("invalid mutation kind")
	ErrorConflictingSpeculative = errors.New("conflicting speculative input: row and dataset supplied together")
	ErrorInvalidDataset         = errors.New("invalid speculative dataset")
	ErrorMissingProcedure       = errors.New("procedure name is required")
	ErrorMissingFlexible        = errors.New("flexible operation settings are required")
)

// Result is the normalized shape every backend primitive resolves to.
type Result struct {
	Rows  []JSON
	Count *int64
}

// Backend is the set of remote primitives the coordinator dispatches
// to. Implementations adapt a concrete transport, see package client.
type Backend interface {
	InsertRow(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error)
	UpdateRow(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error)
	DeleteRow(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error)
	RunFlexibleOperation(ctx context.Context, table string, settings flexible.Settings) (*Result, error)
	RunRemoteProcedure(ctx context.Context, procedure string, payload JSON) (*Result, error)
}

// Settings configure one mutation call.
type Settings struct {
	Kind    Kind
	Table   string
	Columns []string
	IDField string // unique identifier field, defaults to "id"

	OrderBy   []orderby.Field
	CountMode CountMode

	// Speculative inputs. At most one of Row or Dataset per call. A
	// Dataset holding a single object instead of an array is treated as
	// one implicit speculative row.
	Row     JSON
	Dataset interface{}
	Count   *int64

	// Flexible operation settings, required when Kind is KindFlexible.
	Flexible *flexible.Settings

	// Procedure and Payload, for KindRPC.
	Procedure string
	Payload   JSON

	// OptimisticOperation names the speculative behavior for flexible
	// and rpc kinds, which have no implied one. The host tool cannot
	// fully clear an optional field, so an empty string means unset.
	OptimisticOperation string

	ReturnRow         bool
	ReturnImmediately bool

	Metadata JSON

	OnSuccess func(*Envelope)
	OnError   func(*Envelope)

	// Test-only simulation, forwarded untouched to the dispatch
	// adapter.
	SimulateLatency time.Duration
	SimulateError   bool
}

// normalize fills defaults and coerces the empty-string sentinel the
// host tool sends for cleared optional fields. One coercion here keeps
// `== ""` checks out of the core logic.
func (s *Settings) normalize() {
	if s.IDField == "" {
		s.IDField = "id"
	}
	if s.CountMode == "" {
		s.CountMode = CountNone
	}
	s.OptimisticOperation = strings.TrimSpace(s.OptimisticOperation)
}

func (s *Settings) transformConfig() optimistic.Config {
	return optimistic.Config{
		IDField:   s.IDField,
		OrderBy:   s.OrderBy,
		KeepCount: s.CountMode != CountNone,
	}
}
