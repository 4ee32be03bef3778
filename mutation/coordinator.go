package mutation

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fulldump/optimist/cache"
	"github.com/fulldump/optimist/optimistic"
)

// Coordinator drives optimistic mutations against a query cache. One
// Handle call is one independent lifecycle; overlapping calls on the
// same key are serialized by the cache, not here.
type Coordinator struct {
	backend  Backend
	cache    *cache.Store
	mutating atomic.Bool
}

func NewCoordinator(backend Backend, store *cache.Store) *Coordinator {
	return &Coordinator{
		backend: backend,
		cache:   store,
	}
}

// IsMutating reports whether a mutation is currently running, for UI
// bindings that disable controls while one is in flight.
func (c *Coordinator) IsMutating() bool {
	return c.mutating.Load()
}

// SetMutating overrides the flag. UI bindings own the visual state and
// occasionally reset it by hand.
func (c *Coordinator) SetMutating(value bool) {
	c.mutating.Store(value)
}

// Handle runs one mutation against the query cached under key.
//
// Configuration mistakes (unknown kinds, conflicting speculative
// inputs, missing procedure or flexible settings, unusable delete
// identifiers) are returned synchronously, before any asynchronous
// work starts. Backend failures are never returned: they are reported
// inside an error-status envelope, through OnError and the returned
// envelope.
//
// With ReturnImmediately set, Handle returns a pending envelope right
// away and the mutation keeps running in the background; its final
// envelope is then only delivered through the callbacks.
func (c *Coordinator) Handle(ctx context.Context, key string, settings Settings) (*Envelope, error) {

	c.mutating.Store(true)

	settings.normalize()

	row, dataset, err := materialize(&settings)
	if err != nil {
		c.mutating.Store(false)
		return nil, err
	}

	p, err := resolve(c.backend, &settings, row, dataset)
	if err != nil {
		c.mutating.Store(false)
		return nil, err
	}

	if settings.ReturnImmediately {
		go c.run(context.WithoutCancel(ctx), key, &settings, p, row, dataset)
		return c.buildEnvelope(StatusPending, &settings, nil, row, dataset), nil
	}

	return c.run(ctx, key, &settings, p, row, dataset), nil
}

// materialize resolves the speculative inputs into their final shape:
// the row (explicit, or a single-object dataset treated as one implicit
// row) gets stamped, a real dataset is carried through unchanged.
func materialize(settings *Settings) (row JSON, dataset []JSON, err error) {

	if settings.Row != nil && settings.Dataset != nil {
		return nil, nil, ErrorConflictingSpeculative
	}

	if settings.Row != nil {
		return stamp(settings.Row), nil, nil
	}

	switch data := settings.Dataset.(type) {
	case nil:
		return nil, nil, nil
	case JSON:
		return stamp(data), nil, nil
	case []JSON:
		return nil, data, nil
	case []interface{}:
		rows := make([]JSON, 0, len(data))
		for _, item := range data {
			object, ok := item.(JSON)
			if !ok {
				return nil, nil, fmt.Errorf("%w: rows must be objects, got %T", ErrorInvalidDataset, item)
			}
			rows = append(rows, object)
		}
		return nil, rows, nil
	}

	return nil, nil, fmt.Errorf("%w: got %T", ErrorInvalidDataset, settings.Dataset)
}

// stamp marks a speculative row so it can be told apart from confirmed
// data until the server response supersedes it.
func stamp(row JSON) JSON {
	stamped := JSON{}
	for k, v := range row {
		stamped[k] = v
	}
	stamped[optimistic.FieldOptimisticID] = uuid.NewString()
	stamped[optimistic.FieldIsOptimistic] = true
	return stamped
}

func (c *Coordinator) run(ctx context.Context, key string, settings *Settings, p *pair, row JSON, dataset []JSON) *Envelope {

	defer c.mutating.Store(false)

	result, err := c.cache.Mutate(ctx, key,
		func(ctx context.Context) (*optimistic.Snapshot, error) {
			r, err := p.call(ctx)
			if err != nil {
				return nil, err
			}
			if r == nil {
				return nil, nil
			}
			return &optimistic.Snapshot{Rows: r.Rows, Count: r.Count}, nil
		},
		cache.Options{
			OptimisticData:  p.transform,
			PopulateCache:   false, // revalidation refetches authoritative data instead
			Revalidate:      true,
			RollbackOnError: true,
		},
	)

	if err != nil {
		envelope := c.buildError(settings, err, row, dataset)
		if settings.OnError != nil {
			settings.OnError(envelope)
		}
		return envelope
	}

	envelope := c.buildEnvelope(StatusSuccess, settings, result, row, dataset)
	if settings.OnSuccess != nil {
		settings.OnSuccess(envelope)
	}
	return envelope
}

func (c *Coordinator) buildEnvelope(status Status, settings *Settings, result *optimistic.Snapshot, row JSON, dataset []JSON) *Envelope {

	envelope := &Envelope{
		Status:          status,
		Action:          settings.Kind,
		Summary:         summary(settings.Kind, status),
		Sent:            sentPayload(settings, row),
		OptimisticData:  speculativeInput(row, dataset),
		OptimisticCount: settings.Count,
		Metadata:        settings.Metadata,
	}

	if result != nil {
		envelope.Data = result.Rows
		envelope.Count = result.Count
	}

	return envelope
}

func (c *Coordinator) buildError(settings *Settings, cause error, row JSON, dataset []JSON) *Envelope {

	phrase := summary(settings.Kind, StatusError)

	failure := &Failure{
		Message:        cause.Error(),
		Action:         settings.Kind,
		Summary:        phrase,
		Sent:           sentPayload(settings, row),
		OptimisticData: speculativeInput(row, dataset),
		Metadata:       settings.Metadata,
		cause:          cause,
	}

	return &Envelope{
		Status:          StatusError,
		Action:          settings.Kind,
		Summary:         phrase,
		Sent:            failure.Sent,
		OptimisticData:  failure.OptimisticData,
		OptimisticCount: settings.Count,
		Error:           failure,
		Metadata:        settings.Metadata,
	}
}

// sentPayload is what actually travels to the backend for this kind,
// echoed in envelopes so callers can inspect or retry it.
func sentPayload(settings *Settings, row JSON) interface{} {
	switch settings.Kind {
	case KindFlexible:
		if settings.Flexible == nil {
			return nil
		}
		return settings.Flexible.Payload
	case KindRPC:
		if settings.Payload == nil {
			return nil
		}
		return settings.Payload
	}

	if sent := withoutStamps(row); sent != nil {
		return sent
	}
	return nil
}

func speculativeInput(row JSON, dataset []JSON) interface{} {
	if row != nil {
		return row
	}
	if dataset != nil {
		return dataset
	}
	return nil
}
