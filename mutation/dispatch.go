package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulldump/optimist/flexible"
	"github.com/fulldump/optimist/optimistic"
)

// pair is the resolution of one mutation kind: the adapted backend call
// plus the optimistic transform to show while it runs. Both calling
// conventions (row oriented and filter/procedure oriented) are folded
// into the same call shape here.
type pair struct {
	call      func(ctx context.Context) (*Result, error)
	transform optimistic.Transform
}

// resolve builds the pair for settings. Every configuration error
// surfaces here, before any asynchronous work starts: unknown kinds,
// invalid flexible settings, missing procedure names and unusable
// speculative inputs are caller bugs.
func resolve(backend Backend, settings *Settings, row JSON, dataset []JSON) (*pair, error) {

	config := settings.transformConfig()
	p := &pair{}

	switch settings.Kind {

	case KindInsert, KindUpdate, KindDelete:
		primitive := map[Kind]func(context.Context, string, []string, string, JSON, bool) (*Result, error){
			KindInsert: backend.InsertRow,
			KindUpdate: backend.UpdateRow,
			KindDelete: backend.DeleteRow,
		}[settings.Kind]

		sent := withoutStamps(row)
		p.call = func(ctx context.Context) (*Result, error) {
			return primitive(ctx, settings.Table, settings.Columns, settings.IDField, sent, settings.ReturnRow)
		}

		transform, err := rowTransform(config, settings.Kind, row)
		if err != nil {
			return nil, err
		}
		p.transform = transform

	case KindFlexible:
		if settings.Flexible == nil {
			return nil, ErrorMissingFlexible
		}
		if err := flexible.Validate(settings.Table, *settings.Flexible); err != nil {
			return nil, err
		}

		transform, err := config.Choose(optimistic.Operation(settings.OptimisticOperation), row, dataset, settings.Count)
		if err != nil {
			return nil, err
		}
		p.transform = transform
		p.call = func(ctx context.Context) (*Result, error) {
			return backend.RunFlexibleOperation(ctx, settings.Table, *settings.Flexible)
		}

	case KindRPC:
		if settings.Procedure == "" {
			return nil, ErrorMissingProcedure
		}

		transform, err := config.Choose(optimistic.Operation(settings.OptimisticOperation), row, dataset, settings.Count)
		if err != nil {
			return nil, err
		}
		p.transform = transform
		p.call = func(ctx context.Context) (*Result, error) {
			return backend.RunRemoteProcedure(ctx, settings.Procedure, settings.Payload)
		}

	default:
		return nil, fmt.Errorf("%w: '%s'", ErrorInvalidKind, settings.Kind)
	}

	p.call = simulate(p.call, settings)

	return p, nil
}

// rowTransform is the default optimistic binding for the row oriented
// kinds: the matching transform when a speculative row was supplied,
// identity otherwise.
func rowTransform(config optimistic.Config, kind Kind, row JSON) (optimistic.Transform, error) {

	if row == nil {
		return config.Identity(), nil
	}

	switch kind {
	case KindInsert:
		return config.Insert(row), nil
	case KindUpdate:
		return config.Edit(row), nil
	case KindDelete:
		return config.Delete(row)
	}

	return config.Identity(), nil
}

// simulate wraps call with the test-only latency and error injection
// carried by settings.
func simulate(call func(ctx context.Context) (*Result, error), settings *Settings) func(ctx context.Context) (*Result, error) {

	if settings.SimulateLatency <= 0 && !settings.SimulateError {
		return call
	}

	return func(ctx context.Context) (*Result, error) {
		if settings.SimulateLatency > 0 {
			select {
			case <-time.After(settings.SimulateLatency):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if settings.SimulateError {
			return nil, errors.New("simulated mutation error")
		}
		return call(ctx)
	}
}

// withoutStamps strips the speculative-only fields so they never reach
// the backend.
func withoutStamps(row JSON) JSON {
	if row == nil {
		return nil
	}
	sent := JSON{}
	for k, v := range row {
		if k == optimistic.FieldOptimisticID || k == optimistic.FieldIsOptimistic {
			continue
		}
		sent[k] = v
	}
	return sent
}
