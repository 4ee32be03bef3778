package mutation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fulldump/biff"

	"github.com/fulldump/optimist/cache"
	"github.com/fulldump/optimist/flexible"
	"github.com/fulldump/optimist/optimistic"
)

// fakeBackend implements Backend with overridable functions, defaulting
// to echo behavior.
type fakeBackend struct {
	insert    func(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error)
	update    func(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error)
	delete    func(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error)
	flexible  func(ctx context.Context, table string, settings flexible.Settings) (*Result, error)
	procedure func(ctx context.Context, procedure string, payload JSON) (*Result, error)
}

func echo(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error) {
	count := int64(1)
	result := &Result{Count: &count}
	if returnRow {
		result.Rows = []JSON{row}
	}
	return result, nil
}

func (f *fakeBackend) InsertRow(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error) {
	if f.insert == nil {
		return echo(ctx, table, columns, idField, row, returnRow)
	}
	return f.insert(ctx, table, columns, idField, row, returnRow)
}

func (f *fakeBackend) UpdateRow(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error) {
	if f.update == nil {
		return echo(ctx, table, columns, idField, row, returnRow)
	}
	return f.update(ctx, table, columns, idField, row, returnRow)
}

func (f *fakeBackend) DeleteRow(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error) {
	if f.delete == nil {
		return echo(ctx, table, columns, idField, row, returnRow)
	}
	return f.delete(ctx, table, columns, idField, row, returnRow)
}

func (f *fakeBackend) RunFlexibleOperation(ctx context.Context, table string, settings flexible.Settings) (*Result, error) {
	if f.flexible == nil {
		return &Result{}, nil
	}
	return f.flexible(ctx, table, settings)
}

func (f *fakeBackend) RunRemoteProcedure(ctx context.Context, procedure string, payload JSON) (*Result, error) {
	if f.procedure == nil {
		return &Result{}, nil
	}
	return f.procedure(ctx, procedure, payload)
}

func TestHandleInsert(t *testing.T) {

	store := cache.NewStore()
	store.Set("players", &optimistic.Snapshot{
		Rows:  []JSON{{"id": "a"}},
		Count: optimistic.Int64(1),
	})

	var sentRow JSON
	backend := &fakeBackend{
		insert: func(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error) {
			sentRow = row
			biff.AssertEqual(table, "players")
			return echo(ctx, table, columns, idField, row, returnRow)
		},
	}

	c := NewCoordinator(backend, store)

	envelope, err := c.Handle(context.Background(), "players", Settings{
		Kind:      KindInsert,
		Table:     "players",
		CountMode: CountExact,
		Row:       JSON{"id": "b"},
		ReturnRow: true,
	})

	biff.AssertNil(err)
	biff.AssertEqual(envelope.Status, StatusSuccess)
	biff.AssertEqual(envelope.Action, KindInsert)
	biff.AssertEqual(envelope.Summary, "Successfully added row")
	biff.AssertEqual(c.IsMutating(), false)

	// stamps never reach the backend
	biff.AssertEqual(sentRow["id"], "b")
	_, hasStamp := sentRow[optimistic.FieldOptimisticID]
	biff.AssertEqual(hasStamp, false)

	// the speculative input is echoed stamped
	speculative := envelope.OptimisticData.(JSON)
	biff.AssertEqual(speculative[optimistic.FieldIsOptimistic], true)
}

func TestHandleShowsSpeculativeRowDuringBackendCall(t *testing.T) {

	store := cache.NewStore()
	store.Set("players", &optimistic.Snapshot{
		Rows:  []JSON{{"id": "a"}},
		Count: optimistic.Int64(1),
	})

	var midFlight *optimistic.Snapshot
	backend := &fakeBackend{
		insert: func(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error) {
			midFlight = store.Get("players")
			return echo(ctx, table, columns, idField, row, returnRow)
		},
	}

	c := NewCoordinator(backend, store)

	_, err := c.Handle(context.Background(), "players", Settings{
		Kind:      KindInsert,
		Table:     "players",
		CountMode: CountExact,
		Row:       JSON{"id": "b"},
	})
	biff.AssertNil(err)

	biff.AssertEqual(len(midFlight.Rows), 2)
	biff.AssertEqual(*midFlight.Count, int64(2))
	biff.AssertEqual(midFlight.Rows[1][optimistic.FieldIsOptimistic], true)
}

func TestHandleBackendFailureRollsBack(t *testing.T) {

	store := cache.NewStore()
	previous := &optimistic.Snapshot{Rows: []JSON{{"id": "a"}}}
	store.Set("players", previous)

	backend := &fakeBackend{
		insert: func(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error) {
			return nil, errors.New("duplicate key")
		},
	}

	c := NewCoordinator(backend, store)

	var reported *Envelope
	envelope, err := c.Handle(context.Background(), "players", Settings{
		Kind:  KindInsert,
		Table: "players",
		Row:   JSON{"id": "a"},
		OnError: func(e *Envelope) {
			reported = e
		},
	})

	// backend failures are reported inside the envelope, never returned
	biff.AssertNil(err)
	biff.AssertEqual(envelope.Status, StatusError)
	biff.AssertEqual(envelope.Error.Message, "duplicate key")
	biff.AssertEqual(envelope.Error.Summary, "Error adding row")
	biff.AssertEqual(reported, envelope)

	biff.AssertEqual(store.Get("players"), previous)
}

func TestHandleRevalidatesAfterSuccess(t *testing.T) {

	store := cache.NewStore()
	fresh := &optimistic.Snapshot{
		Rows:  []JSON{{"id": "a"}, {"id": "b"}},
		Count: optimistic.Int64(2),
	}
	store.Register("players", func(ctx context.Context) (*optimistic.Snapshot, error) {
		return fresh, nil
	})

	c := NewCoordinator(&fakeBackend{}, store)

	_, err := c.Handle(context.Background(), "players", Settings{
		Kind:  KindInsert,
		Table: "players",
		Row:   JSON{"id": "b"},
	})
	biff.AssertNil(err)

	// the authoritative snapshot replaced the speculative one
	biff.AssertEqual(store.Get("players"), fresh)
}

func TestHandleReturnImmediately(t *testing.T) {

	store := cache.NewStore()

	release := make(chan struct{})
	backend := &fakeBackend{
		insert: func(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*Result, error) {
			<-release
			return echo(ctx, table, columns, idField, row, returnRow)
		},
	}

	c := NewCoordinator(backend, store)

	final := make(chan *Envelope, 1)
	envelope, err := c.Handle(context.Background(), "players", Settings{
		Kind:              KindInsert,
		Table:             "players",
		Row:               JSON{"id": "a"},
		ReturnImmediately: true,
		OnSuccess: func(e *Envelope) {
			final <- e
		},
	})

	biff.AssertNil(err)
	biff.AssertEqual(envelope.Status, StatusPending)
	biff.AssertEqual(envelope.Summary, "Add in progress")
	biff.AssertEqual(c.IsMutating(), true)

	close(release)

	select {
	case e := <-final:
		biff.AssertEqual(e.Status, StatusSuccess)
	case <-time.After(5 * time.Second):
		t.Fatal("final envelope never delivered")
	}
}

func TestHandleConfigurationErrorsAreSynchronous(t *testing.T) {

	c := NewCoordinator(&fakeBackend{}, cache.NewStore())

	// row and dataset together
	_, err := c.Handle(context.Background(), "players", Settings{
		Kind:    KindInsert,
		Table:   "players",
		Row:     JSON{"id": "a"},
		Dataset: []JSON{{"id": "b"}},
	})
	biff.AssertEqual(errors.Is(err, ErrorConflictingSpeculative), true)

	// unknown kind
	_, err = c.Handle(context.Background(), "players", Settings{Kind: "explode"})
	biff.AssertEqual(errors.Is(err, ErrorInvalidKind), true)

	// rpc without a procedure name
	_, err = c.Handle(context.Background(), "players", Settings{Kind: KindRPC})
	biff.AssertEqual(errors.Is(err, ErrorMissingProcedure), true)

	// flexible without settings
	_, err = c.Handle(context.Background(), "players", Settings{Kind: KindFlexible, Table: "players"})
	biff.AssertEqual(errors.Is(err, ErrorMissingFlexible), true)

	// a delete whose identifier cannot be matched optimistically,
	// surfaced before the pending envelope even with ReturnImmediately
	_, err = c.Handle(context.Background(), "players", Settings{
		Kind:              KindDelete,
		Table:             "players",
		Row:               JSON{"id": JSON{"nested": true}},
		ReturnImmediately: true,
	})
	biff.AssertEqual(errors.Is(err, optimistic.ErrorInvalidInput), true)

	biff.AssertEqual(c.IsMutating(), false)
}

func TestHandleSingleObjectDatasetIsAnImplicitRow(t *testing.T) {

	store := cache.NewStore()
	store.Set("players", &optimistic.Snapshot{Rows: []JSON{}})

	c := NewCoordinator(&fakeBackend{}, store)

	envelope, err := c.Handle(context.Background(), "players", Settings{
		Kind:                KindFlexible,
		Table:               "players",
		Flexible:            &flexible.Settings{Operation: flexible.OperationInsert, Payload: JSON{"id": "a"}},
		Dataset:             JSON{"id": "a"},
		OptimisticOperation: "addRow",
	})

	biff.AssertNil(err)
	speculative := envelope.OptimisticData.(JSON)
	biff.AssertEqual(speculative["id"], "a")
	biff.AssertEqual(speculative[optimistic.FieldIsOptimistic], true)
}

func TestHandleInvalidDataset(t *testing.T) {

	c := NewCoordinator(&fakeBackend{}, cache.NewStore())

	_, err := c.Handle(context.Background(), "players", Settings{
		Kind:    KindInsert,
		Table:   "players",
		Dataset: "not rows",
	})
	biff.AssertEqual(errors.Is(err, ErrorInvalidDataset), true)

	_, err = c.Handle(context.Background(), "players", Settings{
		Kind:    KindInsert,
		Table:   "players",
		Dataset: []interface{}{"not an object"},
	})
	biff.AssertEqual(errors.Is(err, ErrorInvalidDataset), true)
}

func TestHandleRPC(t *testing.T) {

	store := cache.NewStore()
	store.Set("players", &optimistic.Snapshot{
		Rows: []JSON{{"id": "a", "score": 1.0}},
	})

	backend := &fakeBackend{
		procedure: func(ctx context.Context, procedure string, payload JSON) (*Result, error) {
			biff.AssertEqual(procedure, "reset_scores")
			biff.AssertEqual(payload["team"], "red")
			return &Result{Rows: []JSON{{"id": "a", "score": 0.0}}}, nil
		},
	}

	c := NewCoordinator(backend, store)

	rows := []JSON{{"id": "a", "score": 0.0}}
	envelope, err := c.Handle(context.Background(), "players", Settings{
		Kind:                KindRPC,
		Procedure:           "reset_scores",
		Payload:             JSON{"team": "red"},
		Dataset:             []JSON{{"id": "a", "score": 0.0}},
		OptimisticOperation: "replaceData",
	})

	biff.AssertNil(err)
	biff.AssertEqual(envelope.Status, StatusSuccess)
	biff.AssertEqual(envelope.Summary, "Successfully called procedure")
	biff.AssertEqual(envelope.Sent, interface{}(JSON{"team": "red"}))
	biff.AssertEqual(envelope.OptimisticData, interface{}(rows))
	biff.AssertEqual(envelope.Data, rows)
}

func TestHandleEmptyOptimisticOperationIsIdentity(t *testing.T) {

	store := cache.NewStore()
	current := &optimistic.Snapshot{Rows: []JSON{{"id": "a"}}}
	store.Set("players", current)

	var midFlight *optimistic.Snapshot
	backend := &fakeBackend{
		procedure: func(ctx context.Context, procedure string, payload JSON) (*Result, error) {
			midFlight = store.Get("players")
			return &Result{}, nil
		},
	}

	c := NewCoordinator(backend, store)

	// the host tool sends "  " for a cleared optional field
	_, err := c.Handle(context.Background(), "players", Settings{
		Kind:                KindRPC,
		Procedure:           "ping",
		OptimisticOperation: "  ",
	})

	biff.AssertNil(err)
	biff.AssertEqual(midFlight, current) // nothing speculative happened
}

func TestHandleSimulateError(t *testing.T) {

	store := cache.NewStore()
	previous := &optimistic.Snapshot{Rows: []JSON{{"id": "a"}}}
	store.Set("players", previous)

	c := NewCoordinator(&fakeBackend{}, store)

	envelope, err := c.Handle(context.Background(), "players", Settings{
		Kind:          KindInsert,
		Table:         "players",
		Row:           JSON{"id": "b"},
		SimulateError: true,
	})

	biff.AssertNil(err)
	biff.AssertEqual(envelope.Status, StatusError)
	biff.AssertEqual(store.Get("players"), previous) // rolled back
}

func TestSetMutating(t *testing.T) {

	c := NewCoordinator(&fakeBackend{}, cache.NewStore())

	biff.AssertEqual(c.IsMutating(), false)
	c.SetMutating(true)
	biff.AssertEqual(c.IsMutating(), true)
	c.SetMutating(false)
	biff.AssertEqual(c.IsMutating(), false)
}
