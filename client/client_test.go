package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulldump/biff"
	"github.com/fulldump/box"

	"github.com/fulldump/optimist/api"
	"github.com/fulldump/optimist/cache"
	"github.com/fulldump/optimist/flexible"
	"github.com/fulldump/optimist/mutation"
	"github.com/fulldump/optimist/optimistic"
	"github.com/fulldump/optimist/service"
	"github.com/fulldump/optimist/store"
)

// newTestServer runs the whole backend stack over HTTP.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st := store.NewStore(&store.Config{Dir: t.TempDir()})
	biff.AssertNil(st.Load())
	t.Cleanup(func() {
		st.Stop()
	})

	s := service.NewService(st).
		WithProcedure("ping", func(payload service.JSON) (interface{}, error) {
			return "pong", nil
		})

	b := api.Build(s, "test")
	b.WithInterceptors(
		api.InterceptorUnavailable(s),
		api.RecoverFromPanic,
		api.PrettyErrorInterceptor,
	)

	server := httptest.NewServer(box.Box2Http(b))
	t.Cleanup(server.Close)

	return server
}

func TestInsertAndSelect(t *testing.T) {

	server := newTestServer(t)
	c := New(server.URL)

	ctx := context.Background()

	result, err := c.InsertRow(ctx, "players", nil, "id", JSON{"id": "a", "name": "Fulanez"}, true)
	biff.AssertNil(err)
	biff.AssertEqual(*result.Count, int64(1))
	biff.AssertEqual(result.Rows[0]["name"], "Fulanez")

	selected, err := c.SelectRows(ctx, "players", service.Query{CountMode: "exact"})
	biff.AssertNil(err)
	biff.AssertEqual(len(selected.Data), 1)
	biff.AssertEqual(*selected.Count, int64(1))
}

func TestRemoteError(t *testing.T) {

	server := newTestServer(t)
	c := New(server.URL)

	_, err := c.UpdateRow(context.Background(), "ghosts", nil, "id", JSON{"id": "a"}, false)

	remote := &RemoteError{}
	biff.AssertEqual(errors.As(err, &remote), true)
	biff.AssertEqual(remote.Status, http.StatusNotFound)
	biff.AssertEqual(remote.Message, "table not found: 'ghosts'")
}

func TestRunRemoteProcedure(t *testing.T) {

	server := newTestServer(t)
	c := New(server.URL)

	result, err := c.RunRemoteProcedure(context.Background(), "ping", nil)
	biff.AssertNil(err)
	biff.AssertEqual(result.Rows[0]["result"], "pong")
}

func TestKey(t *testing.T) {

	biff.AssertEqual(Key("players", service.Query{}), "players")

	key := Key("players", service.Query{
		Filter:    JSON{"team": "red"},
		CountMode: "exact",
		Limit:     10,
	})

	biff.AssertEqual(key, `players?countMode=exact&filter=%7B%22team%22%3A%22red%22%7D&limit=10`)

	// same query, same key
	biff.AssertEqual(key, Key("players", service.Query{
		Filter:    JSON{"team": "red"},
		CountMode: "exact",
		Limit:     10,
	}))
}

func TestBindAndRevalidate(t *testing.T) {

	server := newTestServer(t)
	c := New(server.URL)

	ctx := context.Background()
	c.InsertRow(ctx, "players", nil, "id", JSON{"id": "a"}, false)

	snapshots := cache.NewStore()
	key := c.Bind(snapshots, "players", service.Query{CountMode: "exact"})

	biff.AssertNil(snapshots.Revalidate(ctx, key))

	snapshot := snapshots.Get(key)
	biff.AssertEqual(len(snapshot.Rows), 1)
	biff.AssertEqual(*snapshot.Count, int64(1))
}

// TestOptimisticLifecycle runs the full path: speculative insert in the
// cache, real insert over HTTP, then revalidation with server data.
func TestOptimisticLifecycle(t *testing.T) {

	server := newTestServer(t)
	c := New(server.URL)
	ctx := context.Background()

	c.InsertRow(ctx, "players", nil, "id", JSON{"id": "a", "score": 10.0}, false)

	snapshots := cache.NewStore()
	key := c.Bind(snapshots, "players", service.Query{CountMode: "exact"})
	biff.AssertNil(snapshots.Revalidate(ctx, key))

	coordinator := mutation.NewCoordinator(c, snapshots)

	envelope, err := coordinator.Handle(ctx, key, mutation.Settings{
		Kind:      mutation.KindInsert,
		Table:     "players",
		CountMode: mutation.CountExact,
		Row:       JSON{"id": "b", "score": 20.0},
	})

	biff.AssertNil(err)
	biff.AssertEqual(envelope.Status, mutation.StatusSuccess)

	// the cache holds the authoritative snapshot, stamps are gone
	snapshot := snapshots.Get(key)
	biff.AssertEqual(len(snapshot.Rows), 2)
	biff.AssertEqual(*snapshot.Count, int64(2))
	for _, row := range snapshot.Rows {
		_, stamped := row[optimistic.FieldOptimisticID]
		biff.AssertEqual(stamped, false)
	}
}

// TestOptimisticRollback verifies a failed mutation restores the last
// confirmed snapshot.
func TestOptimisticRollback(t *testing.T) {

	server := newTestServer(t)
	c := New(server.URL)
	ctx := context.Background()

	c.InsertRow(ctx, "players", nil, "id", JSON{"id": "a"}, false)

	snapshots := cache.NewStore()
	key := c.Bind(snapshots, "players", service.Query{CountMode: "exact"})
	biff.AssertNil(snapshots.Revalidate(ctx, key))
	confirmed := snapshots.Get(key)

	coordinator := mutation.NewCoordinator(c, snapshots)

	// inserting a duplicate identifier fails on the server
	envelope, err := coordinator.Handle(ctx, key, mutation.Settings{
		Kind:      mutation.KindInsert,
		Table:     "players",
		CountMode: mutation.CountExact,
		Row:       JSON{"id": "a"},
	})

	biff.AssertNil(err)
	biff.AssertEqual(envelope.Status, mutation.StatusError)
	biff.AssertEqual(snapshots.Get(key), confirmed)
}

func TestFlexibleThroughCoordinator(t *testing.T) {

	server := newTestServer(t)
	c := New(server.URL)
	ctx := context.Background()

	c.InsertRow(ctx, "players", nil, "id", JSON{"id": "a", "team": "blue"}, false)
	c.InsertRow(ctx, "players", nil, "id", JSON{"id": "b", "team": "blue"}, false)

	result, err := c.RunFlexibleOperation(ctx, "players", flexible.Settings{
		Operation: flexible.OperationDelete,
		Filter:    JSON{"team": "blue"},
	})
	biff.AssertNil(err)
	biff.AssertEqual(*result.Count, int64(2))

	selected, err := c.SelectRows(ctx, "players", service.Query{CountMode: "exact"})
	biff.AssertNil(err)
	biff.AssertEqual(*selected.Count, int64(0))
}
