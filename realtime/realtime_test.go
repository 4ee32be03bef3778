package realtime

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fulldump/biff"

	"github.com/fulldump/optimist/cache"
	"github.com/fulldump/optimist/optimistic"
)

type JSON = map[string]interface{}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestBroadcast(t *testing.T) {

	hub := NewHub()
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := make(chan Notice, 16)
	subscriber, err := Subscribe(ctx, WsEndpoint(server.URL), func(notice Notice) {
		notices <- notice
	})
	biff.AssertNil(err)
	defer subscriber.Close()

	waitFor(t, func() bool { return hub.Len() == 1 })

	hub.Broadcast(Notice{Table: "players", Action: "insert", ID: "a"})

	select {
	case notice := <-notices:
		biff.AssertEqual(notice, Notice{Table: "players", Action: "insert", ID: "a"})
	case <-time.After(5 * time.Second):
		t.Fatal("notice never arrived")
	}
}

func TestSubscriberDoneOnHubClose(t *testing.T) {

	hub := NewHub()

	server := httptest.NewServer(hub)
	defer server.Close()

	subscriber, err := Subscribe(context.Background(), WsEndpoint(server.URL), func(notice Notice) {})
	biff.AssertNil(err)

	waitFor(t, func() bool { return hub.Len() == 1 })

	hub.Close()

	select {
	case <-subscriber.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never finished")
	}
}

func TestSubscribeContextCancel(t *testing.T) {

	hub := NewHub()
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())

	subscriber, err := Subscribe(ctx, WsEndpoint(server.URL), func(notice Notice) {})
	biff.AssertNil(err)

	cancel()

	select {
	case <-subscriber.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never finished")
	}
}

func TestWsEndpoint(t *testing.T) {

	biff.AssertEqual(WsEndpoint("http://localhost:8080/"), "ws://localhost:8080/v1/changefeed")
	biff.AssertEqual(WsEndpoint("https://example.com"), "wss://example.com/v1/changefeed")
}

func TestCacheInvalidator(t *testing.T) {

	store := cache.NewStore()

	var fetches int64
	fetcher := func(ctx context.Context) (*optimistic.Snapshot, error) {
		atomic.AddInt64(&fetches, 1)
		return &optimistic.Snapshot{Rows: []JSON{{"id": "a"}}}, nil
	}

	store.Register("players", fetcher)
	store.Register("players?countMode=exact", fetcher)
	store.Register("playerstats", fetcher) // prefix but another table
	store.Register("games", fetcher)

	invalidate := CacheInvalidator(store)
	invalidate(Notice{Table: "players", Action: "insert", ID: "a"})

	// only the two "players" queries revalidated
	biff.AssertEqual(atomic.LoadInt64(&fetches), int64(2))
	biff.AssertEqual(len(store.Get("players").Rows), 1)
	biff.AssertNil(store.Get("games"))
}
