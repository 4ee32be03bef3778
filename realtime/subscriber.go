package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/fulldump/optimist/cache"
)

// NoticeHandler receives every change notice from the feed.
type NoticeHandler func(notice Notice)

// Subscriber is one client connection to a changefeed endpoint.
type Subscriber struct {
	conn *websocket.Conn
	done chan struct{}
}

// Subscribe dials endpoint (ws:// or wss://) and calls handler for
// every notice until the connection closes or ctx is done.
func Subscribe(ctx context.Context, endpoint string, handler NoticeHandler) (*Subscriber, error) {

	conn, response, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("changefeed dial failed: %w (status=%d)", err, response.StatusCode)
		}
		return nil, fmt.Errorf("changefeed dial failed: %w", err)
	}

	s := &Subscriber{
		conn: conn,
		done: make(chan struct{}),
	}

	go s.loop(handler)

	context.AfterFunc(ctx, func() {
		s.Close()
	})

	return s, nil
}

func (s *Subscriber) loop(handler NoticeHandler) {
	defer close(s.done)

	for {
		notice := Notice{}
		err := s.conn.ReadJSON(&notice)
		if err != nil {
			return
		}
		handler(notice)
	}
}

// Done is closed when the connection is gone.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) Close() error {
	return s.conn.Close()
}

// WsEndpoint converts an http(s) base URL into its changefeed
// websocket endpoint.
func WsEndpoint(base string) string {
	endpoint := strings.TrimSuffix(base, "/")
	endpoint = strings.Replace(endpoint, "https://", "wss://", 1)
	endpoint = strings.Replace(endpoint, "http://", "ws://", 1)
	return endpoint + "/v1/changefeed"
}

// CacheInvalidator revalidates every cached query of the table a notice
// names. Query keys follow the "table?params" convention of package
// client.
func CacheInvalidator(store *cache.Store) NoticeHandler {
	return func(notice Notice) {
		for _, key := range store.Keys() {
			if key != notice.Table && !strings.HasPrefix(key, notice.Table+"?") {
				continue
			}
			store.Revalidate(context.Background(), key)
		}
	}
}
