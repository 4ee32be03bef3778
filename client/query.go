package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	json2 "github.com/go-json-experiment/json"

	"github.com/fulldump/optimist/cache"
	"github.com/fulldump/optimist/optimistic"
	"github.com/fulldump/optimist/orderby"
	"github.com/fulldump/optimist/realtime"
	"github.com/fulldump/optimist/service"
)

// Key identifies one query in the snapshot cache. The format is
// "table?params" so change notices can match every cached query of a
// table by prefix, see realtime.CacheInvalidator.
func Key(table string, query service.Query) string {

	params := url.Values{}
	if len(query.Filter) > 0 {
		filter, err := json2.Marshal(query.Filter) // deterministic, object keys are sorted
		if err == nil {
			params.Set("filter", string(filter))
		}
	}
	if len(query.OrderBy) > 0 {
		params.Set("orderBy", orderby.String(query.OrderBy))
	}
	if query.CountMode != "" {
		params.Set("countMode", query.CountMode)
	}
	if query.Skip > 0 {
		params.Set("skip", strconv.FormatInt(query.Skip, 10))
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.FormatInt(query.Limit, 10))
	}
	if len(query.Columns) > 0 {
		params.Set("columns", strings.Join(query.Columns, ","))
	}

	if len(params) == 0 {
		return table
	}

	return table + "?" + params.Encode()
}

// Fetcher adapts a select to the cache revalidation callback.
func (c *Client) Fetcher(table string, query service.Query) cache.Fetcher {
	return func(ctx context.Context) (*optimistic.Snapshot, error) {
		result, err := c.SelectRows(ctx, table, query)
		if err != nil {
			return nil, err
		}
		return &optimistic.Snapshot{
			Rows:  result.Data,
			Count: result.Count,
		}, nil
	}
}

// Bind registers the query's fetcher in the store and returns its key.
// The first snapshot is not fetched here, call store.Revalidate to
// populate it.
func (c *Client) Bind(store *cache.Store, table string, query service.Query) string {
	key := Key(table, query)
	store.Register(key, c.Fetcher(table, query))
	return key
}

// SubscribeChanges connects to the backend changefeed and runs handler
// for every notice until ctx is done.
func (c *Client) SubscribeChanges(ctx context.Context, handler realtime.NoticeHandler) (*realtime.Subscriber, error) {
	return realtime.Subscribe(ctx, realtime.WsEndpoint(c.base), handler)
}
