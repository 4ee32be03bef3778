// Package client talks to the row backend over HTTP. It implements the
// backend primitives the mutation coordinator dispatches to, and builds
// the fetchers the snapshot cache revalidates with.
package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	json2 "github.com/go-json-experiment/json"

	"github.com/fulldump/optimist/flexible"
	"github.com/fulldump/optimist/mutation"
	"github.com/fulldump/optimist/service"
)

type JSON = map[string]interface{}

type Client struct {
	base string
	http *http.Client
}

func New(base string) *Client {
	return &Client{
		base: strings.TrimSuffix(base, "/"),
		http: http.DefaultClient,
	}
}

// WithHTTPClient replaces the underlying http client, for timeouts or
// instrumented transports.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// RemoteError is a non 2xx response from the backend.
type RemoteError struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (status %d): %s", e.Status, e.Message)
}

type mutateRowRequest struct {
	Row       JSON     `json:"row"`
	Columns   []string `json:"columns,omitempty"`
	ReturnRow bool     `json:"returnRow,omitempty"`
}

func (c *Client) InsertRow(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*mutation.Result, error) {
	return c.mutateRow(ctx, table, "insert", columns, row, returnRow)
}

func (c *Client) UpdateRow(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*mutation.Result, error) {
	return c.mutateRow(ctx, table, "update", columns, row, returnRow)
}

func (c *Client) DeleteRow(ctx context.Context, table string, columns []string, idField string, row JSON, returnRow bool) (*mutation.Result, error) {
	return c.mutateRow(ctx, table, "remove", columns, row, returnRow)
}

func (c *Client) mutateRow(ctx context.Context, table, action string, columns []string, row JSON, returnRow bool) (*mutation.Result, error) {

	result, err := c.post(ctx, "/v1/tables/"+table+":"+action, mutateRowRequest{
		Row:       row,
		Columns:   columns,
		ReturnRow: returnRow,
	})
	if err != nil {
		return nil, err
	}

	return &mutation.Result{Rows: result.Data, Count: result.Count}, nil
}

func (c *Client) RunFlexibleOperation(ctx context.Context, table string, settings flexible.Settings) (*mutation.Result, error) {

	result, err := c.post(ctx, "/v1/tables/"+table+":flexible", settings)
	if err != nil {
		return nil, err
	}

	return &mutation.Result{Rows: result.Data, Count: result.Count}, nil
}

func (c *Client) RunRemoteProcedure(ctx context.Context, procedure string, payload JSON) (*mutation.Result, error) {

	result, err := c.post(ctx, "/v1/procedures/"+procedure+":call", payload)
	if err != nil {
		return nil, err
	}

	return &mutation.Result{Rows: result.Data, Count: result.Count}, nil
}

// SelectRows runs a filtered select against one table.
func (c *Client) SelectRows(ctx context.Context, table string, query service.Query) (*service.Result, error) {
	return c.post(ctx, "/v1/tables/"+table+":selectRows", query)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*service.Result, error) {

	buffer := &bytes.Buffer{}
	err := json2.MarshalWrite(buffer, body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, buffer)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		return nil, readRemoteError(response)
	}

	result := &service.Result{}
	err = json2.UnmarshalRead(response.Body, result)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result, nil
}

func readRemoteError(response *http.Response) error {

	remote := &RemoteError{
		Status: response.StatusCode,
	}

	body := struct {
		Error struct {
			Message     string `json:"message"`
			Description string `json:"description"`
		} `json:"error"`
	}{}
	err := json2.UnmarshalRead(response.Body, &body)
	if err != nil {
		remote.Message = response.Status
		return remote
	}

	remote.Message = body.Error.Message
	remote.Description = body.Error.Description
	return remote
}
