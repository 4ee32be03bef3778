package apitablev1

import (
	"bytes"
	"context"
	"io"
	"net/http"

	json2 "github.com/go-json-experiment/json"

	"github.com/fulldump/box"
)

// call invokes a named procedure with the body as payload. An empty
// body means no arguments.
func call(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	requestBody, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	payload := JSON{}
	if len(bytes.TrimSpace(requestBody)) > 0 {
		err = readBody(bytes.NewReader(requestBody), &payload)
		if err != nil {
			return err
		}
	}

	s := GetServicer(ctx)
	procedureName := box.GetUrlParameter(ctx, "procedureName")

	result, err := s.CallProcedure(procedureName, payload)
	if err != nil {
		return err
	}

	return json2.MarshalWrite(w, result)
}
