package apitablev1

import (
	"context"
	"net/http"

	json2 "github.com/go-json-experiment/json"

	"github.com/fulldump/box"
)

func insert(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &mutateRowRequest{}
	err := readBody(r.Body, input)
	if err != nil {
		return err
	}

	s := GetServicer(ctx)
	tableName := box.GetUrlParameter(ctx, "tableName")

	result, err := s.InsertRow(tableName, input.Row, input.ReturnRow)
	if err != nil {
		return err
	}

	w.WriteHeader(http.StatusCreated)
	return json2.MarshalWrite(w, project(result, input.Columns))
}
