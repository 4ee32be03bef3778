package apitablev1

import (
	"context"
	"net/http"

	json2 "github.com/go-json-experiment/json"

	"github.com/fulldump/box"

	"github.com/fulldump/optimist/service"
)

func selectRows(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	query := service.Query{}
	err := readBody(r.Body, &query)
	if err != nil {
		return err
	}

	s := GetServicer(ctx)
	tableName := box.GetUrlParameter(ctx, "tableName")

	result, err := s.SelectRows(tableName, query)
	if err != nil {
		return err
	}

	return json2.MarshalWrite(w, result)
}
