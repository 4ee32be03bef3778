package apitablev1

import (
	"context"
	"net/http"

	json2 "github.com/go-json-experiment/json"

	"github.com/fulldump/box"

	"github.com/fulldump/optimist/flexible"
)

func runFlexible(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	settings := flexible.Settings{}
	err := readBody(r.Body, &settings)
	if err != nil {
		return err
	}

	s := GetServicer(ctx)
	tableName := box.GetUrlParameter(ctx, "tableName")

	result, err := s.RunFlexible(tableName, settings)
	if err != nil {
		return err
	}

	return json2.MarshalWrite(w, result)
}
