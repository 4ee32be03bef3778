package apitablev1

import (
	"fmt"
	"io"

	json2 "github.com/go-json-experiment/json"

	"github.com/fulldump/optimist/service"
)

// mutateRowRequest is the body of the insert, update and remove
// actions.
type mutateRowRequest struct {
	Row       JSON     `json:"row"`
	Columns   []string `json:"columns,omitempty"`
	ReturnRow bool     `json:"returnRow,omitempty"`
}

func readBody(r io.Reader, v interface{}) error {
	err := json2.UnmarshalRead(r, v)
	if err != nil {
		return fmt.Errorf("%w: %s", service.ErrorInvalidPayload, err.Error())
	}
	return nil
}

// project keeps only the requested columns of the returned rows. An
// empty projection returns them as stored.
func project(result *service.Result, columns []string) *service.Result {

	if len(columns) == 0 || len(result.Data) == 0 {
		return result
	}

	projected := make([]JSON, 0, len(result.Data))
	for _, row := range result.Data {
		p := JSON{}
		for _, column := range columns {
			if value, exists := row[column]; exists {
				p[column] = value
			}
		}
		projected = append(projected, p)
	}
	result.Data = projected

	return result
}
