package service

import (
	"fmt"

	"github.com/fulldump/optimist/utils"
)

// CallProcedure invokes a registered procedure and normalizes whatever
// it returns into the uniform data+count shape.
func (s *Service) CallProcedure(name string, payload JSON) (*Result, error) {

	procedure, exists := s.procedures[name]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrorProcedureNotFound, name)
	}

	value, err := procedure(payload)
	if err != nil {
		return nil, err
	}

	return normalizeValue(value)
}

func normalizeValue(value interface{}) (*Result, error) {

	switch v := value.(type) {
	case nil:
		return &Result{}, nil
	case *Result:
		return v, nil
	case []JSON:
		return &Result{Data: v}, nil
	case JSON:
		return &Result{Data: []JSON{v}}, nil
	case []interface{}:
		rows := []JSON{}
		err := utils.Remarshal(v, &rows)
		if err != nil {
			return nil, fmt.Errorf("%w: procedure returned a list of non-objects", ErrorInvalidPayload)
		}
		return &Result{Data: rows}, nil
	}

	// scalars travel as a single synthetic row
	return &Result{Data: []JSON{{"result": value}}}, nil
}
