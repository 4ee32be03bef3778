// Package flexible describes the filter oriented mutation shape: a
// table, an operation kind and an optional filter, instead of a fixed
// row payload. It is shared by the client (to request operations) and
// the server (to validate and execute them).
package flexible

import (
	"errors"
	"fmt"
)

type JSON = map[string]interface{}

// Operation is the closed set of flexible operation kinds.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationUpsert Operation = "upsert"
	OperationDelete Operation = "delete"
)

var ErrorInvalidSettings = errors.New("invalid flexible operation")

// Settings for one flexible operation.
type Settings struct {
	Operation Operation   `json:"operation"`
	Payload   interface{} `json:"payload,omitempty"`
	Filter    JSON        `json:"filter,omitempty"`

	// FetchAfter requests the confirmed rows back once the operation
	// is applied.
	FetchAfter bool `json:"fetchAfter,omitempty"`
}

// Validate checks table and settings consistency before any backend
// work starts: insert and upsert need a payload, update needs payload
// and filter, delete needs a filter. Failures are caller bugs, not
// runtime conditions.
func Validate(table string, settings Settings) error {

	if table == "" {
		return fmt.Errorf("%w: table name is required", ErrorInvalidSettings)
	}

	switch settings.Operation {
	case OperationInsert, OperationUpsert:
		if settings.Payload == nil {
			return fmt.Errorf("%w: '%s' needs a payload", ErrorInvalidSettings, settings.Operation)
		}
	case OperationUpdate:
		if settings.Payload == nil {
			return fmt.Errorf("%w: 'update' needs a payload", ErrorInvalidSettings)
		}
		if len(settings.Filter) == 0 {
			return fmt.Errorf("%w: 'update' needs a filter", ErrorInvalidSettings)
		}
	case OperationDelete:
		if len(settings.Filter) == 0 {
			return fmt.Errorf("%w: 'delete' needs a filter", ErrorInvalidSettings)
		}
		if settings.Payload != nil {
			return fmt.Errorf("%w: 'delete' does not take a payload", ErrorInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unknown operation '%s'", ErrorInvalidSettings, settings.Operation)
	}

	return nil
}
