package optimistic

import (
	"fmt"
)

// Operation names the optimistic behavior a mutation requests. It can
// differ from the real operation: a flexible upsert may ask for an
// editRow optimistic behavior, a remote procedure may ask for any of
// them.
type Operation string

const (
	OperationUnset       Operation = ""
	OperationAddRow      Operation = "addRow"
	OperationEditRow     Operation = "editRow"
	OperationDeleteRow   Operation = "deleteRow"
	OperationReplaceData Operation = "replaceData"
)

// Choose picks the transform for the requested operation, given which
// speculative inputs were actually supplied. Without an operation, or
// without the input the operation needs, the identity transform is
// chosen. An unknown operation is a configuration bug and fails.
func (c Config) Choose(operation Operation, row JSON, rows []JSON, count *int64) (Transform, error) {

	switch operation {
	case OperationUnset:
		return c.Identity(), nil
	case OperationAddRow:
		if row == nil {
			return c.Identity(), nil
		}
		return c.Insert(row), nil
	case OperationEditRow:
		if row == nil {
			return c.Identity(), nil
		}
		return c.Edit(row), nil
	case OperationDeleteRow:
		if row == nil {
			return c.Identity(), nil
		}
		return c.Delete(row)
	case OperationReplaceData:
		if rows == nil {
			return c.Identity(), nil
		}
		return c.Replace(rows, count), nil
	}

	return nil, fmt.Errorf("%w: '%s'", ErrorInvalidOperation, operation)
}
