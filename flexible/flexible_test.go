package flexible

import (
	"errors"
	"testing"

	"github.com/fulldump/biff"
)

func TestValidate(t *testing.T) {

	err := Validate("players", Settings{
		Operation: OperationInsert,
		Payload:   JSON{"id": "a"},
	})
	biff.AssertNil(err)

	err = Validate("players", Settings{
		Operation: OperationUpdate,
		Payload:   JSON{"score": 10},
		Filter:    JSON{"team": "red"},
	})
	biff.AssertNil(err)

	err = Validate("players", Settings{
		Operation: OperationDelete,
		Filter:    JSON{"team": "red"},
	})
	biff.AssertNil(err)
}

func TestValidateMissingTable(t *testing.T) {

	err := Validate("", Settings{Operation: OperationInsert, Payload: JSON{}})
	biff.AssertEqual(errors.Is(err, ErrorInvalidSettings), true)
}

func TestValidateMissingPayload(t *testing.T) {

	err := Validate("players", Settings{Operation: OperationInsert})
	biff.AssertEqual(errors.Is(err, ErrorInvalidSettings), true)

	err = Validate("players", Settings{Operation: OperationUpsert})
	biff.AssertEqual(errors.Is(err, ErrorInvalidSettings), true)
}

func TestValidateUpdateNeedsFilter(t *testing.T) {

	err := Validate("players", Settings{
		Operation: OperationUpdate,
		Payload:   JSON{"score": 10},
	})
	biff.AssertEqual(errors.Is(err, ErrorInvalidSettings), true)
}

func TestValidateDeleteRejectsPayload(t *testing.T) {

	err := Validate("players", Settings{
		Operation: OperationDelete,
		Filter:    JSON{"team": "red"},
		Payload:   JSON{"boom": true},
	})
	biff.AssertEqual(errors.Is(err, ErrorInvalidSettings), true)
}

func TestValidateDeleteNeedsFilter(t *testing.T) {

	err := Validate("players", Settings{Operation: OperationDelete})
	biff.AssertEqual(errors.Is(err, ErrorInvalidSettings), true)
}

func TestValidateUnknownOperation(t *testing.T) {

	err := Validate("players", Settings{Operation: "explode"})
	biff.AssertEqual(errors.Is(err, ErrorInvalidSettings), true)
}
