// Package apitablev1 has the v1 handlers for tables and procedures.
// Row operations are colon actions on the table resource, for example
// POST /v1/tables/players:insert.
package apitablev1

import (
	"github.com/fulldump/box"

	"github.com/fulldump/optimist/service"
)

type JSON = map[string]interface{}

func BuildV1Table(v1 *box.R, s service.Servicer) *box.R {

	tables := v1.Resource("/tables").
		WithActions(
			box.Get(listTables),
		)

	v1.Resource("/tables/{tableName}").
		WithActions(
			box.Get(getTable),
			box.ActionPost(insert),
			box.ActionPost(update),
			box.ActionPost(remove),
			box.ActionPost(selectRows),
			box.ActionPost(runFlexible).WithName("flexible"),
			box.ActionPost(dropTable),
		)

	v1.Resource("/procedures/{procedureName}").
		WithActions(
			box.ActionPost(call),
		)

	return tables
}
