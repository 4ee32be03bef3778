package apitablev1

import (
	"context"

	"github.com/fulldump/box"
)

func dropTable(ctx context.Context) error {

	s := GetServicer(ctx)

	tableName := box.GetUrlParameter(ctx, "tableName")

	return s.DropTable(tableName)
}
