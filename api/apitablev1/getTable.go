package apitablev1

import (
	"context"

	"github.com/fulldump/box"

	"github.com/fulldump/optimist/service"
)

func getTable(ctx context.Context) (*service.TableInfo, error) {

	s := GetServicer(ctx)

	tableName := box.GetUrlParameter(ctx, "tableName")

	t, err := s.GetTable(tableName)
	if err != nil {
		return nil, err
	}

	return &service.TableInfo{
		Name:  tableName,
		Total: t.Len(),
	}, nil
}
