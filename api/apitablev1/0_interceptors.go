package apitablev1

import (
	"context"

	"github.com/fulldump/optimist/service"
)

const ContextServicerKey = "2f8e1c52-7f3f-11ee-a4a0-77fca3a0d3db"

func SetServicer(ctx context.Context, s service.Servicer) context.Context {
	return context.WithValue(ctx, ContextServicerKey, s)
}

func GetServicer(ctx context.Context) service.Servicer {
	return ctx.Value(ContextServicerKey).(service.Servicer) // TODO: can raise panic :D
}
