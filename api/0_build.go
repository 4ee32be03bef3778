// Package api exposes the row backend over HTTP, with the table and
// procedure resources under /v1.
package api

import (
	"context"

	"github.com/fulldump/box"

	"github.com/fulldump/optimist/api/apitablev1"
	"github.com/fulldump/optimist/service"
)

func Build(s service.Servicer, version string) *box.B {

	b := box.NewBox()

	v1 := b.Resource("/v1").
		WithInterceptors(
			injectServicer(s),
		)
	apitablev1.BuildV1Table(v1, s)

	b.Resource("/release").
		WithActions(
			box.Get(func() string {
				return version
			}).WithName("release"),
		)

	return b
}

func injectServicer(s service.Servicer) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(apitablev1.SetServicer(ctx, s))
		}
	}
}
