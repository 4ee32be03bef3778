package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/optimist/flexible"
	"github.com/fulldump/optimist/service"
	"github.com/fulldump/optimist/store"
	"github.com/fulldump/optimist/table"
)

type PrettyError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (p PrettyError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"error": struct {
			Message     string `json:"message"`
			Description string `json:"description"`
		}{
			p.Message,
			p.Description,
		},
	})
}

func (p PrettyError) MarshalTo(w io.Writer) error {
	return json.NewEncoder(w).Encode(p)
}

func InterceptorUnavailable(s service.Servicer) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {

			status := s.GetStatus()
			if status == store.StatusOpening {
				box.SetError(ctx, fmt.Errorf("temporary unavailable: opening"))
				return
			}
			if status == store.StatusClosing {
				box.SetError(ctx, fmt.Errorf("temporary unavailable: closing"))
				return
			}
			next(ctx)
		}
	}
}

func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {

		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}
		w := box.GetResponse(ctx)

		w.WriteHeader(errorStatus(err))
		PrettyError{
			Message:     err.Error(),
			Description: errorDescription(ctx, err),
		}.MarshalTo(w)
	}
}

func errorStatus(err error) int {

	switch {
	case errors.Is(err, box.ErrResourceNotFound),
		errors.Is(err, service.ErrorTableNotFound),
		errors.Is(err, service.ErrorProcedureNotFound),
		errors.Is(err, table.ErrorRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, box.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, table.ErrorRowAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, table.ErrorInvalidID),
		errors.Is(err, flexible.ErrorInvalidSettings),
		errors.Is(err, service.ErrorInvalidPayload):
		return http.StatusBadRequest
	}

	if _, ok := err.(*json.SyntaxError); ok {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

func errorDescription(ctx context.Context, err error) string {

	if errors.Is(err, box.ErrResourceNotFound) {
		return fmt.Sprintf("resource '%s' not found", box.GetRequest(ctx).URL.String())
	}
	if errors.Is(err, box.ErrMethodNotAllowed) {
		return fmt.Sprintf("method '%s' not allowed", box.GetRequest(ctx).Method)
	}
	if _, ok := err.(*json.SyntaxError); ok {
		return "Malformed JSON"
	}
	if errorStatus(err) == http.StatusInternalServerError {
		return "Unexpected error"
	}

	return err.Error()
}
