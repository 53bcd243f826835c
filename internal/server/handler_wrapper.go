// Provides the generic adapter turning typed handler functions into http.Handler.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	apierrors "github.com/maruel/localcrm/internal/errors"
	"github.com/maruel/localcrm/internal/server/handlers"
	"github.com/maruel/localcrm/internal/server/reqctx"
)

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters are extracted into struct fields tagged with `path:"name"` and
// query parameters into fields tagged with `query:"name"`.
// *In must implement handlers.Validatable.
//
// Example:
//
//	type GetCustomerRequest struct {
//	    ID string `path:"id" json:"-"`
//	}
//
//	func (h *CustomerHandler) Get(ctx context.Context, req *GetCustomerRequest) (*CustomerResponse, error)
func Wrap[In any, PtrIn interface {
	*In
	handlers.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), maxBodyBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		input := new(In)
		if !readAndDecodeBody(ctx, w, r, input, maxBodyBytes) {
			return
		}
		populatePathParams(r, input)
		populateQueryParams(r, input)
		if err := PtrIn(input).Validate(); err != nil {
			writeError(ctx, w, apierrors.BadRequest(err.Error()))
			return
		}
		output, err := fn(ctx, PtrIn(input))
		if err != nil {
			writeError(ctx, w, apierrors.From(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(output); err != nil {
			slog.ErrorContext(ctx, "Failed to encode response", "err", err)
		}
	})
}

// readAndDecodeBody reads the request body with a size limit and decodes JSON into
// input. It returns false if an error was written to the response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, maxBodyBytes int64) bool {
	if maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(ctx, w, apierrors.NewAPIError(http.StatusRequestEntityTooLarge, apierrors.ErrValidationFailed, "request body too large").
				WithDetail("max_bytes", maxErr.Limit))
			return false
		}
		writeError(ctx, w, apierrors.BadRequest("failed to read request body").Wrap(err))
		return false
	}
	if len(body) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			writeError(ctx, w, apierrors.BadRequest("invalid request body").Wrap(err))
			return false
		}
	}
	return true
}

// populatePathParams populates struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" || field.Type.Kind() != reflect.String {
			continue
		}
		if v := r.PathValue(tag); v != "" {
			elem.Field(i).SetString(v)
		}
	}
}

// populateQueryParams populates struct fields tagged with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		v := query.Get(tag)
		if v == "" {
			continue
		}
		//nolint:exhaustive // Only string and int query parameters are used.
		switch field.Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(v)
		case reflect.Int:
			if n, err := strconv.Atoi(v); err == nil {
				elem.Field(i).SetInt(int64(n))
			}
		default:
		}
	}
}

func structElem(input any) (reflect.Value, bool) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer || val.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return val.Elem(), true
}

// writeError writes err as a JSON error response. Server side failures are logged
// with the wrapped cause, which is never sent to the client.
func writeError(ctx context.Context, w http.ResponseWriter, err *apierrors.APIError) {
	level := slog.LevelWarn
	if err.StatusCode() >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "Handler error", "rid", reqctx.RequestID(ctx), "err", err, "statusCode", err.StatusCode(), "code", err.Code())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())
	if err := json.NewEncoder(w).Encode(err.Response()); err != nil {
		slog.ErrorContext(ctx, "Failed to encode error response", "err", err)
	}
}
