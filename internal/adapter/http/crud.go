package http

import (
	"context"
	"net/http"
)

// Generic handler factories shared by the resource handlers. Path ids are
// read from the {id} route parameter; errors go through writeDomainError
// with notFoundMsg for ErrNotFound.

// listOf renders the tenant-scoped collection returned by fn. A nil slice
// becomes [] so clients never see null.
func listOf[T any](fn func(ctx context.Context) ([]T, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := fn(r.Context())
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// byID renders the resource fn returns for the path id.
func byID[T any](fn func(ctx context.Context, id string) (*T, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := fn(r.Context(), urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// withBody decodes Req, passes it to fn together with the path id (empty on
// collection routes) and renders the result with status.
func withBody[Req, Res any](bodyLimit int64, status int, fn func(ctx context.Context, id string, req Req) (*Res, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := readJSON[Req](w, r, bodyLimit)
		if !ok {
			return
		}
		res, err := fn(r.Context(), urlParam(r, "id"), req)
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		writeJSON(w, status, res)
	}
}

// deleteByID removes the resource at the path id and answers 204.
func deleteByID(fn func(ctx context.Context, id string) error, notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), urlParam(r, "id")); err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
