package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dishpatch/api/internal/domain"
	"github.com/dishpatch/api/internal/platform/httpx"
	"github.com/dishpatch/api/internal/platform/pagination"
)

const maxBodySize = 64 * 1024

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON reads a size-limited JSON body into dst, rejecting unknown
// fields so typos surface as 400s instead of silently dropped input.
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	defer body.Close()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected trailing data in body")
	}
	return nil
}

// requestPagination translates page query parameters into the cursor form
// repositories understand.
func requestPagination(r *http.Request) (domain.Pagination, error) {
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		return domain.Pagination{}, err
	}
	return domain.Pagination{Limit: params.PageSize, Token: params.Cursor}, nil
}

// nextPageToken converts a repository cursor into the opaque token clients
// echo back on the next request.
func nextPageToken(cursor string) string {
	return pagination.EncodeToken(cursor)
}

func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(r.Context(), w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
}
