// Package pagination parses cursor pagination query parameters and wraps
// repository cursors in opaque page tokens.
package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Page size bounds applied when Options leaves them unset.
const (
	DefaultPageSize    = 50
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Params holds the parsed pagination inputs of a list request. Cursor is
// the decoded repository cursor value, empty on the first page.
type Params struct {
	PageSize int
	Cursor   string
}

// Options adjusts page-size bounds per handler.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

func (o Options) bounds() (def, max int) {
	max = o.MaxPageSize
	if max <= 0 {
		max = DefaultMaxPageSize
	}
	def = o.DefaultPageSize
	if def <= 0 {
		def = DefaultPageSize
	}
	if def > max {
		def = max
	}
	return def, max
}

// FromRequest reads pageSize and pageToken from the request query. The
// token must be one previously produced by EncodeToken.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}

	def, max := opts.bounds()
	params := Params{PageSize: def}

	if raw := strings.TrimSpace(r.URL.Query().Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			return Params{}, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
		case size <= 0:
			return Params{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
		case size > max:
			size = max
		}
		params.PageSize = size
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("pageToken")); raw != "" {
		cursor, err := DecodeToken(raw)
		if err != nil {
			return Params{}, err
		}
		params.Cursor = cursor
	}

	return params, nil
}
