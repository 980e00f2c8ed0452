package pagination

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestFromRequestDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/restaurants", nil)

	params, err := FromRequest(r, Options{})
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d got %d", DefaultPageSize, params.PageSize)
	}
	if params.Cursor != "" {
		t.Fatalf("expected empty cursor got %q", params.Cursor)
	}
}

func TestFromRequestPageSize(t *testing.T) {
	opts := Options{DefaultPageSize: 25, MaxPageSize: 40}

	r := httptest.NewRequest("GET", "/restaurants?pageSize=30", nil)
	params, err := FromRequest(r, opts)
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.PageSize != 30 {
		t.Fatalf("expected page size 30 got %d", params.PageSize)
	}

	r = httptest.NewRequest("GET", "/restaurants?pageSize=400", nil)
	params, err = FromRequest(r, opts)
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.PageSize != opts.MaxPageSize {
		t.Fatalf("expected page size clamped to %d got %d", opts.MaxPageSize, params.PageSize)
	}
}

func TestFromRequestInvalidPageSize(t *testing.T) {
	r := httptest.NewRequest("GET", "/restaurants?pageSize=abc", nil)
	if _, err := FromRequest(r, Options{}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize got %v", err)
	}

	r = httptest.NewRequest("GET", "/restaurants?pageSize=0", nil)
	if _, err := FromRequest(r, Options{}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize for zero got %v", err)
	}
}

func TestFromRequestDecodesToken(t *testing.T) {
	token := EncodeToken("Udon House")
	r := httptest.NewRequest("GET", "/restaurants?pageToken="+token, nil)

	params, err := FromRequest(r, Options{})
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.Cursor != "Udon House" {
		t.Fatalf("expected decoded cursor, got %q", params.Cursor)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token := EncodeToken("2025-01-01T00:00:00Z")
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	cursor, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if cursor != "2025-01-01T00:00:00Z" {
		t.Fatalf("unexpected cursor %q", cursor)
	}
}

func TestDecodeTokenInvalid(t *testing.T) {
	if _, err := DecodeToken("!!not-base64!!"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken got %v", err)
	}
}

func TestEncodeTokenEmptyCursor(t *testing.T) {
	if token := EncodeToken(""); token != "" {
		t.Fatalf("expected empty token for empty cursor got %q", token)
	}
}
