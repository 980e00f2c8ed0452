package auth

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTrackTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewTrackTokenIssuer("test-secret", time.Hour, fixedClock(now))
	if err != nil {
		t.Fatalf("NewTrackTokenIssuer returned error: %v", err)
	}

	token, err := issuer.Issue("order-123")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	orderID, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if orderID != "order-123" {
		t.Fatalf("expected order-123 got %q", orderID)
	}
}

func TestTrackTokenExpired(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewTrackTokenIssuer("test-secret", time.Hour, fixedClock(issued))
	if err != nil {
		t.Fatalf("NewTrackTokenIssuer returned error: %v", err)
	}

	token, err := issuer.Issue("order-123")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	later, err := NewTrackTokenIssuer("test-secret", time.Hour, fixedClock(issued.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("NewTrackTokenIssuer returned error: %v", err)
	}
	if _, err := later.Verify(token); !errors.Is(err, ErrTrackTokenExpired) {
		t.Fatalf("expected ErrTrackTokenExpired got %v", err)
	}
}

func TestTrackTokenWrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewTrackTokenIssuer("test-secret", time.Hour, fixedClock(now))
	if err != nil {
		t.Fatalf("NewTrackTokenIssuer returned error: %v", err)
	}
	other, err := NewTrackTokenIssuer("other-secret", time.Hour, fixedClock(now))
	if err != nil {
		t.Fatalf("NewTrackTokenIssuer returned error: %v", err)
	}

	token, err := issuer.Issue("order-123")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrTrackTokenInvalid) {
		t.Fatalf("expected ErrTrackTokenInvalid got %v", err)
	}
}
