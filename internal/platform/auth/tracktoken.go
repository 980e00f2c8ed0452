package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const trackTokenIssuer = "dishpatch-api"

var (
	// ErrTrackTokenInvalid signals a malformed or badly signed tracking token.
	ErrTrackTokenInvalid = errors.New("auth: tracking token invalid")
	// ErrTrackTokenExpired signals an expired tracking token.
	ErrTrackTokenExpired = errors.New("auth: tracking token expired")
)

// TrackClaims is the claim set carried by public order tracking tokens.
type TrackClaims struct {
	OrderID string `json:"oid"`
	jwt.RegisteredClaims
}

// TrackTokenIssuer mints and verifies HS256 tokens that grant read access
// to a single order's tracking state without authentication.
type TrackTokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTrackTokenIssuer constructs a TrackTokenIssuer. The clock defaults to
// time.Now when nil.
func NewTrackTokenIssuer(secret string, ttl time.Duration, now func() time.Time) (*TrackTokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: tracking token secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: tracking token ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &TrackTokenIssuer{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// Issue mints a tracking token scoped to the given order.
func (t *TrackTokenIssuer) Issue(orderID string) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", errors.New("auth: order id is required")
	}

	issuedAt := t.now().UTC()
	claims := TrackClaims{
		OrderID: orderID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    trackTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign tracking token: %w", err)
	}
	return signed, nil
}

// Verify parses the token and returns the order ID it grants access to.
func (t *TrackTokenIssuer) Verify(tokenStr string) (string, error) {
	claims := &TrackClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithIssuer(trackTokenIssuer),
	)

	_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTrackTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTrackTokenInvalid, err)
	}

	if strings.TrimSpace(claims.OrderID) == "" {
		return "", ErrTrackTokenInvalid
	}
	return claims.OrderID, nil
}
