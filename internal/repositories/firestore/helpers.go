// Package firestore contains the Firestore-backed implementations of the
// repository interfaces.
package firestore

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Monetary amounts are stored as decimal strings so values round-trip
// exactly and never pass through binary floating point.
func encodeDecimal(value decimal.Decimal) string {
	return value.String()
}

func decodeDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %q: %w", raw, err)
	}
	return value, nil
}

func encodeDecimalPtr(value *decimal.Decimal) *string {
	if value == nil {
		return nil
	}
	encoded := value.String()
	return &encoded
}

func decodeDecimalPtr(raw *string) (*decimal.Decimal, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	value, err := decodeDecimal(*raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
