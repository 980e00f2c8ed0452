package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dishpatch/api/internal/domain"
	pfirestore "github.com/dishpatch/api/internal/platform/firestore"
	"github.com/dishpatch/api/internal/repositories"
)

const promoCodeCollection = "promo_codes"

type promoCodeDocument struct {
	Code               string     `firestore:"code"`
	Description        string     `firestore:"description,omitempty"`
	DiscountPercentage string     `firestore:"discountPercentage,omitempty"`
	DiscountAmount     string     `firestore:"discountAmount,omitempty"`
	FreeDelivery       bool       `firestore:"freeDelivery"`
	MinimumOrderAmount string     `firestore:"minimumOrderAmount,omitempty"`
	IsActive           bool       `firestore:"isActive"`
	ExpiresAt          *time.Time `firestore:"expiresAt,omitempty"`
	UsageLimit         *int       `firestore:"usageLimit,omitempty"`
	TimesUsed          int        `firestore:"timesUsed"`
	CreatedAt          time.Time  `firestore:"createdAt"`
	UpdatedAt          time.Time  `firestore:"updatedAt"`
}

func (d promoCodeDocument) toDomain(id string) (domain.PromoCode, error) {
	percentage, err := decodeDecimal(d.DiscountPercentage)
	if err != nil {
		return domain.PromoCode{}, fmt.Errorf("promo %s: %w", id, err)
	}
	amount, err := decodeDecimal(d.DiscountAmount)
	if err != nil {
		return domain.PromoCode{}, fmt.Errorf("promo %s: %w", id, err)
	}
	minimum, err := decodeDecimal(d.MinimumOrderAmount)
	if err != nil {
		return domain.PromoCode{}, fmt.Errorf("promo %s: %w", id, err)
	}
	return domain.PromoCode{
		ID:                 id,
		Code:               d.Code,
		Description:        d.Description,
		DiscountPercentage: percentage,
		DiscountAmount:     amount,
		FreeDelivery:       d.FreeDelivery,
		MinimumOrderAmount: minimum,
		IsActive:           d.IsActive,
		ExpiresAt:          d.ExpiresAt,
		UsageLimit:         d.UsageLimit,
		TimesUsed:          d.TimesUsed,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}, nil
}

func promoCodeToDocument(promo domain.PromoCode) promoCodeDocument {
	return promoCodeDocument{
		Code:               normalizePromoCode(promo.Code),
		Description:        strings.TrimSpace(promo.Description),
		DiscountPercentage: encodeDecimal(promo.DiscountPercentage),
		DiscountAmount:     encodeDecimal(promo.DiscountAmount),
		FreeDelivery:       promo.FreeDelivery,
		MinimumOrderAmount: encodeDecimal(promo.MinimumOrderAmount),
		IsActive:           promo.IsActive,
		ExpiresAt:          promo.ExpiresAt,
		UsageLimit:         promo.UsageLimit,
		TimesUsed:          promo.TimesUsed,
		CreatedAt:          promo.CreatedAt,
		UpdatedAt:          promo.UpdatedAt,
	}
}

// Promo codes are stored under their normalised uppercase code so lookups
// are a direct document get.
func normalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PromoCodeRepository persists promo codes in Firestore.
type PromoCodeRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[promoCodeDocument]
}

// NewPromoCodeRepository constructs a Firestore-backed promo code
// repository.
func NewPromoCodeRepository(provider *pfirestore.Provider) (*PromoCodeRepository, error) {
	if provider == nil {
		return nil, errors.New("promo code repository requires firestore provider")
	}
	return &PromoCodeRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[promoCodeDocument](provider, promoCodeCollection, nil),
	}, nil
}

// GetByCode fetches a promo code by its case-insensitive code.
func (r *PromoCodeRepository) GetByCode(ctx context.Context, code string) (domain.PromoCode, error) {
	normalized := normalizePromoCode(code)
	if normalized == "" {
		return domain.PromoCode{}, pfirestore.NotFoundError("promo_codes.get", errors.New("empty code"))
	}
	doc, err := r.base.Get(ctx, normalized)
	if err != nil {
		return domain.PromoCode{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// List returns a page of promo codes ordered by creation time, newest
// first.
func (r *PromoCodeRepository) List(ctx context.Context, pagination domain.Pagination) (domain.CursorPage[domain.PromoCode], error) {
	limit := pagination.Limit
	if limit <= 0 {
		limit = 50
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.OrderBy("createdAt", firestore.Desc)
		if token := strings.TrimSpace(pagination.Token); token != "" {
			if cursor, parseErr := time.Parse(time.RFC3339Nano, token); parseErr == nil {
				query = query.StartAfter(cursor)
			}
		}
		return query.Limit(limit + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.PromoCode]{}, err
	}

	page := domain.CursorPage[domain.PromoCode]{}
	for i, doc := range docs {
		if i == limit {
			page.NextCursor = docs[limit-1].Data.CreatedAt.Format(time.RFC3339Nano)
			break
		}
		promo, err := doc.Data.toDomain(doc.ID)
		if err != nil {
			return domain.CursorPage[domain.PromoCode]{}, err
		}
		page.Items = append(page.Items, promo)
	}
	return page, nil
}

// Upsert creates or replaces the promo code document.
func (r *PromoCodeRepository) Upsert(ctx context.Context, promo domain.PromoCode) (domain.PromoCode, error) {
	normalized := normalizePromoCode(promo.Code)
	if normalized == "" {
		return domain.PromoCode{}, errors.New("promo code repository: code is required")
	}
	promo.Code = normalized
	promo.ID = normalized
	if _, err := r.base.Set(ctx, normalized, promoCodeToDocument(promo)); err != nil {
		return domain.PromoCode{}, err
	}
	return promo, nil
}

// Delete removes the promo code document.
func (r *PromoCodeRepository) Delete(ctx context.Context, id string) error {
	return r.base.Delete(ctx, normalizePromoCode(id))
}

// Consume atomically increments timesUsed after re-checking the code is
// still redeemable inside the transaction. Callers use this at order
// placement only; pricing previews never consume.
func (r *PromoCodeRepository) Consume(ctx context.Context, code string, now time.Time) (domain.PromoCode, error) {
	normalized := normalizePromoCode(code)
	if normalized == "" {
		return domain.PromoCode{}, pfirestore.NotFoundError("promo_codes.consume", errors.New("empty code"))
	}

	var consumed domain.PromoCode
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, normalized)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NotFoundError("promo_codes.consume", fmt.Errorf("promo %s not found", normalized))
			}
			return err
		}

		var doc promoCodeDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("decode promo %s: %w", normalized, err)
		}

		promo, err := doc.toDomain(snapshot.Ref.ID)
		if err != nil {
			return err
		}
		if !promo.IsActive || promo.Expired(now) {
			return pfirestore.ConflictError("promo_codes.consume", fmt.Errorf("promo %s no longer redeemable", normalized))
		}
		if promo.Exhausted() {
			return pfirestore.ConflictError("promo_codes.consume", fmt.Errorf("promo %s usage limit reached", normalized))
		}

		updates := []firestore.Update{
			{Path: "timesUsed", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: now.UTC()},
		}
		if err := tx.Update(ref, updates); err != nil {
			return err
		}

		promo.TimesUsed++
		promo.UpdatedAt = now.UTC()
		consumed = promo
		return nil
	})
	if err != nil {
		return domain.PromoCode{}, pfirestore.WrapError("promo_codes.consume", err)
	}
	return consumed, nil
}

var _ repositories.PromoCodeRepository = (*PromoCodeRepository)(nil)
