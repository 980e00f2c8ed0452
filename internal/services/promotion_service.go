package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/dishpatch/api/internal/domain"
	"github.com/dishpatch/api/internal/repositories"
)

var (
	// ErrPromoRepositoryMissing indicates the promo repository dependency is absent.
	ErrPromoRepositoryMissing = errors.New("promotion service: repository is not configured")
	// ErrPromoInvalidCode signals a missing or malformed promo code.
	ErrPromoInvalidCode = errors.New("promotion service: invalid promo code")
	// ErrPromoNotFound indicates no promo exists for the provided code.
	ErrPromoNotFound = errors.New("promotion service: promo code not found")
	// ErrPromoUnavailable indicates the code exists but can no longer be redeemed.
	ErrPromoUnavailable = errors.New("promotion service: promo code unavailable")
)

// Rejection messages surfaced verbatim to clients during live promo input.
const (
	promoMsgNotFound   = "Promo code not found"
	promoMsgExpired    = "Promo code expired"
	promoMsgExhausted  = "Promo code usage limit reached"
	promoMsgMinimumFmt = "Minimum order amount of %s not met"
)

// PromotionServiceDeps bundles dependencies required to construct a PromotionService.
type PromotionServiceDeps struct {
	Promos   repositories.PromoCodeRepository
	Currency string
	Clock    func() time.Time
}

type promotionService struct {
	repo     repositories.PromoCodeRepository
	currency string
	clock    func() time.Time
}

// NewPromotionService wires a PromotionService backed by the promo registry.
func NewPromotionService(deps PromotionServiceDeps) (PromotionService, error) {
	if deps.Promos == nil {
		return nil, ErrPromoRepositoryMissing
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		return nil, errors.New("promotion service: currency is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &promotionService{
		repo:     deps.Promos,
		currency: currency,
		clock:    func() time.Time { return clock().UTC() },
	}, nil
}

// ValidatePromoCode checks a code against a subtotal without redeeming it.
// Ineligibility is reported through the returned value so cart previews can
// degrade gracefully; only infrastructure failures surface as errors. An
// inactive code is indistinguishable from an unknown one on purpose.
func (s *promotionService) ValidatePromoCode(ctx context.Context, code string, subtotal decimal.Decimal) (PromoValidation, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return PromoValidation{Message: promoMsgNotFound}, nil
	}

	promo, err := s.repo.GetByCode(ctx, normalized)
	if err != nil {
		if repositories.IsNotFound(err) {
			return PromoValidation{Code: normalized, Message: promoMsgNotFound}, nil
		}
		return PromoValidation{}, err
	}

	result := PromoValidation{Code: promo.Code}
	switch {
	case !promo.IsActive:
		result.Message = promoMsgNotFound
	case promo.Expired(s.clock()):
		result.Message = promoMsgExpired
	case promo.Exhausted():
		result.Message = promoMsgExhausted
	case subtotal.LessThan(promo.MinimumOrderAmount):
		result.Message = fmt.Sprintf(promoMsgMinimumFmt, domain.FormatMoney(promo.MinimumOrderAmount, s.currency))
	default:
		result.Eligible = true
		result.Discount = discountFor(promo, subtotal, s.currency)
		result.FreeDelivery = promo.FreeDelivery
	}
	return result, nil
}

// discountFor applies the percentage when one is configured; the fixed
// amount is only a fallback, never additive.
func discountFor(promo PromoCode, subtotal decimal.Decimal, currency string) decimal.Decimal {
	if promo.DiscountPercentage.IsPositive() {
		hundred := decimal.NewFromInt(100)
		return domain.RoundMoney(subtotal.Mul(promo.DiscountPercentage).Div(hundred), currency)
	}
	return domain.RoundMoney(promo.DiscountAmount, currency)
}

func (s *promotionService) GetPromoCode(ctx context.Context, code string) (PromoCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return PromoCode{}, ErrPromoInvalidCode
	}
	promo, err := s.repo.GetByCode(ctx, normalized)
	if err != nil {
		if repositories.IsNotFound(err) {
			return PromoCode{}, ErrPromoNotFound
		}
		return PromoCode{}, err
	}
	return promo, nil
}

func (s *promotionService) ListPromoCodes(ctx context.Context, filter PromoCodeListFilter) (domain.CursorPage[PromoCode], error) {
	return s.repo.List(ctx, filter.Pagination)
}

func (s *promotionService) UpsertPromoCode(ctx context.Context, cmd UpsertPromoCodeCommand) (PromoCode, error) {
	promo := cmd.Promo
	promo.Code = strings.ToUpper(strings.TrimSpace(promo.Code))
	if promo.Code == "" {
		return PromoCode{}, ErrPromoInvalidCode
	}
	if promo.DiscountPercentage.IsNegative() || promo.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return PromoCode{}, fmt.Errorf("%w: discount percentage %s out of range", ErrPromoInvalidCode, promo.DiscountPercentage)
	}
	if promo.DiscountAmount.IsNegative() || promo.MinimumOrderAmount.IsNegative() {
		return PromoCode{}, fmt.Errorf("%w: negative amount", ErrPromoInvalidCode)
	}
	if promo.UsageLimit != nil && *promo.UsageLimit <= 0 {
		return PromoCode{}, fmt.Errorf("%w: usage limit must be positive", ErrPromoInvalidCode)
	}

	now := s.clock()
	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = now
	}
	promo.UpdatedAt = now
	saved, err := s.repo.Upsert(ctx, promo)
	if err != nil {
		return PromoCode{}, err
	}
	return saved, nil
}

func (s *promotionService) DeletePromoCode(ctx context.Context, code string) error {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return ErrPromoInvalidCode
	}
	if err := s.repo.Delete(ctx, normalized); err != nil {
		if repositories.IsNotFound(err) {
			return ErrPromoNotFound
		}
		return err
	}
	return nil
}

// ConsumePromoCode atomically increments the usage counter. It is invoked
// only by order placement; previews call ValidatePromoCode instead so usage
// counts are never inflated by repeated quotes.
func (s *promotionService) ConsumePromoCode(ctx context.Context, code string) error {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return ErrPromoInvalidCode
	}
	if _, err := s.repo.Consume(ctx, normalized, s.clock()); err != nil {
		switch {
		case repositories.IsNotFound(err):
			return ErrPromoNotFound
		case repositories.IsConflict(err):
			return ErrPromoUnavailable
		}
		return err
	}
	return nil
}
