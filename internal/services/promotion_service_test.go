package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/dishpatch/api/internal/domain"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return "repository error" }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

type fakePromoRepository struct {
	promos     map[string]PromoCode
	consumeErr error
	consumed   []string
	upserted   []PromoCode
}

func (f *fakePromoRepository) GetByCode(ctx context.Context, code string) (PromoCode, error) {
	promo, ok := f.promos[code]
	if !ok {
		return PromoCode{}, stubRepoError{notFound: true}
	}
	return promo, nil
}

func (f *fakePromoRepository) List(ctx context.Context, pagination domain.Pagination) (domain.CursorPage[PromoCode], error) {
	items := make([]PromoCode, 0, len(f.promos))
	for _, promo := range f.promos {
		items = append(items, promo)
	}
	return domain.CursorPage[PromoCode]{Items: items}, nil
}

func (f *fakePromoRepository) Upsert(ctx context.Context, promo PromoCode) (PromoCode, error) {
	f.upserted = append(f.upserted, promo)
	promo.ID = promo.Code
	return promo, nil
}

func (f *fakePromoRepository) Delete(ctx context.Context, id string) error {
	if _, ok := f.promos[id]; !ok {
		return stubRepoError{notFound: true}
	}
	delete(f.promos, id)
	return nil
}

func (f *fakePromoRepository) Consume(ctx context.Context, code string, now time.Time) (PromoCode, error) {
	if f.consumeErr != nil {
		return PromoCode{}, f.consumeErr
	}
	promo, ok := f.promos[code]
	if !ok {
		return PromoCode{}, stubRepoError{notFound: true}
	}
	promo.TimesUsed++
	f.promos[code] = promo
	f.consumed = append(f.consumed, code)
	return promo, nil
}

func newPromotionFixture(t *testing.T) (*fakePromoRepository, PromotionService) {
	t.Helper()
	repo := &fakePromoRepository{promos: map[string]PromoCode{}}
	service, err := NewPromotionService(PromotionServiceDeps{
		Promos:   repo,
		Currency: "USD",
		Clock:    func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewPromotionService error: %v", err)
	}
	return repo, service
}

func TestPromotionService_ValidateEligiblePercentage(t *testing.T) {
	repo, service := newPromotionFixture(t)
	repo.promos["SAVE10"] = PromoCode{
		Code:               "SAVE10",
		DiscountPercentage: money(t, "10"),
		MinimumOrderAmount: money(t, "5.00"),
		IsActive:           true,
	}

	result, err := service.ValidatePromoCode(context.Background(), "save10", money(t, "10.00"))
	if err != nil {
		t.Fatalf("ValidatePromoCode error: %v", err)
	}
	if !result.Eligible {
		t.Fatalf("expected eligible, got message %q", result.Message)
	}
	expectMoney(t, "discount", result.Discount, money(t, "1.00"))
}

func TestPromotionService_PercentageBeatsFixedAmount(t *testing.T) {
	repo, service := newPromotionFixture(t)
	repo.promos["BOTH"] = PromoCode{
		Code:               "BOTH",
		DiscountPercentage: money(t, "10"),
		DiscountAmount:     money(t, "4.00"),
		IsActive:           true,
	}

	result, err := service.ValidatePromoCode(context.Background(), "BOTH", money(t, "10.00"))
	if err != nil {
		t.Fatalf("ValidatePromoCode error: %v", err)
	}
	// Never additive and never "larger of the two": the percentage rules.
	expectMoney(t, "discount", result.Discount, money(t, "1.00"))
}

func TestPromotionService_FixedAmountFallback(t *testing.T) {
	repo, service := newPromotionFixture(t)
	repo.promos["FLAT2"] = PromoCode{
		Code:           "FLAT2",
		DiscountAmount: money(t, "2.00"),
		IsActive:       true,
		FreeDelivery:   true,
	}

	result, err := service.ValidatePromoCode(context.Background(), "FLAT2", money(t, "10.00"))
	if err != nil {
		t.Fatalf("ValidatePromoCode error: %v", err)
	}
	expectMoney(t, "discount", result.Discount, money(t, "2.00"))
	if !result.FreeDelivery {
		t.Fatal("expected free delivery to carry through")
	}
}

func TestPromotionService_RejectionMessages(t *testing.T) {
	repo, service := newPromotionFixture(t)
	expired := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	limit := 5
	repo.promos["INACTIVE"] = PromoCode{Code: "INACTIVE", IsActive: false}
	repo.promos["OLD"] = PromoCode{Code: "OLD", IsActive: true, ExpiresAt: &expired}
	repo.promos["USEDUP"] = PromoCode{Code: "USEDUP", IsActive: true, UsageLimit: &limit, TimesUsed: 5}
	repo.promos["BIGCART"] = PromoCode{Code: "BIGCART", IsActive: true, MinimumOrderAmount: money(t, "25.00")}

	cases := []struct {
		code    string
		message string
	}{
		{"MISSING", "Promo code not found"},
		{"INACTIVE", "Promo code not found"},
		{"OLD", "Promo code expired"},
		{"USEDUP", "Promo code usage limit reached"},
		{"BIGCART", "Minimum order amount of 25.00 not met"},
	}
	for _, tc := range cases {
		result, err := service.ValidatePromoCode(context.Background(), tc.code, money(t, "10.00"))
		if err != nil {
			t.Fatalf("ValidatePromoCode(%s) error: %v", tc.code, err)
		}
		if result.Eligible {
			t.Fatalf("ValidatePromoCode(%s) unexpectedly eligible", tc.code)
		}
		if result.Message != tc.message {
			t.Fatalf("ValidatePromoCode(%s) message = %q, want %q", tc.code, result.Message, tc.message)
		}
		expectMoney(t, "discount", result.Discount, decimal.Zero)
	}
}

func TestPromotionService_ValidateNeverConsumes(t *testing.T) {
	repo, service := newPromotionFixture(t)
	repo.promos["SAVE10"] = PromoCode{Code: "SAVE10", DiscountPercentage: money(t, "10"), IsActive: true}

	for i := 0; i < 3; i++ {
		if _, err := service.ValidatePromoCode(context.Background(), "SAVE10", money(t, "10.00")); err != nil {
			t.Fatalf("ValidatePromoCode error: %v", err)
		}
	}
	if got := repo.promos["SAVE10"].TimesUsed; got != 0 {
		t.Fatalf("timesUsed = %d after previews, want 0", got)
	}
	if len(repo.consumed) != 0 {
		t.Fatalf("consume called %d times by validation", len(repo.consumed))
	}
}

func TestPromotionService_Consume(t *testing.T) {
	repo, service := newPromotionFixture(t)
	repo.promos["SAVE10"] = PromoCode{Code: "SAVE10", IsActive: true}

	if err := service.ConsumePromoCode(context.Background(), "save10"); err != nil {
		t.Fatalf("ConsumePromoCode error: %v", err)
	}
	if got := repo.promos["SAVE10"].TimesUsed; got != 1 {
		t.Fatalf("timesUsed = %d, want 1", got)
	}

	if err := service.ConsumePromoCode(context.Background(), "missing"); !errors.Is(err, ErrPromoNotFound) {
		t.Fatalf("expected ErrPromoNotFound, got %v", err)
	}

	repo.consumeErr = stubRepoError{conflict: true}
	if err := service.ConsumePromoCode(context.Background(), "SAVE10"); !errors.Is(err, ErrPromoUnavailable) {
		t.Fatalf("expected ErrPromoUnavailable, got %v", err)
	}
}

func TestPromotionService_UpsertValidation(t *testing.T) {
	_, service := newPromotionFixture(t)

	if _, err := service.UpsertPromoCode(context.Background(), UpsertPromoCodeCommand{Promo: PromoCode{Code: ""}}); !errors.Is(err, ErrPromoInvalidCode) {
		t.Fatalf("expected ErrPromoInvalidCode for blank code, got %v", err)
	}
	if _, err := service.UpsertPromoCode(context.Background(), UpsertPromoCodeCommand{Promo: PromoCode{Code: "X", DiscountPercentage: money(t, "150")}}); !errors.Is(err, ErrPromoInvalidCode) {
		t.Fatalf("expected ErrPromoInvalidCode for out-of-range percentage, got %v", err)
	}

	saved, err := service.UpsertPromoCode(context.Background(), UpsertPromoCodeCommand{Promo: PromoCode{Code: " weekend ", DiscountAmount: money(t, "2.00"), IsActive: true}})
	if err != nil {
		t.Fatalf("UpsertPromoCode error: %v", err)
	}
	if saved.Code != "WEEKEND" {
		t.Fatalf("code = %q, want WEEKEND", saved.Code)
	}
}
