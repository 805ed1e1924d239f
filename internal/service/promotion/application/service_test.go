// internal/service/promotion/application/service_test.go
package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/service/promotion/domain"
)

type fakeCouponRepo struct {
	coupons    map[string]*domain.Coupon
	increments int
}

func newFakeCouponRepo(coupons ...*domain.Coupon) *fakeCouponRepo {
	repo := &fakeCouponRepo{coupons: make(map[string]*domain.Coupon)}
	for _, c := range coupons {
		repo.coupons[c.Code] = c
	}
	return repo
}

func (r *fakeCouponRepo) FindByCode(_ context.Context, code string) (*domain.Coupon, error) {
	c, ok := r.coupons[code]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "coupon not found")
	}
	return c, nil
}

func (r *fakeCouponRepo) FindByID(_ context.Context, id uint64) (*domain.Coupon, error) {
	for _, c := range r.coupons {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "coupon not found")
}

func (r *fakeCouponRepo) FindByVendor(_ context.Context, vendorID uint64) ([]domain.Coupon, error) {
	var out []domain.Coupon
	for _, c := range r.coupons {
		if c.VendorID == vendorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCouponRepo) Create(_ context.Context, coupon *domain.Coupon) error {
	coupon.ID = uint64(len(r.coupons) + 1)
	r.coupons[coupon.Code] = coupon
	return nil
}

func (r *fakeCouponRepo) SetActive(_ context.Context, id uint64, active bool) error {
	for _, c := range r.coupons {
		if c.ID == id {
			c.IsActive = active
			return nil
		}
	}
	return apperrors.New(apperrors.CodeNotFound, "coupon not found")
}

func (r *fakeCouponRepo) IncrementUsage(_ context.Context, id uint64) error {
	for _, c := range r.coupons {
		if c.ID == id {
			c.UsageCount++
			r.increments++
			return nil
		}
	}
	return apperrors.New(apperrors.CodeNotFound, "coupon not found")
}

// passRuleEngine 放行一切表达式。
type passRuleEngine struct{}

func (passRuleEngine) Evaluate(string, domain.Fact) (bool, error) { return true, nil }

type denyRuleEngine struct{}

func (denyRuleEngine) Evaluate(string, domain.Fact) (bool, error) { return false, nil }

type fakeUsageCounter struct {
	used int
}

func (c *fakeUsageCounter) CountCouponUsageByUser(context.Context, uint64, uint64) (int, error) {
	return c.used, nil
}

func intPtr(v int) *int { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func save10() *domain.Coupon {
	return &domain.Coupon{
		ID:                9,
		Code:              "SAVE10",
		Type:              domain.TypeFixedAmount,
		DiscountValue:     decimal.NewFromInt(10),
		MinPurchaseAmount: decPtr(50),
		IsActive:          true,
		VendorID:          2,
	}
}

func applyReq(amount int64) *ApplyCouponRequest {
	return &ApplyCouponRequest{
		Code:        "SAVE10",
		UserID:      7,
		OrderAmount: decimal.NewFromInt(amount),
		ItemCount:   2,
	}
}

func TestApplyCoupon(t *testing.T) {
	repo := newFakeCouponRepo(save10())
	svc := NewPromotionService(repo, passRuleEngine{}, &fakeUsageCounter{}, otel.Tracer("test"))

	applied, err := svc.ApplyCoupon(context.Background(), applyReq(120))

	require.NoError(t, err)
	assert.Equal(t, uint64(9), applied.CouponID)
	assert.Equal(t, "10.00", applied.Discount.StringFixed(2))
	assert.Equal(t, 1, repo.increments)
}

func TestApplyCouponBelowMinimum(t *testing.T) {
	repo := newFakeCouponRepo(save10())
	svc := NewPromotionService(repo, passRuleEngine{}, &fakeUsageCounter{}, otel.Tracer("test"))

	_, err := svc.ApplyCoupon(context.Background(), applyReq(40))

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	assert.Zero(t, repo.increments)
}

func TestApplyCouponExpired(t *testing.T) {
	coupon := save10()
	past := time.Now().Add(-time.Hour)
	coupon.ValidUntil = &past
	repo := newFakeCouponRepo(coupon)
	svc := NewPromotionService(repo, passRuleEngine{}, &fakeUsageCounter{}, otel.Tracer("test"))

	_, err := svc.ApplyCoupon(context.Background(), applyReq(120))

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestApplyCouponUnknownCode(t *testing.T) {
	svc := NewPromotionService(newFakeCouponRepo(), passRuleEngine{}, &fakeUsageCounter{}, otel.Tracer("test"))

	_, err := svc.ApplyCoupon(context.Background(), applyReq(120))

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestApplyCouponPerUserLimit(t *testing.T) {
	coupon := save10()
	coupon.PerUserLimit = intPtr(1)
	repo := newFakeCouponRepo(coupon)
	svc := NewPromotionService(repo, passRuleEngine{}, &fakeUsageCounter{used: 1}, otel.Tracer("test"))

	_, err := svc.ApplyCoupon(context.Background(), applyReq(120))

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	assert.Zero(t, repo.increments)
}

func TestApplyCouponRuleRejected(t *testing.T) {
	repo := newFakeCouponRepo(save10())
	svc := NewPromotionService(repo, denyRuleEngine{}, &fakeUsageCounter{}, otel.Tracer("test"))

	_, err := svc.ApplyCoupon(context.Background(), applyReq(120))

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	assert.Zero(t, repo.increments)
}

func TestApplyCouponUsageLimitExhausted(t *testing.T) {
	coupon := save10()
	coupon.UsageLimit = intPtr(100)
	coupon.UsageCount = 100
	repo := newFakeCouponRepo(coupon)
	svc := NewPromotionService(repo, passRuleEngine{}, &fakeUsageCounter{}, otel.Tracer("test"))

	_, err := svc.ApplyCoupon(context.Background(), applyReq(120))

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestCreateCouponValidation(t *testing.T) {
	repo := newFakeCouponRepo()
	svc := NewPromotionService(repo, passRuleEngine{}, &fakeUsageCounter{}, otel.Tracer("test"))

	tests := []struct {
		name   string
		coupon domain.Coupon
	}{
		{"missing code", domain.Coupon{Type: domain.TypePercentage, DiscountValue: decimal.NewFromInt(10)}},
		{"unknown type", domain.Coupon{Code: "X", Type: "BOGOF", DiscountValue: decimal.NewFromInt(10)}},
		{"non-positive value", domain.Coupon{Code: "X", Type: domain.TypePercentage, DiscountValue: decimal.Zero}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coupon := tt.coupon
			_, err := svc.CreateCoupon(context.Background(), 2, &coupon)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
		})
	}
}

func TestCreateCouponAssignsVendor(t *testing.T) {
	repo := newFakeCouponRepo()
	svc := NewPromotionService(repo, passRuleEngine{}, &fakeUsageCounter{}, otel.Tracer("test"))

	coupon := &domain.Coupon{
		Code:          "WELCOME",
		Type:          domain.TypePercentage,
		DiscountValue: decimal.NewFromInt(15),
		UsageCount:    42, // 客户端传什么都会被清零
	}
	created, err := svc.CreateCoupon(context.Background(), 2, coupon)

	require.NoError(t, err)
	assert.Equal(t, uint64(2), created.VendorID)
	assert.Zero(t, created.UsageCount)
}

func TestDeactivateCouponOwnership(t *testing.T) {
	repo := newFakeCouponRepo(save10())
	svc := NewPromotionService(repo, passRuleEngine{}, &fakeUsageCounter{}, otel.Tracer("test"))

	err := svc.DeactivateCoupon(context.Background(), 999, 9)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	require.NoError(t, svc.DeactivateCoupon(context.Background(), 2, 9))
	coupon, err := repo.FindByID(context.Background(), 9)
	require.NoError(t, err)
	assert.False(t, coupon.IsActive)
}
