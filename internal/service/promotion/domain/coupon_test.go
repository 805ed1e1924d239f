// internal/service/promotion/domain/coupon_test.go
package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func ptrDecimal(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func ptrInt(v int) *int { return &v }

func ptrTime(t time.Time) *time.Time { return &t }

func TestCouponIsValid(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		coupon Coupon
		want   bool
	}{
		{
			name:   "active without bounds",
			coupon: Coupon{IsActive: true},
			want:   true,
		},
		{
			name:   "inactive",
			coupon: Coupon{IsActive: false},
			want:   false,
		},
		{
			name:   "usage limit reached",
			coupon: Coupon{IsActive: true, UsageLimit: ptrInt(5), UsageCount: 5},
			want:   false,
		},
		{
			name:   "usage remaining",
			coupon: Coupon{IsActive: true, UsageLimit: ptrInt(5), UsageCount: 4},
			want:   true,
		},
		{
			name:   "not yet valid",
			coupon: Coupon{IsActive: true, ValidFrom: ptrTime(now.Add(time.Hour))},
			want:   false,
		},
		{
			name:   "expired",
			coupon: Coupon{IsActive: true, ValidUntil: ptrTime(now.Add(-time.Hour))},
			want:   false,
		},
		{
			name: "inside window",
			coupon: Coupon{
				IsActive:   true,
				ValidFrom:  ptrTime(now.Add(-time.Hour)),
				ValidUntil: ptrTime(now.Add(time.Hour)),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.IsValid(now))
		})
	}
}

func TestCalculateDiscount(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		coupon      Coupon
		orderAmount int64
		want        string
	}{
		{
			name: "fixed amount",
			coupon: Coupon{
				IsActive: true, Type: TypeFixedAmount,
				DiscountValue: decimal.NewFromInt(10),
			},
			orderAmount: 120,
			want:        "10.00",
		},
		{
			name: "percentage",
			coupon: Coupon{
				IsActive: true, Type: TypePercentage,
				DiscountValue: decimal.NewFromInt(20),
			},
			orderAmount: 200,
			want:        "40.00",
		},
		{
			name: "percentage capped by max discount",
			coupon: Coupon{
				IsActive: true, Type: TypePercentage,
				DiscountValue:     decimal.NewFromInt(50),
				MaxDiscountAmount: ptrDecimal(25),
			},
			orderAmount: 200,
			want:        "25.00",
		},
		{
			name: "below minimum purchase",
			coupon: Coupon{
				IsActive: true, Type: TypeFixedAmount,
				DiscountValue:     decimal.NewFromInt(10),
				MinPurchaseAmount: ptrDecimal(50),
			},
			orderAmount: 40,
			want:        "0.00",
		},
		{
			name: "at minimum purchase",
			coupon: Coupon{
				IsActive: true, Type: TypeFixedAmount,
				DiscountValue:     decimal.NewFromInt(10),
				MinPurchaseAmount: ptrDecimal(50),
			},
			orderAmount: 50,
			want:        "10.00",
		},
		{
			name: "fixed amount capped at order amount",
			coupon: Coupon{
				IsActive: true, Type: TypeFixedAmount,
				DiscountValue: decimal.NewFromInt(500),
			},
			orderAmount: 60,
			want:        "60.00",
		},
		{
			name: "invalid coupon discounts nothing",
			coupon: Coupon{
				IsActive: false, Type: TypeFixedAmount,
				DiscountValue: decimal.NewFromInt(10),
			},
			orderAmount: 120,
			want:        "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.coupon.CalculateDiscount(decimal.NewFromInt(tt.orderAmount), now)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}
