// internal/service/promotion/domain/coupon.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponType 定义折扣的计算方式。
type CouponType string

const (
	TypePercentage  CouponType = "PERCENTAGE"
	TypeFixedAmount CouponType = "FIXED_AMOUNT"
)

var hundred = decimal.NewFromInt(100)

// Coupon 是商家发放的优惠券。
// 金额计算全部在领域对象上完成，仓储只负责读写和用量计数。
type Coupon struct {
	ID                uint64
	Code              string
	Description       string
	Type              CouponType
	DiscountValue     decimal.Decimal
	MinPurchaseAmount *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        *int
	UsageCount        int
	PerUserLimit      *int
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	IsActive          bool
	// RuleExpression 是可选的 CEL 资格表达式，由规则引擎评估。
	RuleExpression string
	VendorID       uint64
	ProductID      *uint64
}

// IsValid 检查优惠券在 now 时刻是否可用。
// 时间窗允许开区间：ValidFrom/ValidUntil 为 nil 表示不设界。
func (c *Coupon) IsValid(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	return true
}

// CalculateDiscount 计算该券对 orderAmount 的抵扣金额。
// 不可用或未达最低消费时返回 0；结果永远不超过订单金额。
func (c *Coupon) CalculateDiscount(orderAmount decimal.Decimal, now time.Time) decimal.Decimal {
	if !c.IsValid(now) {
		return decimal.Zero
	}
	if c.MinPurchaseAmount != nil && orderAmount.LessThan(*c.MinPurchaseAmount) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	if c.Type == TypePercentage {
		discount = orderAmount.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
			discount = *c.MaxDiscountAmount
		}
	} else {
		discount = c.DiscountValue
	}

	if discount.GreaterThan(orderAmount) {
		return orderAmount
	}
	return discount
}
