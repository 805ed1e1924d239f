// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"localcart/internal/pkg/apperrors"
)

// Order 是订单聚合根。
// 创建之后身份不变：订单号唯一、不复用；金额字段是下单时刻的定格。
type Order struct {
	ID                 uint64
	OrderNumber        string
	UserID             uint64
	Status             Status
	Subtotal           decimal.Decimal
	Tax                decimal.Decimal
	ShippingFee        decimal.Decimal
	Discount           decimal.Decimal
	Total              decimal.Decimal
	ShippingAddressID  uint64
	BillingAddressID   uint64
	CouponID           *uint64
	Notes              string
	TrackingNumber     string
	CancellationReason string
	Items              []OrderItem
	CreatedAt          time.Time
	ShippedAt          *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
}

// OrderItem 是下单时刻的价格快照：单价、品名、商家引用
// 都从当时的商品复制而来，之后商品怎么改都不影响它。
type OrderItem struct {
	ID          uint64
	OrderID     uint64
	ProductID   uint64
	VendorID    uint64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
}

// NewOrderNumber 生成形如 ORD-20250901-3F0A1 的唯一订单号。
func NewOrderNumber(now time.Time) string {
	random := strings.ToUpper(uuid.NewString()[:5])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), random)
}

// CheckTotals 校验金额不变式：total = subtotal + tax + shippingFee - discount 且 ≥ 0。
func (o *Order) CheckTotals() error {
	expected := o.Subtotal.Add(o.Tax).Add(o.ShippingFee).Sub(o.Discount)
	if !o.Total.Equal(expected) {
		return apperrors.Newf(apperrors.CodeValidation,
			"order total %s does not match components %s", o.Total, expected)
	}
	if o.Total.IsNegative() {
		return apperrors.New(apperrors.CodeValidation, "order total must not be negative")
	}
	return nil
}

// AdvanceTo 沿主流程推进状态，并盖上相应的时间戳。
func (o *Order) AdvanceTo(to Status, now time.Time) error {
	if !CanAdvanceTo(o.Status, to) {
		return apperrors.Newf(apperrors.CodeInvalidState,
			"cannot transition order from %s to %s", o.Status, to)
	}
	o.Status = to
	switch to {
	case StatusShipped:
		o.ShippedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	}
	return nil
}

// Cancel 取消订单。只允许从 PENDING / PAYMENT_CONFIRMED 进入。
func (o *Order) Cancel(reason string, now time.Time) error {
	if !Cancellable(o.Status) {
		return apperrors.Newf(apperrors.CodeInvalidState,
			"order cannot be cancelled in status %s", o.Status)
	}
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.CancellationReason = reason
	return nil
}

// MarkRefunded 在支付全额退款后把订单置为 REFUNDED。
func (o *Order) MarkRefunded() error {
	if o.Status == StatusCancelled || o.Status == StatusRefunded {
		return apperrors.Newf(apperrors.CodeInvalidState,
			"order cannot be refunded in status %s", o.Status)
	}
	o.Status = StatusRefunded
	return nil
}
