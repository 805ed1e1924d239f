// internal/service/payment/domain/payment.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"localcart/internal/pkg/apperrors"
)

// Status 定义支付的生命周期状态。
// 状态只进不退：COMPLETED 之后绝不回到 PENDING。
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusProcessing        Status = "PROCESSING"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
	StatusCancelled         Status = "CANCELLED"
	StatusRefunded          Status = "REFUNDED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
)

// Payment 是一笔支付。每个订单至多一条非 FAILED 的支付记录。
// 金额在发起时定格为订单总额，之后不再重算。
type Payment struct {
	ID            uint64
	OrderID       uint64
	TransactionID string
	PaymentMethod string
	Amount        decimal.Decimal
	Status        Status
	FailureReason string
	RefundAmount  *decimal.Decimal
	PaidAt        *time.Time
	RefundedAt    *time.Time
	CreatedAt     time.Time
}

// NewPayment 发起一笔支付，网关已分配 transactionID。
func NewPayment(orderID uint64, transactionID, method string, amount decimal.Decimal) *Payment {
	return &Payment{
		OrderID:       orderID,
		TransactionID: transactionID,
		PaymentMethod: method,
		Amount:        amount,
		Status:        StatusPending,
	}
}

// Reinitialize 在 FAILED 之后用新的网关交易重新发起这笔支付。
// 订单上的唯一约束意味着重试复用同一行。
func (p *Payment) Reinitialize(transactionID, method string, amount decimal.Decimal) error {
	if p.Status != StatusFailed {
		return apperrors.Newf(apperrors.CodeInvalidState,
			"only failed payments can be re-initiated, current status %s", p.Status)
	}
	p.TransactionID = transactionID
	p.PaymentMethod = method
	p.Amount = amount
	p.Status = StatusPending
	p.FailureReason = ""
	return nil
}

// Blocking 判断该支付是否挡住新的支付发起。
// 只有 FAILED 的支付允许重试，其它状态都算占位。
func (p *Payment) Blocking() bool {
	return p.Status != StatusFailed
}

// MarkProcessing 进入网关处理中。
func (p *Payment) MarkProcessing() error {
	if p.Status != StatusPending {
		return apperrors.Newf(apperrors.CodeInvalidState,
			"payment cannot enter PROCESSING from %s", p.Status)
	}
	p.Status = StatusProcessing
	return nil
}

// Complete 把支付推到 COMPLETED 并盖上 paidAt。
// 只允许从 PENDING/PROCESSING 进入；已 COMPLETED 时为幂等空操作。
func (p *Payment) Complete(now time.Time) error {
	if p.Status == StatusCompleted {
		return nil
	}
	if p.Status != StatusPending && p.Status != StatusProcessing {
		return apperrors.Newf(apperrors.CodeInvalidState,
			"payment cannot complete from %s", p.Status)
	}
	p.Status = StatusCompleted
	p.PaidAt = &now
	p.FailureReason = ""
	return nil
}

// Fail 标记支付失败并记录网关给出的原因。
func (p *Payment) Fail(reason string) error {
	if p.Status != StatusPending && p.Status != StatusProcessing {
		return apperrors.Newf(apperrors.CodeInvalidState,
			"payment cannot fail from %s", p.Status)
	}
	p.Status = StatusFailed
	p.FailureReason = reason
	return nil
}

// Cancel 取消支付。COMPLETED 及之后的状态不可取消。
func (p *Payment) Cancel() error {
	switch p.Status {
	case StatusCompleted, StatusRefunded, StatusPartiallyRefunded, StatusCancelled:
		return apperrors.Newf(apperrors.CodeInvalidState,
			"payment cannot be cancelled from %s", p.Status)
	}
	p.Status = StatusCancelled
	return nil
}

// ApplyRefund 登记一次退款结果。
// 前置：COMPLETED 且 amount ≤ 支付金额；违反时支付保持原样。
func (p *Payment) ApplyRefund(amount decimal.Decimal, now time.Time) error {
	if p.Status != StatusCompleted {
		return apperrors.Newf(apperrors.CodeInvalidState,
			"only completed payments can be refunded, current status %s", p.Status)
	}
	if amount.GreaterThan(p.Amount) {
		return apperrors.Newf(apperrors.CodeConflict,
			"refund amount %s exceeds payment amount %s", amount, p.Amount)
	}
	if !amount.IsPositive() {
		return apperrors.New(apperrors.CodeValidation, "refund amount must be positive")
	}
	if amount.Equal(p.Amount) {
		p.Status = StatusRefunded
	} else {
		p.Status = StatusPartiallyRefunded
	}
	p.RefundAmount = &amount
	p.RefundedAt = &now
	return nil
}
