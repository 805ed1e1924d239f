// internal/service/payment/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/db"
	"localcart/internal/service/payment/domain"
	"localcart/internal/store"
)

// GormPaymentRepository 是 PaymentRepository 的 GORM 实现。
type GormPaymentRepository struct {
	base *gorm.DB
}

func NewGormPaymentRepository(base *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{base: base}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	conn := db.FromContext(ctx, r.base)
	model := toStorePayment(payment)
	if err := conn.Create(model).Error; err != nil {
		if store.IsDuplicateEntry(err) {
			return apperrors.New(apperrors.CodeConflict, "payment already exists for this order")
		}
		return errors.Wrap(err, "create payment")
	}
	payment.ID = model.ID
	return nil
}

func (r *GormPaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	conn := db.FromContext(ctx, r.base)
	// transaction_id / amount 一并回写：FAILED 后重新发起会换一笔网关交易。
	updates := map[string]interface{}{
		"transaction_id": payment.TransactionID,
		"payment_method": payment.PaymentMethod,
		"amount":         payment.Amount,
		"status":         string(payment.Status),
		"failure_reason": payment.FailureReason,
		"refund_amount":  payment.RefundAmount,
		"paid_at":        payment.PaidAt,
		"refunded_at":    payment.RefundedAt,
	}
	err := conn.Model(&store.Payment{}).Where("id = ?", payment.ID).Updates(updates).Error
	return errors.Wrap(err, "save payment")
}

func (r *GormPaymentRepository) FindByID(ctx context.Context, id uint64) (*domain.Payment, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID uint64) (*domain.Payment, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

func (r *GormPaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	return r.findOne(ctx, "transaction_id = ?", transactionID)
}

func (r *GormPaymentRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Payment, error) {
	conn := db.FromContext(ctx, r.base)
	var model store.Payment
	err := conn.Where(query, arg).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "payment not found")
		}
		return nil, errors.Wrap(err, "find payment")
	}
	return toDomainPayment(&model), nil
}

func toStorePayment(p *domain.Payment) *store.Payment {
	return &store.Payment{
		BaseModel:     store.BaseModel{ID: p.ID},
		OrderID:       p.OrderID,
		TransactionID: p.TransactionID,
		PaymentMethod: p.PaymentMethod,
		Amount:        p.Amount,
		Status:        string(p.Status),
		RefundAmount:  p.RefundAmount,
		FailureReason: p.FailureReason,
		PaidAt:        p.PaidAt,
		RefundedAt:    p.RefundedAt,
	}
}

func toDomainPayment(m *store.Payment) *domain.Payment {
	return &domain.Payment{
		ID:            m.ID,
		OrderID:       m.OrderID,
		TransactionID: m.TransactionID,
		PaymentMethod: m.PaymentMethod,
		Amount:        m.Amount,
		Status:        domain.Status(m.Status),
		FailureReason: m.FailureReason,
		RefundAmount:  m.RefundAmount,
		PaidAt:        m.PaidAt,
		RefundedAt:    m.RefundedAt,
		CreatedAt:     m.CreatedAt,
	}
}
