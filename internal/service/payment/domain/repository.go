// internal/service/payment/domain/repository.go
package domain

import "context"

// PaymentRepository 定义支付记录的持久化接口。
// OrderID 上的唯一索引兜底并发发起：第二笔插入吃 CONFLICT。
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	Save(ctx context.Context, payment *Payment) error

	FindByID(ctx context.Context, id uint64) (*Payment, error)
	FindByOrderID(ctx context.Context, orderID uint64) (*Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
}
