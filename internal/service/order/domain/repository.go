// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"
)

// ListQuery 是分页查询参数。
type ListQuery struct {
	Page     int
	PageSize int
	Status   Status // 空值表示不过滤
}

// OrderRepository 定义订单聚合的持久化接口。
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	Save(ctx context.Context, order *Order) error

	FindByID(ctx context.Context, id uint64) (*Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)
	FindByUser(ctx context.Context, userID uint64, q ListQuery) ([]Order, int64, error)

	// FindDeliveredBefore 给自动扫描用：在 cutoff 之前送达的订单。
	FindDeliveredBefore(ctx context.Context, cutoff time.Time) ([]Order, error)

	// CountCouponUsageByUser 统计某用户用某张券成交过的订单数（取消单不计）。
	CountCouponUsageByUser(ctx context.Context, couponID, userID uint64) (int, error)
}
