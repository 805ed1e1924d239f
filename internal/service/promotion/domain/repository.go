// internal/service/promotion/domain/repository.go
package domain

import "context"

// CouponRepository 定义优惠券的持久化接口，由基础设施层实现。
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	FindByID(ctx context.Context, id uint64) (*Coupon, error)
	FindByVendor(ctx context.Context, vendorID uint64) ([]Coupon, error)

	Create(ctx context.Context, coupon *Coupon) error
	SetActive(ctx context.Context, id uint64, active bool) error

	// IncrementUsage 在调用方事务内把 usage_count 加一。
	// 与订单写入同一事务提交或回滚，校验通过但结账失败时不消耗用量。
	IncrementUsage(ctx context.Context, id uint64) error
}

// Fact 是资格规则评估时可见的订单上下文。
type Fact struct {
	OrderAmount float64 `json:"order_amount"`
	ItemCount   int64   `json:"item_count"`
	UserID      int64   `json:"user_id"`
}

// RuleEngine 评估券上的资格表达式。表达式为空视为通过。
type RuleEngine interface {
	Evaluate(expression string, fact Fact) (bool, error)
}
