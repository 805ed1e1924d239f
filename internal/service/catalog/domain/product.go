// internal/service/catalog/domain/product.go
package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product 是库存视角下的商品。
type Product struct {
	ID            uint64
	VendorID      uint64
	Name          string
	SKU           string
	Price         decimal.Decimal
	DiscountPrice *decimal.Decimal
	Stock         int
	IsActive      bool
}

// EffectivePrice 返回计价用的单价：有折扣价用折扣价，否则用原价。
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

// StockGuard 是库存守卫的能力契约。
// Reserve 和 Restore 都必须运行在调用方的事务内：
// 事务回滚时库存变更一并回滚。
type StockGuard interface {
	// Reserve 行锁商品、校验库存并扣减；不足时返回 INSUFFICIENT_STOCK。
	Reserve(ctx context.Context, productID uint64, quantity int) error
	// Restore 把数量加回库存，只增不减，永不拒绝。
	Restore(ctx context.Context, productID uint64, quantity int) error
}

// ProductRepository 提供库存扫描所需的只读查询。
type ProductRepository interface {
	FindByID(ctx context.Context, id uint64) (*Product, error)
	FindLowStock(ctx context.Context, threshold int) ([]Product, error)
}
