// internal/service/checkout/domain/cart.go
package domain

import "time"

// Cart 与用户一一对应，是下单前的暂存区。
// 同一商品在车内至多一行，重复加购合并数量。
type Cart struct {
	ID        uint64
	UserID    uint64
	Items     []CartItem
	UpdatedAt time.Time
}

type CartItem struct {
	ID        uint64
	CartID    uint64
	ProductID uint64
	Quantity  int
	UpdatedAt time.Time
}

// Empty 判断购物车是否没有任何商品。
func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// LastActivity 返回车内最近一次变动的时间，弃车扫描以此为准。
func (c *Cart) LastActivity() time.Time {
	last := c.UpdatedAt
	for _, item := range c.Items {
		if item.UpdatedAt.After(last) {
			last = item.UpdatedAt
		}
	}
	return last
}
