// internal/service/checkout/domain/repository.go
package domain

import (
	"context"
	"time"
)

// CartRepository 定义购物车的持久化接口。
type CartRepository interface {
	// GetOrCreate 返回用户的购物车，没有则建一个空车。
	GetOrCreate(ctx context.Context, userID uint64) (*Cart, error)
	// AddItem 加购；车内已有该商品时合并数量。
	AddItem(ctx context.Context, cartID, productID uint64, quantity int) error
	// UpdateItemQuantity 改某一行的数量。
	UpdateItemQuantity(ctx context.Context, cartID, productID uint64, quantity int) error
	// RemoveItem 删掉某一行。
	RemoveItem(ctx context.Context, cartID, productID uint64) error
	// Clear 清空整车，结账成功时在同一事务里调用。
	Clear(ctx context.Context, cartID uint64) error

	// FindAbandonedBefore 给弃车扫描用：有商品且自 cutoff 起再无动静的车。
	FindAbandonedBefore(ctx context.Context, cutoff time.Time) ([]Cart, error)
}

// Address 是地址协作方解析出来的收货/账单地址。
type Address struct {
	ID      uint64
	UserID  uint64
	Street  string
	City    string
	State   string
	Country string
	ZipCode string
}

// AddressResolver 解析地址并确认归属。
// 地址不存在给 NOT_FOUND，不属于该用户给 UNAUTHORIZED。
type AddressResolver interface {
	Resolve(ctx context.Context, addressID, userID uint64) (*Address, error)
}
