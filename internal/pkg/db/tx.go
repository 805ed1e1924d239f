// internal/pkg/db/tx.go
package db

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// Runner 是应用服务看到的事务执行面，测试里可以用直通实现替换。
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxManager 把一次业务用例包进单个数据库事务。
// 仓储通过 FromContext 拿到同一个事务句柄，保证订单写入、扣减库存、
// 核销优惠券要么全部提交、要么全部回滚。
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Do 在事务内执行 fn；fn 返回错误时整个事务回滚。
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// FromContext 返回当前事务句柄；不在事务中时退回到基础连接。
func FromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}
