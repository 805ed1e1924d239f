// internal/store/mysql.go
package store

import (
	"errors"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 连接 MySQL 并迁移表结构。
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&User{}, &Vendor{}, &Address{}, &Product{},
		&Cart{}, &CartItem{},
		&Order{}, &OrderItem{}, &Payment{},
		&Coupon{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

// IsDuplicateEntry 判断是否为唯一键冲突（MySQL 1062）。
// 订单号、单订单单支付这类唯一约束靠它把存储层冲突翻译成业务冲突。
func IsDuplicateEntry(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
