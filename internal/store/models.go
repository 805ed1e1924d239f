// internal/store/models.go
package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseModel 统一了所有表的主键、审计时间戳和软删除约定。
// 软删除只有 DeletedAt 一种形式：IsDeleted() := DeletedAt 有效。
type BaseModel struct {
	ID        uint64         `gorm:"primaryKey"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// User 只保留本核心需要的身份边界字段，认证在系统外完成。
type User struct {
	BaseModel
	Email     string `gorm:"uniqueIndex;size:255"`
	FirstName string `gorm:"size:100"`
	LastName  string `gorm:"size:100"`
}

func (User) TableName() string { return "users" }

type Vendor struct {
	BaseModel
	UserID        uint64 `gorm:"index"`
	BusinessName  string `gorm:"size:255"`
	BusinessEmail string `gorm:"size:255"`
}

func (Vendor) TableName() string { return "vendors" }

type Address struct {
	BaseModel
	UserID  uint64 `gorm:"index"`
	Street  string `gorm:"size:255"`
	City    string `gorm:"size:100"`
	State   string `gorm:"size:100"`
	Country string `gorm:"size:100"`
	ZipCode string `gorm:"size:20"`
}

func (Address) TableName() string { return "addresses" }

type Product struct {
	BaseModel
	VendorID      uint64           `gorm:"index"`
	Name          string           `gorm:"size:255"`
	Slug          string           `gorm:"size:255"`
	SKU           string           `gorm:"size:100"`
	Price         decimal.Decimal  `gorm:"type:decimal(10,2)"`
	DiscountPrice *decimal.Decimal `gorm:"type:decimal(10,2)"`
	Stock         int
	IsActive      bool `gorm:"default:true"`

	Vendor Vendor `gorm:"foreignKey:VendorID"`
}

func (Product) TableName() string { return "products" }

// Cart 与用户一一对应。
type Cart struct {
	BaseModel
	UserID uint64     `gorm:"uniqueIndex"`
	Items  []CartItem `gorm:"foreignKey:CartID"`

	User User `gorm:"foreignKey:UserID"`
}

func (Cart) TableName() string { return "carts" }

// CartItem 同一购物车内每个商品至多一行，加购相同商品时合并数量。
type CartItem struct {
	BaseModel
	CartID    uint64 `gorm:"uniqueIndex:idx_cart_product"`
	ProductID uint64 `gorm:"uniqueIndex:idx_cart_product"`
	Quantity  int

	Product Product `gorm:"foreignKey:ProductID"`
}

func (CartItem) TableName() string { return "cart_items" }

type Order struct {
	BaseModel
	OrderNumber        string          `gorm:"uniqueIndex;size:50"`
	UserID             uint64          `gorm:"index"`
	Status             string          `gorm:"size:30;index"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(10,2)"`
	Tax                decimal.Decimal `gorm:"type:decimal(10,2)"`
	ShippingFee        decimal.Decimal `gorm:"type:decimal(10,2)"`
	Discount           decimal.Decimal `gorm:"type:decimal(10,2)"`
	Total              decimal.Decimal `gorm:"type:decimal(10,2)"`
	ShippingAddressID  uint64
	BillingAddressID   uint64
	CouponID           *uint64 `gorm:"index"`
	Notes              string  `gorm:"size:500"`
	TrackingNumber     string  `gorm:"size:100"`
	CancellationReason string  `gorm:"size:255"`
	ShippedAt          *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time

	Items   []OrderItem `gorm:"foreignKey:OrderID"`
	Payment *Payment    `gorm:"foreignKey:OrderID"`
	User    User        `gorm:"foreignKey:UserID"`
}

func (Order) TableName() string { return "orders" }

// OrderItem 是下单时刻的价格快照，创建后不再变化。
type OrderItem struct {
	BaseModel
	OrderID     uint64          `gorm:"index"`
	ProductID   uint64          `gorm:"index"`
	VendorID    uint64          `gorm:"index"`
	ProductName string          `gorm:"size:255"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2)"`
	Quantity    int
	Subtotal    decimal.Decimal `gorm:"type:decimal(10,2)"`
}

func (OrderItem) TableName() string { return "order_items" }

// Payment 每个订单至多一条（唯一索引兜底）。
type Payment struct {
	BaseModel
	OrderID       uint64           `gorm:"uniqueIndex"`
	TransactionID string           `gorm:"uniqueIndex;size:100"`
	PaymentMethod string           `gorm:"size:50"`
	Amount        decimal.Decimal  `gorm:"type:decimal(10,2)"`
	Status        string           `gorm:"size:30;index"`
	RefundAmount  *decimal.Decimal `gorm:"type:decimal(10,2)"`
	FailureReason string           `gorm:"size:255"`
	PaidAt        *time.Time
	RefundedAt    *time.Time
}

func (Payment) TableName() string { return "payments" }

type Coupon struct {
	BaseModel
	Code              string           `gorm:"uniqueIndex;size:50"`
	Description       string           `gorm:"size:255"`
	CouponType        string           `gorm:"size:20"`
	DiscountValue     decimal.Decimal  `gorm:"type:decimal(10,2)"`
	MinPurchaseAmount *decimal.Decimal `gorm:"type:decimal(10,2)"`
	MaxDiscountAmount *decimal.Decimal `gorm:"type:decimal(10,2)"`
	UsageLimit        *int
	UsageCount        int `gorm:"default:0"`
	PerUserLimit      *int
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	IsActive          bool    `gorm:"default:true"`
	RuleExpression    string  `gorm:"size:500"`
	VendorID          uint64  `gorm:"index"`
	ProductID         *uint64 `gorm:"index"`
}

func (Coupon) TableName() string { return "coupons" }
