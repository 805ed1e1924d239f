// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/db"
	"localcart/internal/service/order/domain"
	"localcart/internal/store"
)

// GormOrderRepository 是 OrderRepository 的 GORM 实现。
type GormOrderRepository struct {
	base *gorm.DB
}

func NewGormOrderRepository(base *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{base: base}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	conn := db.FromContext(ctx, r.base)
	model := toStoreOrder(order)
	if err := conn.Create(model).Error; err != nil {
		if store.IsDuplicateEntry(err) {
			return apperrors.Newf(apperrors.CodeConflict, "order number %s already exists", order.OrderNumber)
		}
		return errors.Wrap(err, "create order")
	}
	order.ID = model.ID
	for i := range model.Items {
		order.Items[i].ID = model.Items[i].ID
		order.Items[i].OrderID = model.ID
	}
	return nil
}

// Save 持久化状态流转后的订单头；订单项是快照，从不更新。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	conn := db.FromContext(ctx, r.base)
	updates := map[string]interface{}{
		"status":              string(order.Status),
		"tracking_number":     order.TrackingNumber,
		"cancellation_reason": order.CancellationReason,
		"shipped_at":          order.ShippedAt,
		"delivered_at":        order.DeliveredAt,
		"cancelled_at":        order.CancelledAt,
	}
	err := conn.Model(&store.Order{}).Where("id = ?", order.ID).Updates(updates).Error
	return errors.Wrap(err, "save order")
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *GormOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Order, error) {
	conn := db.FromContext(ctx, r.base)
	var model store.Order
	err := conn.Preload("Items").Where(query, arg).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		return nil, errors.Wrap(err, "find order")
	}
	return toDomainOrder(&model), nil
}

func (r *GormOrderRepository) FindByUser(ctx context.Context, userID uint64, q domain.ListQuery) ([]domain.Order, int64, error) {
	conn := db.FromContext(ctx, r.base)

	tx := conn.Model(&store.Order{}).Where("user_id = ?", userID)
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count user orders")
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var models []store.Order
	err := tx.Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&models).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list user orders")
	}

	out := make([]domain.Order, 0, len(models))
	for i := range models {
		out = append(out, *toDomainOrder(&models[i]))
	}
	return out, total, nil
}

func (r *GormOrderRepository) FindDeliveredBefore(ctx context.Context, cutoff time.Time) ([]domain.Order, error) {
	conn := db.FromContext(ctx, r.base)
	var models []store.Order
	err := conn.Preload("Items").
		Where("status = ? AND delivered_at IS NOT NULL AND delivered_at < ?", string(domain.StatusDelivered), cutoff).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find delivered orders")
	}
	out := make([]domain.Order, 0, len(models))
	for i := range models {
		out = append(out, *toDomainOrder(&models[i]))
	}
	return out, nil
}

func (r *GormOrderRepository) CountCouponUsageByUser(ctx context.Context, couponID, userID uint64) (int, error) {
	conn := db.FromContext(ctx, r.base)
	var count int64
	err := conn.Model(&store.Order{}).
		Where("coupon_id = ? AND user_id = ? AND status <> ?", couponID, userID, string(domain.StatusCancelled)).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count coupon usage")
	}
	return int(count), nil
}

func toStoreOrder(o *domain.Order) *store.Order {
	items := make([]store.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, store.OrderItem{
			ProductID:   it.ProductID,
			VendorID:    it.VendorID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		})
	}
	return &store.Order{
		BaseModel:          store.BaseModel{ID: o.ID},
		OrderNumber:        o.OrderNumber,
		UserID:             o.UserID,
		Status:             string(o.Status),
		Subtotal:           o.Subtotal,
		Tax:                o.Tax,
		ShippingFee:        o.ShippingFee,
		Discount:           o.Discount,
		Total:              o.Total,
		ShippingAddressID:  o.ShippingAddressID,
		BillingAddressID:   o.BillingAddressID,
		CouponID:           o.CouponID,
		Notes:              o.Notes,
		TrackingNumber:     o.TrackingNumber,
		CancellationReason: o.CancellationReason,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		Items:              items,
	}
}

func toDomainOrder(m *store.Order) *domain.Order {
	items := make([]domain.OrderItem, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, domain.OrderItem{
			ID:          it.ID,
			OrderID:     it.OrderID,
			ProductID:   it.ProductID,
			VendorID:    it.VendorID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		})
	}
	return &domain.Order{
		ID:                 m.ID,
		OrderNumber:        m.OrderNumber,
		UserID:             m.UserID,
		Status:             domain.Status(m.Status),
		Subtotal:           m.Subtotal,
		Tax:                m.Tax,
		ShippingFee:        m.ShippingFee,
		Discount:           m.Discount,
		Total:              m.Total,
		ShippingAddressID:  m.ShippingAddressID,
		BillingAddressID:   m.BillingAddressID,
		CouponID:           m.CouponID,
		Notes:              m.Notes,
		TrackingNumber:     m.TrackingNumber,
		CancellationReason: m.CancellationReason,
		Items:              items,
		CreatedAt:          m.CreatedAt,
		ShippedAt:          m.ShippedAt,
		DeliveredAt:        m.DeliveredAt,
		CancelledAt:        m.CancelledAt,
	}
}
