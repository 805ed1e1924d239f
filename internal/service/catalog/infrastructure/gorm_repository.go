// internal/service/catalog/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/db"
	"localcart/internal/service/catalog/domain"
	"localcart/internal/store"
)

// GormProductRepository 同时实现 domain.StockGuard 和 domain.ProductRepository。
type GormProductRepository struct {
	base *gorm.DB
}

func NewGormProductRepository(base *gorm.DB) *GormProductRepository {
	return &GormProductRepository{base: base}
}

// Reserve 在调用方事务内行锁商品并扣减库存。
// SELECT ... FOR UPDATE 让并发下单同一商品的事务在存储层串行化，防止超卖。
func (r *GormProductRepository) Reserve(ctx context.Context, productID uint64, quantity int) error {
	conn := db.FromContext(ctx, r.base)

	var model store.Product
	err := conn.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Newf(apperrors.CodeNotFound, "product %d not found", productID)
		}
		return errors.Wrap(err, "lock product row")
	}

	if model.Stock < quantity {
		return apperrors.Newf(apperrors.CodeInsufficientStock,
			"insufficient stock for product %s: %d left", model.Name, model.Stock)
	}

	res := conn.Model(&store.Product{}).Where("id = ?", productID).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return errors.Wrap(res.Error, "decrement stock")
	}
	return nil
}

// Restore 把数量加回库存。取消订单的补偿路径，永不拒绝。
func (r *GormProductRepository) Restore(ctx context.Context, productID uint64, quantity int) error {
	conn := db.FromContext(ctx, r.base)
	err := conn.Model(&store.Product{}).Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", quantity)).Error
	return errors.Wrap(err, "restore stock")
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uint64) (*domain.Product, error) {
	conn := db.FromContext(ctx, r.base)
	var model store.Product
	if err := conn.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "product %d not found", id)
		}
		return nil, errors.Wrap(err, "find product")
	}
	return toDomainProduct(&model), nil
}

func (r *GormProductRepository) FindLowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	conn := db.FromContext(ctx, r.base)
	var models []store.Product
	err := conn.Where("stock < ? AND is_active = ?", threshold, true).Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find low stock products")
	}
	out := make([]domain.Product, 0, len(models))
	for i := range models {
		out = append(out, *toDomainProduct(&models[i]))
	}
	return out, nil
}

func toDomainProduct(m *store.Product) *domain.Product {
	return &domain.Product{
		ID:            m.ID,
		VendorID:      m.VendorID,
		Name:          m.Name,
		SKU:           m.SKU,
		Price:         m.Price,
		DiscountPrice: m.DiscountPrice,
		Stock:         m.Stock,
		IsActive:      m.IsActive,
	}
}
