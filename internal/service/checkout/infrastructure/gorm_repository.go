// internal/service/checkout/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/db"
	"localcart/internal/service/checkout/domain"
	"localcart/internal/store"
)

// GormCartRepository 是 CartRepository 的 GORM 实现。
type GormCartRepository struct {
	base *gorm.DB
}

func NewGormCartRepository(base *gorm.DB) *GormCartRepository {
	return &GormCartRepository{base: base}
}

func (r *GormCartRepository) GetOrCreate(ctx context.Context, userID uint64) (*domain.Cart, error) {
	conn := db.FromContext(ctx, r.base)

	var model store.Cart
	err := conn.Preload("Items").Where("user_id = ?", userID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		model = store.Cart{UserID: userID}
		if err := conn.Create(&model).Error; err != nil {
			if store.IsDuplicateEntry(err) {
				// 并发首次加购撞上了，重读即可。
				if err := conn.Preload("Items").Where("user_id = ?", userID).First(&model).Error; err != nil {
					return nil, errors.Wrap(err, "reload cart")
				}
				return toDomainCart(&model), nil
			}
			return nil, errors.Wrap(err, "create cart")
		}
		return toDomainCart(&model), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find cart")
	}
	return toDomainCart(&model), nil
}

func (r *GormCartRepository) AddItem(ctx context.Context, cartID, productID uint64, quantity int) error {
	conn := db.FromContext(ctx, r.base)

	var item store.CartItem
	err := conn.Where("cart_id = ? AND product_id = ?", cartID, productID).First(&item).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = store.CartItem{CartID: cartID, ProductID: productID, Quantity: quantity}
		if err := conn.Create(&item).Error; err != nil {
			if store.IsDuplicateEntry(err) {
				// 唯一索引兜底并发加购：退化成合并数量。
				return r.mergeQuantity(conn, cartID, productID, quantity)
			}
			return errors.Wrap(err, "add cart item")
		}
		return nil
	case err != nil:
		return errors.Wrap(err, "find cart item")
	default:
		return r.mergeQuantity(conn, cartID, productID, quantity)
	}
}

func (r *GormCartRepository) mergeQuantity(conn *gorm.DB, cartID, productID uint64, delta int) error {
	err := conn.Model(&store.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Update("quantity", gorm.Expr("quantity + ?", delta)).Error
	return errors.Wrap(err, "merge cart item quantity")
}

func (r *GormCartRepository) UpdateItemQuantity(ctx context.Context, cartID, productID uint64, quantity int) error {
	conn := db.FromContext(ctx, r.base)
	result := conn.Model(&store.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Update("quantity", quantity)
	if result.Error != nil {
		return errors.Wrap(result.Error, "update cart item")
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeNotFound, "cart item not found")
	}
	return nil
}

func (r *GormCartRepository) RemoveItem(ctx context.Context, cartID, productID uint64) error {
	conn := db.FromContext(ctx, r.base)
	result := conn.Where("cart_id = ? AND product_id = ?", cartID, productID).Delete(&store.CartItem{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "remove cart item")
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeNotFound, "cart item not found")
	}
	return nil
}

func (r *GormCartRepository) Clear(ctx context.Context, cartID uint64) error {
	conn := db.FromContext(ctx, r.base)
	err := conn.Where("cart_id = ?", cartID).Delete(&store.CartItem{}).Error
	return errors.Wrap(err, "clear cart")
}

func (r *GormCartRepository) FindAbandonedBefore(ctx context.Context, cutoff time.Time) ([]domain.Cart, error) {
	conn := db.FromContext(ctx, r.base)

	// 有商品、且最近一次条目变动早于 cutoff 的车。
	var models []store.Cart
	err := conn.Preload("Items").
		Where("id IN (?)", conn.Session(&gorm.Session{NewDB: true}).
			Model(&store.CartItem{}).
			Select("cart_id").
			Group("cart_id").
			Having("MAX(updated_at) < ?", cutoff)).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find abandoned carts")
	}

	out := make([]domain.Cart, 0, len(models))
	for i := range models {
		out = append(out, *toDomainCart(&models[i]))
	}
	return out, nil
}

func toDomainCart(m *store.Cart) *domain.Cart {
	items := make([]domain.CartItem, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, domain.CartItem{
			ID:        it.ID,
			CartID:    it.CartID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UpdatedAt: it.UpdatedAt,
		})
	}
	return &domain.Cart{
		ID:        m.ID,
		UserID:    m.UserID,
		Items:     items,
		UpdatedAt: m.UpdatedAt,
	}
}

// GormAddressResolver 直接查地址表，并做归属校验。
type GormAddressResolver struct {
	base *gorm.DB
}

func NewGormAddressResolver(base *gorm.DB) *GormAddressResolver {
	return &GormAddressResolver{base: base}
}

func (r *GormAddressResolver) Resolve(ctx context.Context, addressID, userID uint64) (*domain.Address, error) {
	conn := db.FromContext(ctx, r.base)
	var model store.Address
	err := conn.Where("id = ?", addressID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "address not found")
		}
		return nil, errors.Wrap(err, "find address")
	}
	if model.UserID != userID {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "address does not belong to this user")
	}
	return &domain.Address{
		ID:      model.ID,
		UserID:  model.UserID,
		Street:  model.Street,
		City:    model.City,
		State:   model.State,
		Country: model.Country,
		ZipCode: model.ZipCode,
	}, nil
}
