// internal/service/promotion/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/db"
	"localcart/internal/service/promotion/domain"
	"localcart/internal/store"
)

// GormCouponRepository 是 CouponRepository 的 GORM 实现。
type GormCouponRepository struct {
	base *gorm.DB
}

func NewGormCouponRepository(base *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{base: base}
}

func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	conn := db.FromContext(ctx, r.base)
	var model store.Coupon
	if err := conn.Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "coupon %q not found", code)
		}
		return nil, errors.Wrap(err, "find coupon by code")
	}
	return toDomainCoupon(&model), nil
}

func (r *GormCouponRepository) FindByID(ctx context.Context, id uint64) (*domain.Coupon, error) {
	conn := db.FromContext(ctx, r.base)
	var model store.Coupon
	if err := conn.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "coupon %d not found", id)
		}
		return nil, errors.Wrap(err, "find coupon")
	}
	return toDomainCoupon(&model), nil
}

func (r *GormCouponRepository) FindByVendor(ctx context.Context, vendorID uint64) ([]domain.Coupon, error) {
	conn := db.FromContext(ctx, r.base)
	var models []store.Coupon
	if err := conn.Where("vendor_id = ?", vendorID).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "find vendor coupons")
	}
	out := make([]domain.Coupon, 0, len(models))
	for i := range models {
		out = append(out, *toDomainCoupon(&models[i]))
	}
	return out, nil
}

func (r *GormCouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	conn := db.FromContext(ctx, r.base)
	model := toStoreCoupon(coupon)
	if err := conn.Create(model).Error; err != nil {
		if store.IsDuplicateEntry(err) {
			return apperrors.Newf(apperrors.CodeConflict, "coupon code %q already exists", coupon.Code)
		}
		return errors.Wrap(err, "create coupon")
	}
	coupon.ID = model.ID
	return nil
}

func (r *GormCouponRepository) SetActive(ctx context.Context, id uint64, active bool) error {
	conn := db.FromContext(ctx, r.base)
	err := conn.Model(&store.Coupon{}).Where("id = ?", id).
		Update("is_active", active).Error
	return errors.Wrap(err, "set coupon active")
}

// IncrementUsage 以单条 UPDATE 原子加一，跟随调用方事务回滚。
func (r *GormCouponRepository) IncrementUsage(ctx context.Context, id uint64) error {
	conn := db.FromContext(ctx, r.base)
	err := conn.Model(&store.Coupon{}).Where("id = ?", id).
		Update("usage_count", gorm.Expr("usage_count + 1")).Error
	return errors.Wrap(err, "increment coupon usage")
}

func toDomainCoupon(m *store.Coupon) *domain.Coupon {
	return &domain.Coupon{
		ID:                m.ID,
		Code:              m.Code,
		Description:       m.Description,
		Type:              domain.CouponType(m.CouponType),
		DiscountValue:     m.DiscountValue,
		MinPurchaseAmount: m.MinPurchaseAmount,
		MaxDiscountAmount: m.MaxDiscountAmount,
		UsageLimit:        m.UsageLimit,
		UsageCount:        m.UsageCount,
		PerUserLimit:      m.PerUserLimit,
		ValidFrom:         m.ValidFrom,
		ValidUntil:        m.ValidUntil,
		IsActive:          m.IsActive,
		RuleExpression:    m.RuleExpression,
		VendorID:          m.VendorID,
		ProductID:         m.ProductID,
	}
}

func toStoreCoupon(c *domain.Coupon) *store.Coupon {
	return &store.Coupon{
		BaseModel:         store.BaseModel{ID: c.ID},
		Code:              c.Code,
		Description:       c.Description,
		CouponType:        string(c.Type),
		DiscountValue:     c.DiscountValue,
		MinPurchaseAmount: c.MinPurchaseAmount,
		MaxDiscountAmount: c.MaxDiscountAmount,
		UsageLimit:        c.UsageLimit,
		UsageCount:        c.UsageCount,
		PerUserLimit:      c.PerUserLimit,
		ValidFrom:         c.ValidFrom,
		ValidUntil:        c.ValidUntil,
		IsActive:          c.IsActive,
		RuleExpression:    c.RuleExpression,
		VendorID:          c.VendorID,
		ProductID:         c.ProductID,
	}
}
