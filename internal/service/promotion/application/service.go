// internal/service/promotion/application/service.go
package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/logger"
	"localcart/internal/service/promotion/domain"
)

// UsageCounter 统计某用户已经用某张券成交过多少单。
// 由订单侧实现，避免 promotion 反向依赖订单仓储。
type UsageCounter interface {
	CountCouponUsageByUser(ctx context.Context, couponID, userID uint64) (int, error)
}

// PromotionService 承载优惠券相关的业务用例。
type PromotionService struct {
	couponRepo   domain.CouponRepository
	ruleEngine   domain.RuleEngine
	usageCounter UsageCounter
	tracer       trace.Tracer
}

func NewPromotionService(repo domain.CouponRepository, ruleEngine domain.RuleEngine, usageCounter UsageCounter, tracer trace.Tracer) *PromotionService {
	return &PromotionService{
		couponRepo:   repo,
		ruleEngine:   ruleEngine,
		usageCounter: usageCounter,
		tracer:       tracer,
	}
}

// AppliedCoupon 是一次成功核销的结果。
type AppliedCoupon struct {
	CouponID uint64
	Code     string
	Discount decimal.Decimal
}

// ApplyCouponRequest 携带结账时的券码和订单上下文。
type ApplyCouponRequest struct {
	Code        string
	UserID      uint64
	OrderAmount decimal.Decimal
	ItemCount   int
}

// ApplyCoupon 校验并核销一张优惠券。
// 必须在结账事务内调用：用量加一与订单写入同生共死，
// 结账在此之后的任何失败都会把 usage_count 一起回滚。
func (s *PromotionService) ApplyCoupon(ctx context.Context, req *ApplyCouponRequest) (*AppliedCoupon, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.ApplyCoupon")
	defer span.End()

	span.SetAttributes(
		attribute.String("coupon.code", req.Code),
		attribute.Int64("user.id", int64(req.UserID)),
	)

	coupon, err := s.couponRepo.FindByCode(ctx, req.Code)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := time.Now()
	if !coupon.IsValid(now) {
		return nil, apperrors.New(apperrors.CodeConflict, "coupon is not valid or has expired")
	}

	if coupon.PerUserLimit != nil {
		used, err := s.usageCounter.CountCouponUsageByUser(ctx, coupon.ID, req.UserID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if used >= *coupon.PerUserLimit {
			return nil, apperrors.New(apperrors.CodeConflict, "per-user usage limit reached for this coupon")
		}
	}

	ok, err := s.ruleEngine.Evaluate(coupon.RuleExpression, domain.Fact{
		OrderAmount: req.OrderAmount.InexactFloat64(),
		ItemCount:   int64(req.ItemCount),
		UserID:      int64(req.UserID),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rule evaluation failed")
		return nil, apperrors.Wrap(err, apperrors.CodeConflict, "coupon eligibility rule rejected")
	}
	if !ok {
		return nil, apperrors.New(apperrors.CodeConflict, "order does not meet coupon eligibility rule")
	}

	discount := coupon.CalculateDiscount(req.OrderAmount, now)
	if discount.IsZero() {
		return nil, apperrors.New(apperrors.CodeConflict, "minimum purchase amount not met")
	}

	if err := s.couponRepo.IncrementUsage(ctx, coupon.ID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("coupon", coupon.Code).
		Str("discount", discount.StringFixed(2)).
		Msg("coupon applied")

	return &AppliedCoupon{CouponID: coupon.ID, Code: coupon.Code, Discount: discount}, nil
}

// CreateCoupon 为商家创建一张新券。
func (s *PromotionService) CreateCoupon(ctx context.Context, vendorID uint64, coupon *domain.Coupon) (*domain.Coupon, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.CreateCoupon")
	defer span.End()

	if coupon.Code == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "coupon code is required")
	}
	if coupon.Type != domain.TypePercentage && coupon.Type != domain.TypeFixedAmount {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown coupon type %q", coupon.Type)
	}
	if !coupon.DiscountValue.IsPositive() {
		return nil, apperrors.New(apperrors.CodeValidation, "discount value must be positive")
	}

	coupon.VendorID = vendorID
	coupon.UsageCount = 0
	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("coupon", coupon.Code).Uint64("vendor", vendorID).Msg("coupon created")
	return coupon, nil
}

// DeactivateCoupon 停用一张券，仅限其归属商家操作。
func (s *PromotionService) DeactivateCoupon(ctx context.Context, vendorID, couponID uint64) error {
	ctx, span := s.tracer.Start(ctx, "promotion.DeactivateCoupon")
	defer span.End()

	coupon, err := s.couponRepo.FindByID(ctx, couponID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if coupon.VendorID != vendorID {
		return apperrors.New(apperrors.CodeUnauthorized, "coupon does not belong to this vendor")
	}
	return s.couponRepo.SetActive(ctx, couponID, false)
}

// VendorCoupons 返回商家的全部券。
func (s *PromotionService) VendorCoupons(ctx context.Context, vendorID uint64) ([]domain.Coupon, error) {
	return s.couponRepo.FindByVendor(ctx, vendorID)
}
