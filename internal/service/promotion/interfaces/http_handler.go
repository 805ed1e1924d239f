// internal/service/promotion/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/httpjson"
	"localcart/internal/service/promotion/application"
	"localcart/internal/service/promotion/domain"
)

// CouponHandler 封装商家侧的优惠券管理接口。
type CouponHandler struct {
	service *application.PromotionService
}

func NewCouponHandler(service *application.PromotionService) *CouponHandler {
	return &CouponHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *CouponHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/vendor/coupons", h.createCoupon)
	mux.HandleFunc("GET /api/vendor/coupons", h.listCoupons)
	mux.HandleFunc("DELETE /api/vendor/coupons/{couponID}", h.deactivateCoupon)
}

func (h *CouponHandler) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	vendorID, err := httpjson.VendorID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req struct {
		Code              string           `json:"code"`
		Description       string           `json:"description"`
		Type              string           `json:"type"`
		DiscountValue     decimal.Decimal  `json:"discount_value"`
		MinPurchaseAmount *decimal.Decimal `json:"min_purchase_amount"`
		MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount"`
		UsageLimit        *int             `json:"usage_limit"`
		PerUserLimit      *int             `json:"per_user_limit"`
		ValidFrom         *time.Time       `json:"valid_from"`
		ValidUntil        *time.Time       `json:"valid_until"`
		RuleExpression    string           `json:"rule_expression"`
		ProductID         *uint64          `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	coupon, err := h.service.CreateCoupon(ctx, vendorID, &domain.Coupon{
		Code:              req.Code,
		Description:       req.Description,
		Type:              domain.CouponType(req.Type),
		DiscountValue:     req.DiscountValue,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		UsageLimit:        req.UsageLimit,
		PerUserLimit:      req.PerUserLimit,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		IsActive:          true,
		RuleExpression:    req.RuleExpression,
		ProductID:         req.ProductID,
	})
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusCreated, coupon)
}

func (h *CouponHandler) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	vendorID, err := httpjson.VendorID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	coupons, err := h.service.VendorCoupons(ctx, vendorID)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, coupons)
}

func (h *CouponHandler) deactivateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	vendorID, err := httpjson.VendorID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	couponID, err := httpjson.PathID(r, "couponID")
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	if err := h.service.DeactivateCoupon(ctx, vendorID, couponID); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}
