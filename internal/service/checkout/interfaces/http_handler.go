// internal/service/checkout/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/httpjson"
	"localcart/internal/service/checkout/application"
)

// CheckoutHandler 封装购物车与结账的 HTTP 处理器。
type CheckoutHandler struct {
	service *application.CheckoutService
}

func NewCheckoutHandler(service *application.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart/items", h.addItem)
	mux.HandleFunc("PUT /api/cart/items/{productID}", h.updateItem)
	mux.HandleFunc("DELETE /api/cart/items/{productID}", h.removeItem)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)
	mux.HandleFunc("GET /api/cart/quote", h.quote)
	mux.HandleFunc("POST /api/checkout", h.checkout)
}

func (h *CheckoutHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	cart, err := h.service.GetCart(ctx, userID)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, cart)
}

func (h *CheckoutHandler) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req struct {
		ProductID uint64 `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	cart, err := h.service.AddToCart(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, cart)
}

func (h *CheckoutHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	productID, err := httpjson.PathID(r, "productID")
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	cart, err := h.service.UpdateCartItem(ctx, userID, productID, req.Quantity)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, cart)
}

func (h *CheckoutHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	productID, err := httpjson.PathID(r, "productID")
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	cart, err := h.service.RemoveFromCart(ctx, userID, productID)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, cart)
}

func (h *CheckoutHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	if err := h.service.ClearCart(ctx, userID); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandler) quote(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	quote, err := h.service.Quote(ctx, userID)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, quote)
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req struct {
		ShippingAddressID uint64 `json:"shipping_address_id"`
		BillingAddressID  uint64 `json:"billing_address_id"`
		CouponCode        string `json:"coupon_code"`
		Notes             string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	order, err := h.service.Checkout(ctx, &application.CheckoutRequest{
		UserID:            userID,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		CouponCode:        req.CouponCode,
		Notes:             req.Notes,
	})
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusCreated, order)
}

// extract 把上游带来的 trace 上下文接进本服务。
func extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}
