// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/httpjson"
	"localcart/internal/service/order/application"
	"localcart/internal/service/order/domain"
)

// OrderHandler 封装订单生命周期的 HTTP 处理器。
type OrderHandler struct {
	service *application.OrderService
}

func NewOrderHandler(service *application.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{orderID}", h.getOrder)
	mux.HandleFunc("GET /api/orders/number/{orderNumber}", h.getByNumber)
	mux.HandleFunc("POST /api/orders/{orderID}/cancel", h.cancelOrder)
	mux.HandleFunc("PUT /api/orders/{orderID}/status", h.updateStatus)
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	orders, total, err := h.service.UserOrders(ctx, userID, domain.ListQuery{
		Page:     page,
		PageSize: size,
		Status:   domain.Status(r.URL.Query().Get("status")),
	})
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
	})
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	orderID, err := httpjson.PathID(r, "orderID")
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	order, err := h.service.UserOrderByID(ctx, userID, orderID)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) getByNumber(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	order, err := h.service.OrderByNumber(ctx, r.PathValue("orderNumber"))
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	if order.UserID != userID {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeUnauthorized, "order does not belong to this user"))
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	orderID, err := httpjson.PathID(r, "orderID")
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	order, err := h.service.CancelOrder(ctx, userID, orderID, req.Reason)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, order)
}

// updateStatus 是履约侧的入口（备货、发货、送达），不做用户归属校验。
func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	orderID, err := httpjson.PathID(r, "orderID")
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req struct {
		Status         string `json:"status"`
		TrackingNumber string `json:"tracking_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	order, err := h.service.UpdateStatus(ctx, orderID, domain.Status(req.Status), req.TrackingNumber)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, order)
}

func extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}
