// internal/service/payment/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/httpjson"
	"localcart/internal/service/payment/application"
	"localcart/internal/service/payment/port"
)

// PaymentHandler 封装支付编排的 HTTP 处理器。
type PaymentHandler struct {
	service *application.PaymentService
}

func NewPaymentHandler(service *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/payments/initiate", h.initiate)
	mux.HandleFunc("POST /api/payments/{paymentID}/process", h.process)
	mux.HandleFunc("POST /api/payments/{paymentID}/verify", h.verify)
	mux.HandleFunc("POST /api/payments/{paymentID}/refund", h.refund)
	mux.HandleFunc("POST /api/payments/methods", h.savePaymentMethod)
	mux.HandleFunc("POST /api/payments/charge-token", h.chargeToken)
	mux.HandleFunc("GET /api/orders/{orderID}/payment", h.paymentByOrder)
}

func (h *PaymentHandler) initiate(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req struct {
		OrderNumber   string          `json:"order_number"`
		PaymentMethod string          `json:"payment_method"`
		Amount        decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	payment, err := h.service.InitiatePayment(ctx, &application.InitiateRequest{
		UserID:        userID,
		OrderNumber:   req.OrderNumber,
		PaymentMethod: req.PaymentMethod,
		Amount:        req.Amount,
	})
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusCreated, payment)
}

func (h *PaymentHandler) process(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	paymentID, err := httpjson.PathID(r, "paymentID")
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	payment, err := h.service.ProcessPayment(ctx, paymentID)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) verify(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	paymentID, err := httpjson.PathID(r, "paymentID")
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	payment, err := h.service.VerifyPayment(ctx, paymentID)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) refund(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	paymentID, err := httpjson.PathID(r, "paymentID")
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req struct {
		Amount *decimal.Decimal `json:"amount"` // 省略时全额退
		Reason string           `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	result, err := h.service.RefundPayment(ctx, paymentID, req.Amount, req.Reason)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, result)
}

func (h *PaymentHandler) savePaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	if _, err := httpjson.UserID(r); err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req struct {
		CardNumber  string `json:"card_number"`
		ExpiryMonth string `json:"expiry_month"`
		ExpiryYear  string `json:"expiry_year"`
		CVV         string `json:"cvv"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	token, err := h.service.SavePaymentMethod(ctx, port.CardDetails{
		Number:      req.CardNumber,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		CVV:         req.CVV,
	})
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *PaymentHandler) chargeToken(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	userID, err := httpjson.UserID(r)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	var req struct {
		OrderID     uint64 `json:"order_id"`
		Token       string `json:"token"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, r, apperrors.New(apperrors.CodeValidation, "malformed request body"))
		return
	}
	payment, err := h.service.ChargeToken(ctx, userID, req.OrderID, req.Token, req.Description)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusCreated, payment)
}

func (h *PaymentHandler) paymentByOrder(w http.ResponseWriter, r *http.Request) {
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
	payment, err := h.service.PaymentByOrder(ctx, userID, orderID)
	if err != nil {
		httpjson.WriteError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, payment)
}

func extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}
