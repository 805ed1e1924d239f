// internal/service/payment/application/service.go
package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/db"
	"localcart/internal/pkg/logger"
	"localcart/internal/pkg/metrics"
	automation "localcart/internal/service/automation/domain"
	automationport "localcart/internal/service/automation/port"
	orderdomain "localcart/internal/service/order/domain"
	"localcart/internal/service/payment/domain"
	"localcart/internal/service/payment/port"
)

// PaymentService 是支付编排器：驱动网关走完
// 发起 / 确认 / 对账 / 退款，并保持支付与订单两边状态一致。
type PaymentService struct {
	paymentRepo domain.PaymentRepository
	orderRepo   orderdomain.OrderRepository
	gateway     port.PaymentGateway
	txManager   db.Runner
	emitter     automationport.Emitter
	tracer      trace.Tracer
	callTimeout time.Duration
}

func NewPaymentService(
	paymentRepo domain.PaymentRepository,
	orderRepo orderdomain.OrderRepository,
	gateway port.PaymentGateway,
	txManager db.Runner,
	emitter automationport.Emitter,
	tracer trace.Tracer,
	callTimeout time.Duration,
) *PaymentService {
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &PaymentService{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		gateway:     gateway,
		txManager:   txManager,
		emitter:     emitter,
		tracer:      tracer,
		callTimeout: callTimeout,
	}
}

// InitiateRequest 携带发起支付所需的输入。
type InitiateRequest struct {
	UserID        uint64
	OrderNumber   string
	PaymentMethod string
	Amount        decimal.Decimal
}

// RefundResult 是一次退款的回执。
type RefundResult struct {
	PaymentID    uint64
	RefundID     string
	RefundAmount decimal.Decimal
	Status       domain.Status
	RefundedAt   time.Time
}

// InitiatePayment 为订单发起一笔支付。
// 金额必须与订单总额一字不差；已有非 FAILED 支付的订单拒绝再发起。
func (s *PaymentService) InitiatePayment(ctx context.Context, req *InitiateRequest) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.InitiatePayment")
	defer span.End()

	span.SetAttributes(
		attribute.String("order.number", req.OrderNumber),
		attribute.String("payment.method", req.PaymentMethod),
	)

	order, err := s.orderRepo.FindByNumber(ctx, req.OrderNumber)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if order.UserID != req.UserID {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "order does not belong to this user")
	}

	existing, err := s.paymentRepo.FindByOrderID(ctx, order.ID)
	if err != nil && !apperrors.IsCode(err, apperrors.CodeNotFound) {
		span.RecordError(err)
		return nil, err
	}
	if existing != nil && existing.Blocking() {
		return nil, apperrors.New(apperrors.CodeConflict, "payment already exists for this order")
	}

	// 金额在此定格校验一次，之后不再重算。
	if !req.Amount.Equal(order.Total) {
		return nil, apperrors.Newf(apperrors.CodeAmountMismatch,
			"payment amount %s does not match order total %s",
			req.Amount.StringFixed(2), order.Total.StringFixed(2))
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	gwResp, err := s.gateway.InitializePayment(gwCtx, &port.ChargeRequest{
		OrderNumber:   order.OrderNumber,
		Amount:        req.Amount,
		Currency:      "USD",
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		span.RecordError(err)
		metrics.PaymentTotal.WithLabelValues("initiate", "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeGatewayError, "failed to initialize payment with gateway")
	}
	if gwResp.Status != port.GatewayPending {
		metrics.PaymentTotal.WithLabelValues("initiate", "rejected").Inc()
		return nil, apperrors.Newf(apperrors.CodeGatewayError,
			"gateway rejected payment initialization: %s %s", gwResp.ErrorCode, gwResp.ErrorMessage)
	}

	var payment *domain.Payment
	if existing != nil {
		// FAILED 之后重试：复用同一行，换一笔网关交易。
		payment = existing
		if err := payment.Reinitialize(gwResp.TransactionID, req.PaymentMethod, req.Amount); err != nil {
			return nil, err
		}
		err = s.paymentRepo.Save(ctx, payment)
	} else {
		payment = domain.NewPayment(order.ID, gwResp.TransactionID, req.PaymentMethod, req.Amount)
		err = s.paymentRepo.Create(ctx, payment)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	metrics.PaymentTotal.WithLabelValues("initiate", "ok").Inc()
	logger.Ctx(ctx).Info().
		Str("order", order.OrderNumber).
		Str("transaction", payment.TransactionID).
		Msg("payment initiated")
	return payment, nil
}

// ProcessPayment 向网关确认收款并落地结果。
// SUCCESS：支付 COMPLETED、订单 PAYMENT_CONFIRMED；
// FAILED：支付 FAILED，订单和已扣库存保持不动，等待重试或取消。
func (s *PaymentService) ProcessPayment(ctx context.Context, paymentID uint64) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.ProcessPayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.id", int64(paymentID)))

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if payment.Status != domain.StatusPending && payment.Status != domain.StatusProcessing {
		return nil, apperrors.Newf(apperrors.CodeInvalidState,
			"payment cannot be processed in status %s", payment.Status)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	gwResp, err := s.gateway.ProcessPayment(gwCtx, payment.TransactionID, &port.ChargeRequest{
		Amount:        payment.Amount,
		Currency:      "USD",
		PaymentMethod: payment.PaymentMethod,
	})
	if err != nil {
		// 网关打不通也算失败：留下 FAILED 记录，订单不动。
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway call failed")
		if failErr := payment.Fail("gateway unreachable: " + err.Error()); failErr == nil {
			if saveErr := s.paymentRepo.Save(ctx, payment); saveErr != nil {
				logger.Ctx(ctx).Error().Err(saveErr).Msg("failed to persist failed payment")
			}
		}
		metrics.PaymentTotal.WithLabelValues("process", "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeGatewayError, "payment processing failed")
	}

	if gwResp.Status == port.GatewaySuccess {
		if err := s.settleCompleted(ctx, payment); err != nil {
			span.RecordError(err)
			return nil, err
		}
		metrics.PaymentTotal.WithLabelValues("process", "ok").Inc()
		return payment, nil
	}

	if err := payment.Fail(gwResp.ErrorMessage); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		span.RecordError(err)
		return nil, err
	}
	metrics.PaymentTotal.WithLabelValues("process", "declined").Inc()
	s.emitter.Emit(ctx, automation.EventPaymentFailed, map[string]interface{}{
		"payment_id":     payment.ID,
		"order_id":       payment.OrderID,
		"transaction_id": payment.TransactionID,
		"failure_reason": payment.FailureReason,
	})
	logger.Ctx(ctx).Warn().
		Str("transaction", payment.TransactionID).
		Str("reason", payment.FailureReason).
		Msg("payment declined by gateway")
	return nil, apperrors.Newf(apperrors.CodeGatewayError,
		"payment failed: %s", gwResp.ErrorMessage)
}

// VerifyPayment 与网关对账，幂等。
// 只会把 PENDING/PROCESSING 升级为 COMPLETED，绝不降级。
func (s *PaymentService) VerifyPayment(ctx context.Context, paymentID uint64) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.VerifyPayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.id", int64(paymentID)))

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	gwResp, err := s.gateway.VerifyPayment(gwCtx, payment.TransactionID)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeGatewayError, "payment verification failed")
	}

	upgradeable := payment.Status == domain.StatusPending || payment.Status == domain.StatusProcessing
	if gwResp.Status == port.GatewaySuccess && upgradeable {
		if err := s.settleCompleted(ctx, payment); err != nil {
			span.RecordError(err)
			return nil, err
		}
		logger.Ctx(ctx).Info().
			Str("transaction", payment.TransactionID).
			Msg("payment verified and upgraded to completed")
	}
	return payment, nil
}

// RefundPayment 对 COMPLETED 的支付发起全额或部分退款。
// amount 为 nil 时按全额退；超额在任何副作用之前被拒绝。
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID uint64, amount *decimal.Decimal, reason string) (*RefundResult, error) {
	ctx, span := s.tracer.Start(ctx, "payment.RefundPayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("payment.id", int64(paymentID)))

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	refundAmount := payment.Amount
	if amount != nil {
		refundAmount = *amount
	}

	// 先验前置再碰网关：违例时支付原封不动。
	if payment.Status != domain.StatusCompleted {
		return nil, apperrors.Newf(apperrors.CodeInvalidState,
			"only completed payments can be refunded, current status %s", payment.Status)
	}
	if !refundAmount.IsPositive() {
		return nil, apperrors.New(apperrors.CodeValidation, "refund amount must be positive")
	}
	if refundAmount.GreaterThan(payment.Amount) {
		metrics.PaymentTotal.WithLabelValues("refund", "excess").Inc()
		return nil, apperrors.Newf(apperrors.CodeConflict,
			"refund amount %s exceeds payment amount %s",
			refundAmount.StringFixed(2), payment.Amount.StringFixed(2))
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	gwResp, err := s.gateway.RefundPayment(gwCtx, payment.TransactionID, refundAmount, reason)
	if err != nil {
		span.RecordError(err)
		metrics.PaymentTotal.WithLabelValues("refund", "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeGatewayError, "refund failed")
	}
	if gwResp.RefundStatus != port.GatewaySuccess {
		metrics.PaymentTotal.WithLabelValues("refund", "rejected").Inc()
		return nil, apperrors.Newf(apperrors.CodeGatewayError,
			"gateway rejected refund: %s %s", gwResp.ErrorCode, gwResp.ErrorMessage)
	}

	now := time.Now()
	fullRefund := refundAmount.Equal(payment.Amount)
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := payment.ApplyRefund(refundAmount, now); err != nil {
			return err
		}
		if err := s.paymentRepo.Save(ctx, payment); err != nil {
			return err
		}
		if fullRefund {
			order, err := s.orderRepo.FindByID(ctx, payment.OrderID)
			if err != nil {
				return err
			}
			if err := order.MarkRefunded(); err != nil {
				return err
			}
			return s.orderRepo.Save(ctx, order)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	metrics.PaymentTotal.WithLabelValues("refund", "ok").Inc()
	s.emitter.Emit(ctx, automation.EventPaymentRefunded, map[string]interface{}{
		"payment_id":    payment.ID,
		"order_id":      payment.OrderID,
		"refund_id":     gwResp.RefundID,
		"refund_amount": refundAmount.StringFixed(2),
		"full_refund":   fullRefund,
	})
	logger.Ctx(ctx).Info().
		Str("transaction", payment.TransactionID).
		Str("refund", gwResp.RefundID).
		Str("amount", refundAmount.StringFixed(2)).
		Msg("refund processed")

	return &RefundResult{
		PaymentID:    payment.ID,
		RefundID:     gwResp.RefundID,
		RefundAmount: refundAmount,
		Status:       payment.Status,
		RefundedAt:   now,
	}, nil
}

// SavePaymentMethod 把卡信息换成网关令牌。原始卡数据只在本次调用的
// 内存里存在，返回的令牌才是可以落库的东西。
func (s *PaymentService) SavePaymentMethod(ctx context.Context, card port.CardDetails) (string, error) {
	ctx, span := s.tracer.Start(ctx, "payment.SavePaymentMethod")
	defer span.End()

	gwCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	token, err := s.gateway.TokenizeCard(gwCtx, card)
	if err != nil {
		span.RecordError(err)
		return "", apperrors.Wrap(err, apperrors.CodeGatewayError, "failed to tokenize card")
	}
	logger.Ctx(ctx).Info().Msg("payment method tokenized")
	return token, nil
}

// ChargeToken 用已保存的令牌为订单直接扣款，成功即 COMPLETED。
func (s *PaymentService) ChargeToken(ctx context.Context, userID, orderID uint64, token, description string) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.ChargeToken")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", int64(orderID)))

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "order does not belong to this user")
	}

	existing, err := s.paymentRepo.FindByOrderID(ctx, order.ID)
	if err != nil && !apperrors.IsCode(err, apperrors.CodeNotFound) {
		span.RecordError(err)
		return nil, err
	}
	if existing != nil && existing.Blocking() {
		return nil, apperrors.New(apperrors.CodeConflict, "payment already exists for this order")
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	gwResp, err := s.gateway.ChargeToken(gwCtx, token, order.Total, "USD", description)
	if err != nil {
		span.RecordError(err)
		metrics.PaymentTotal.WithLabelValues("charge_token", "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeGatewayError, "token charge failed")
	}
	if gwResp.Status != port.GatewaySuccess {
		metrics.PaymentTotal.WithLabelValues("charge_token", "declined").Inc()
		return nil, apperrors.Newf(apperrors.CodeGatewayError,
			"token charge declined: %s %s", gwResp.ErrorCode, gwResp.ErrorMessage)
	}

	now := time.Now()
	var (
		payment  *domain.Payment
		previous orderdomain.Status
		advanced bool
	)
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if existing != nil {
			// FAILED 之后重试：复用同一行，换一笔网关交易。
			payment = existing
			if err := payment.Reinitialize(gwResp.TransactionID, "SAVED_CARD", order.Total); err != nil {
				return err
			}
			if err := payment.Complete(now); err != nil {
				return err
			}
			if err := s.paymentRepo.Save(ctx, payment); err != nil {
				return err
			}
		} else {
			payment = domain.NewPayment(order.ID, gwResp.TransactionID, "SAVED_CARD", order.Total)
			if err := payment.Complete(now); err != nil {
				return err
			}
			if err := s.paymentRepo.Create(ctx, payment); err != nil {
				return err
			}
		}
		// 不论是新支付还是重试，订单都要跟着推进。
		if order.Status != orderdomain.StatusPending {
			return nil
		}
		previous = order.Status
		if err := order.AdvanceTo(orderdomain.StatusPaymentConfirmed, now); err != nil {
			return err
		}
		advanced = true
		return s.orderRepo.Save(ctx, order)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	metrics.PaymentTotal.WithLabelValues("charge_token", "ok").Inc()
	s.emitter.Emit(ctx, automation.EventPaymentCompleted, map[string]interface{}{
		"payment_id":     payment.ID,
		"order_id":       order.ID,
		"transaction_id": payment.TransactionID,
		"amount":         payment.Amount.StringFixed(2),
	})
	if advanced {
		s.emitter.Emit(ctx, automation.EventOrderStatusChanged, map[string]interface{}{
			"order_id":        order.ID,
			"order_number":    order.OrderNumber,
			"user_id":         order.UserID,
			"previous_status": string(previous),
			"new_status":      string(order.Status),
		})
	}
	logger.Ctx(ctx).Info().
		Str("order", order.OrderNumber).
		Str("transaction", payment.TransactionID).
		Msg("token charge completed")
	return payment, nil
}

// PaymentByOrder 查订单的支付记录，带归属校验。
func (s *PaymentService) PaymentByOrder(ctx context.Context, userID, orderID uint64) (*domain.Payment, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "order does not belong to this user")
	}
	return s.paymentRepo.FindByOrderID(ctx, orderID)
}

// GatewayHealthy 探测网关连通性，供 /healthz 使用。
func (s *PaymentService) GatewayHealthy(ctx context.Context) bool {
	gwCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.gateway.IsHealthy(gwCtx)
}

// settleCompleted 把支付落为 COMPLETED 并联动订单到 PAYMENT_CONFIRMED，
// 两边写入同一个事务。
func (s *PaymentService) settleCompleted(ctx context.Context, payment *domain.Payment) error {
	now := time.Now()
	var (
		order    *orderdomain.Order
		previous orderdomain.Status
	)
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := payment.Complete(now); err != nil {
			return err
		}
		if err := s.paymentRepo.Save(ctx, payment); err != nil {
			return err
		}
		var err error
		order, err = s.orderRepo.FindByID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		previous = order.Status
		if order.Status != orderdomain.StatusPending {
			// 对账路径可能晚于确认路径到达，订单已推进就不再动。
			return nil
		}
		if err := order.AdvanceTo(orderdomain.StatusPaymentConfirmed, now); err != nil {
			return err
		}
		return s.orderRepo.Save(ctx, order)
	})
	if err != nil {
		return err
	}

	s.emitter.Emit(ctx, automation.EventPaymentCompleted, map[string]interface{}{
		"payment_id":     payment.ID,
		"order_id":       payment.OrderID,
		"transaction_id": payment.TransactionID,
		"amount":         payment.Amount.StringFixed(2),
	})
	if order != nil && previous == orderdomain.StatusPending {
		s.emitter.Emit(ctx, automation.EventOrderStatusChanged, map[string]interface{}{
			"order_id":        order.ID,
			"order_number":    order.OrderNumber,
			"user_id":         order.UserID,
			"previous_status": string(previous),
			"new_status":      string(order.Status),
		})
	}
	logger.Ctx(ctx).Info().
		Str("transaction", payment.TransactionID).
		Msg("payment completed")
	return nil
}
