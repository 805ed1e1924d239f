// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/pkg/db"
	"localcart/internal/pkg/logger"
	automation "localcart/internal/service/automation/domain"
	"localcart/internal/service/automation/port"
	catalog "localcart/internal/service/catalog/domain"
	"localcart/internal/service/order/domain"
)

// OrderService 承载订单生命周期用例：状态推进、取消补偿、查询。
type OrderService struct {
	orderRepo  domain.OrderRepository
	stockGuard catalog.StockGuard
	txManager  db.Runner
	emitter    port.Emitter
	tracer     trace.Tracer
}

func NewOrderService(
	orderRepo domain.OrderRepository,
	stockGuard catalog.StockGuard,
	txManager db.Runner,
	emitter port.Emitter,
	tracer trace.Tracer,
) *OrderService {
	return &OrderService{
		orderRepo:  orderRepo,
		stockGuard: stockGuard,
		txManager:  txManager,
		emitter:    emitter,
		tracer:     tracer,
	}
}

// CancelOrder 取消订单并在同一事务内把每一行的数量加回库存。
// 只有订单归属的用户可以取消；状态守卫在领域层。
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uint64, reason string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CancelOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order.id", int64(orderID)),
		attribute.Int64("user.id", int64(userID)),
	)

	var (
		order    *domain.Order
		previous domain.Status
	)
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return apperrors.New(apperrors.CodeUnauthorized, "order does not belong to this user")
		}

		previous = order.Status
		if err := order.Cancel(reason, time.Now()); err != nil {
			return err
		}
		if err := s.orderRepo.Save(ctx, order); err != nil {
			return err
		}

		// 取消即归还：逐行把快照数量加回库存，与状态变更同事务。
		for _, item := range order.Items {
			if err := s.stockGuard.Restore(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order", order.OrderNumber).
		Str("reason", reason).
		Msg("order cancelled, stock restored")

	s.emitStatusChanged(ctx, order, previous)
	return order, nil
}

// UpdateStatus 沿主流程推进订单状态。发货时必须带运单号。
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint64, to domain.Status, trackingNumber string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order.id", int64(orderID)),
		attribute.String("order.status", string(to)),
	)

	if to == domain.StatusShipped && trackingNumber == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "tracking number is required when shipping")
	}

	var (
		order    *domain.Order
		previous domain.Status
	)
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		previous = order.Status
		if err := order.AdvanceTo(to, time.Now()); err != nil {
			return err
		}
		if to == domain.StatusShipped {
			order.TrackingNumber = trackingNumber
		}
		return s.orderRepo.Save(ctx, order)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order", order.OrderNumber).
		Str("from", string(previous)).
		Str("to", string(to)).
		Msg("order status advanced")

	s.emitStatusChanged(ctx, order, previous)
	return order, nil
}

// UserOrders 分页返回用户自己的订单。
func (s *OrderService) UserOrders(ctx context.Context, userID uint64, q domain.ListQuery) ([]domain.Order, int64, error) {
	return s.orderRepo.FindByUser(ctx, userID, q)
}

// UserOrderByID 返回单个订单，带归属校验。
func (s *OrderService) UserOrderByID(ctx context.Context, userID, orderID uint64) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "order does not belong to this user")
	}
	return order, nil
}

// OrderByNumber 按订单号查询，给客服和回调场景用。
func (s *OrderService) OrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.orderRepo.FindByNumber(ctx, orderNumber)
}

func (s *OrderService) emitStatusChanged(ctx context.Context, order *domain.Order, previous domain.Status) {
	s.emitter.Emit(ctx, automation.EventOrderStatusChanged, map[string]interface{}{
		"order_id":        order.ID,
		"order_number":    order.OrderNumber,
		"user_id":         order.UserID,
		"previous_status": string(previous),
		"new_status":      string(order.Status),
	})
}
