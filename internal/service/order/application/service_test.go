// internal/service/order/application/service_test.go
package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"localcart/internal/pkg/apperrors"
	automation "localcart/internal/service/automation/domain"
	"localcart/internal/service/order/domain"
)

type passRunner struct{}

func (passRunner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordEmitter struct {
	events []string
}

func (e *recordEmitter) Emit(_ context.Context, event string, _ map[string]interface{}) {
	e.events = append(e.events, event)
}

type fakeOrderRepo struct {
	orders map[uint64]*domain.Order
}

func (r *fakeOrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.orders[order.ID] = order
	return nil
}

func (r *fakeOrderRepo) Save(_ context.Context, order *domain.Order) error {
	r.orders[order.ID] = order
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uint64) (*domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (r *fakeOrderRepo) FindByNumber(_ context.Context, number string) (*domain.Order, error) {
	for _, o := range r.orders {
		if o.OrderNumber == number {
			return o, nil
		}
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
}

func (r *fakeOrderRepo) FindByUser(context.Context, uint64, domain.ListQuery) ([]domain.Order, int64, error) {
	return nil, 0, nil
}

func (r *fakeOrderRepo) FindDeliveredBefore(context.Context, time.Time) ([]domain.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) CountCouponUsageByUser(context.Context, uint64, uint64) (int, error) {
	return 0, nil
}

type recordingStockGuard struct {
	restored map[uint64]int
}

func (g *recordingStockGuard) Reserve(context.Context, uint64, int) error { return nil }

func (g *recordingStockGuard) Restore(_ context.Context, productID uint64, quantity int) error {
	g.restored[productID] += quantity
	return nil
}

func twoLineOrder(status domain.Status) *domain.Order {
	return &domain.Order{
		ID:          1,
		OrderNumber: "ORD-20250901-AAAAA",
		UserID:      7,
		Status:      status,
		Total:       decimal.NewFromInt(100),
		Items: []domain.OrderItem{
			{ProductID: 10, Quantity: 2},
			{ProductID: 11, Quantity: 3},
		},
	}
}

func newService(order *domain.Order) (*OrderService, *fakeOrderRepo, *recordingStockGuard, *recordEmitter) {
	repo := &fakeOrderRepo{orders: map[uint64]*domain.Order{}}
	if order != nil {
		repo.orders[order.ID] = order
	}
	stock := &recordingStockGuard{restored: make(map[uint64]int)}
	emitter := &recordEmitter{}
	svc := NewOrderService(repo, stock, passRunner{}, emitter, otel.Tracer("test"))
	return svc, repo, stock, emitter
}

func TestCancelOrderRestoresStock(t *testing.T) {
	order := twoLineOrder(domain.StatusPaymentConfirmed)
	svc, _, stock, emitter := newService(order)

	got, err := svc.CancelOrder(context.Background(), 7, 1, "changed my mind")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, "changed my mind", got.CancellationReason)
	// 每一行的快照数量都加回库存
	assert.Equal(t, 2, stock.restored[10])
	assert.Equal(t, 3, stock.restored[11])
	assert.Equal(t, []string{automation.EventOrderStatusChanged}, emitter.events)
}

func TestCancelOrderOwnership(t *testing.T) {
	order := twoLineOrder(domain.StatusPending)
	svc, _, stock, _ := newService(order)

	_, err := svc.CancelOrder(context.Background(), 999, 1, "not mine")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Empty(t, stock.restored)
}

func TestCancelOrderInvalidState(t *testing.T) {
	for _, status := range []domain.Status{
		domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered, domain.StatusCancelled,
	} {
		order := twoLineOrder(status)
		svc, _, stock, emitter := newService(order)

		_, err := svc.CancelOrder(context.Background(), 7, 1, "too late")

		require.Errorf(t, err, "status %s", status)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
		assert.Empty(t, stock.restored)
		assert.Empty(t, emitter.events)
	}
}

func TestCancelOrderNotFound(t *testing.T) {
	svc, _, _, _ := newService(nil)

	_, err := svc.CancelOrder(context.Background(), 7, 42, "ghost")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestUpdateStatusShippedRequiresTracking(t *testing.T) {
	order := twoLineOrder(domain.StatusProcessing)
	svc, _, _, _ := newService(order)

	_, err := svc.UpdateStatus(context.Background(), 1, domain.StatusShipped, "")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Equal(t, domain.StatusProcessing, order.Status)
}

func TestUpdateStatusShipped(t *testing.T) {
	order := twoLineOrder(domain.StatusProcessing)
	svc, _, _, emitter := newService(order)

	got, err := svc.UpdateStatus(context.Background(), 1, domain.StatusShipped, "TRK-123")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, got.Status)
	assert.Equal(t, "TRK-123", got.TrackingNumber)
	require.NotNil(t, got.ShippedAt)
	assert.Equal(t, []string{automation.EventOrderStatusChanged}, emitter.events)
}

func TestUpdateStatusRejectsSkippingStages(t *testing.T) {
	order := twoLineOrder(domain.StatusPending)
	svc, _, _, emitter := newService(order)

	_, err := svc.UpdateStatus(context.Background(), 1, domain.StatusDelivered, "")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
	assert.Empty(t, emitter.events)
}

func TestUserOrderByIDOwnership(t *testing.T) {
	order := twoLineOrder(domain.StatusPending)
	svc, _, _, _ := newService(order)

	got, err := svc.UserOrderByID(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = svc.UserOrderByID(context.Background(), 999, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
}
