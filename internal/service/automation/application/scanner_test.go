// internal/service/automation/application/scanner_test.go
package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/service/automation/domain"
	catalogdomain "localcart/internal/service/catalog/domain"
	checkoutdomain "localcart/internal/service/checkout/domain"
	orderdomain "localcart/internal/service/order/domain"
)

type scanEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *scanEmitter) Emit(_ context.Context, event string, _ map[string]interface{}) {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
}

func (e *scanEmitter) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

// memSuppression 是内存版抑制标记，语义与 redis SETNX 一致。
type memSuppression struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newMemSuppression() *memSuppression {
	return &memSuppression{keys: make(map[string]struct{})}
}

func (s *memSuppression) SetMarkNX(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

type scanProductRepo struct {
	all      []catalogdomain.Product
	lowStock []catalogdomain.Product
}

func (r *scanProductRepo) FindByID(_ context.Context, id uint64) (*catalogdomain.Product, error) {
	for i := range r.all {
		if r.all[i].ID == id {
			return &r.all[i], nil
		}
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
}

func (r *scanProductRepo) FindLowStock(context.Context, int) ([]catalogdomain.Product, error) {
	return r.lowStock, nil
}

type scanCartRepo struct {
	abandoned []checkoutdomain.Cart
}

func (r *scanCartRepo) GetOrCreate(context.Context, uint64) (*checkoutdomain.Cart, error) {
	return nil, nil
}
func (r *scanCartRepo) AddItem(context.Context, uint64, uint64, int) error            { return nil }
func (r *scanCartRepo) UpdateItemQuantity(context.Context, uint64, uint64, int) error { return nil }
func (r *scanCartRepo) RemoveItem(context.Context, uint64, uint64) error              { return nil }
func (r *scanCartRepo) Clear(context.Context, uint64) error                           { return nil }

func (r *scanCartRepo) FindAbandonedBefore(context.Context, time.Time) ([]checkoutdomain.Cart, error) {
	return r.abandoned, nil
}

type scanOrderRepo struct {
	delivered []orderdomain.Order
}

func (r *scanOrderRepo) Create(context.Context, *orderdomain.Order) error { return nil }
func (r *scanOrderRepo) Save(context.Context, *orderdomain.Order) error   { return nil }

func (r *scanOrderRepo) FindByID(context.Context, uint64) (*orderdomain.Order, error) {
	return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
}

func (r *scanOrderRepo) FindByNumber(context.Context, string) (*orderdomain.Order, error) {
	return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
}

func (r *scanOrderRepo) FindByUser(context.Context, uint64, orderdomain.ListQuery) ([]orderdomain.Order, int64, error) {
	return nil, 0, nil
}

func (r *scanOrderRepo) FindDeliveredBefore(context.Context, time.Time) ([]orderdomain.Order, error) {
	return r.delivered, nil
}

func (r *scanOrderRepo) CountCouponUsageByUser(context.Context, uint64, uint64) (int, error) {
	return 0, nil
}

type fakeLeaderLock struct {
	held    bool
	locks   int
	unlocks int
}

func (l *fakeLeaderLock) TryLock() (bool, error) {
	l.locks++
	if l.held {
		return false, nil
	}
	return true, nil
}

func (l *fakeLeaderLock) Unlock() error {
	l.unlocks++
	return nil
}

func scanConfig() ScannerConfig {
	return ScannerConfig{
		Interval:           time.Hour,
		LowStockThreshold:  5,
		AbandonedCartAfter: 24 * time.Hour,
		ReviewRequestAfter: 7 * 24 * time.Hour,
		SuppressionWindow:  24 * time.Hour,
	}
}

func newScanner(products *scanProductRepo, carts *scanCartRepo, orders *scanOrderRepo, lock LeaderLock) (*Scanner, *scanEmitter, *memSuppression) {
	emitter := &scanEmitter{}
	suppression := newMemSuppression()
	s := NewScanner(products, carts, orders, emitter, suppression, lock, otel.Tracer("test"), scanConfig())
	return s, emitter, suppression
}

func TestScannerEmitsLowStock(t *testing.T) {
	products := &scanProductRepo{lowStock: []catalogdomain.Product{
		{ID: 10, VendorID: 2, Name: "Keyboard", SKU: "KB-1", Stock: 2},
		{ID: 11, VendorID: 2, Name: "Mouse", SKU: "MS-1", Stock: 4},
	}}
	s, emitter, _ := newScanner(products, &scanCartRepo{}, &scanOrderRepo{}, nil)

	s.runOnce(context.Background())

	assert.Equal(t, []string{domain.EventProductLowStock, domain.EventProductLowStock}, emitter.names())
}

func TestScannerSuppressesRepeats(t *testing.T) {
	products := &scanProductRepo{lowStock: []catalogdomain.Product{
		{ID: 10, Name: "Keyboard", Stock: 2},
	}}
	s, emitter, _ := newScanner(products, &scanCartRepo{}, &scanOrderRepo{}, nil)

	// 库存一直没补，连扫三轮只告警一次
	s.runOnce(context.Background())
	s.runOnce(context.Background())
	s.runOnce(context.Background())

	assert.Equal(t, []string{domain.EventProductLowStock}, emitter.names())
}

func TestScannerAbandonedCart(t *testing.T) {
	products := &scanProductRepo{all: []catalogdomain.Product{
		{ID: 10, Name: "Keyboard", Price: decimal.NewFromInt(60), Stock: 50},
	}}
	carts := &scanCartRepo{abandoned: []checkoutdomain.Cart{
		{
			ID:     1,
			UserID: 7,
			Items:  []checkoutdomain.CartItem{{ProductID: 10, Quantity: 2}},
		},
		{ID: 2, UserID: 8}, // 空车不算弃车
	}}
	s, emitter, _ := newScanner(products, carts, &scanOrderRepo{}, nil)

	s.runOnce(context.Background())

	assert.Equal(t, []string{domain.EventCartAbandoned}, emitter.names())
}

func TestScannerReviewRequestOnlyOnce(t *testing.T) {
	deliveredAt := time.Now().Add(-10 * 24 * time.Hour)
	orders := &scanOrderRepo{delivered: []orderdomain.Order{
		{ID: 1, OrderNumber: "ORD-20250820-AAAAA", UserID: 7, Status: orderdomain.StatusDelivered, DeliveredAt: &deliveredAt},
	}}
	s, emitter, suppression := newScanner(&scanProductRepo{}, &scanCartRepo{}, orders, nil)

	s.runOnce(context.Background())
	s.runOnce(context.Background())

	assert.Equal(t, []string{domain.EventReviewRequest}, emitter.names())
	// 标记永不过期：一单只请一次评价
	_, marked := suppression.keys["suppress:review_request:1"]
	assert.True(t, marked)
}

func TestScannerSkipsWhenLockHeld(t *testing.T) {
	products := &scanProductRepo{lowStock: []catalogdomain.Product{{ID: 10, Stock: 1}}}
	lock := &fakeLeaderLock{held: true}
	s, emitter, _ := newScanner(products, &scanCartRepo{}, &scanOrderRepo{}, lock)

	s.runOnce(context.Background())

	assert.Empty(t, emitter.names())
	assert.Equal(t, 1, lock.locks)
	assert.Zero(t, lock.unlocks)
}

func TestScannerReleasesLock(t *testing.T) {
	lock := &fakeLeaderLock{}
	s, _, _ := newScanner(&scanProductRepo{}, &scanCartRepo{}, &scanOrderRepo{}, lock)

	s.runOnce(context.Background())

	require.Equal(t, 1, lock.locks)
	assert.Equal(t, 1, lock.unlocks)
}
