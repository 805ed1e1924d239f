// internal/service/automation/application/scanner.go
package application

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"localcart/internal/pkg/logger"
	"localcart/internal/pkg/metrics"
	"localcart/internal/service/automation/domain"
	"localcart/internal/service/automation/port"
	catalogdomain "localcart/internal/service/catalog/domain"
	checkoutdomain "localcart/internal/service/checkout/domain"
	orderdomain "localcart/internal/service/order/domain"
)

// SuppressionStore 记住某个事件已经发过，避免每轮扫描重复轰炸。
// TTL 为 0 的标记永不过期（评价邀请一单只发一次）。
type SuppressionStore interface {
	SetMarkNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// LeaderLock 保证多副本部署时同一轮扫描只有一个实例执行。
type LeaderLock interface {
	TryLock() (bool, error)
	Unlock() error
}

// ScannerConfig 是扫描节奏与阈值。
type ScannerConfig struct {
	Interval           time.Duration
	LowStockThreshold  int
	AbandonedCartAfter time.Duration
	ReviewRequestAfter time.Duration
	SuppressionWindow  time.Duration
}

// Scanner 周期性地从落库状态里挖出值得通知的事：
// 低库存、弃车、该请评价的订单。只读不写，产出走事件调度器。
type Scanner struct {
	productRepo catalogdomain.ProductRepository
	cartRepo    checkoutdomain.CartRepository
	orderRepo   orderdomain.OrderRepository
	emitter     port.Emitter
	suppression SuppressionStore
	leaderLock  LeaderLock // 可为 nil：单实例部署不需要
	tracer      trace.Tracer
	cfg         ScannerConfig
}

func NewScanner(
	productRepo catalogdomain.ProductRepository,
	cartRepo checkoutdomain.CartRepository,
	orderRepo orderdomain.OrderRepository,
	emitter port.Emitter,
	suppression SuppressionStore,
	leaderLock LeaderLock,
	tracer trace.Tracer,
	cfg ScannerConfig,
) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Hour
	}
	return &Scanner{
		productRepo: productRepo,
		cartRepo:    cartRepo,
		orderRepo:   orderRepo,
		emitter:     emitter,
		suppression: suppression,
		leaderLock:  leaderLock,
		tracer:      tracer,
		cfg:         cfg,
	}
}

// Run 以固定周期执行扫描，直到 ctx 取消。
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scanner) runOnce(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "automation.Scan")
	defer span.End()

	if s.leaderLock != nil {
		ok, err := s.leaderLock.TryLock()
		if err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Warn().Err(err).Msg("leader lock unavailable, skipping scan")
			return
		}
		if !ok {
			logger.Ctx(ctx).Debug().Msg("another instance holds the scan lock, skipping")
			return
		}
		defer func() {
			if err := s.leaderLock.Unlock(); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("failed to release scan lock")
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.scanLowStock(gctx) })
	g.Go(func() error { return s.scanAbandonedCarts(gctx) })
	g.Go(func() error { return s.scanReviewRequests(gctx) })
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Msg("automation scan run failed")
	}
}

func (s *Scanner) scanLowStock(ctx context.Context) error {
	defer observeScan("low_stock", time.Now())

	products, err := s.productRepo.FindLowStock(ctx, s.cfg.LowStockThreshold)
	if err != nil {
		return err
	}
	for _, product := range products {
		key := fmt.Sprintf("suppress:low_stock:%d", product.ID)
		first, err := s.suppression.SetMarkNX(ctx, key, s.cfg.SuppressionWindow)
		if err != nil {
			return err
		}
		if !first {
			continue
		}
		s.emitter.Emit(ctx, domain.EventProductLowStock, map[string]interface{}{
			"product_id": product.ID,
			"vendor_id":  product.VendorID,
			"name":       product.Name,
			"sku":        product.SKU,
			"stock":      product.Stock,
			"threshold":  s.cfg.LowStockThreshold,
		})
	}
	logger.Ctx(ctx).Debug().Int("count", len(products)).Msg("low stock scan done")
	return nil
}

func (s *Scanner) scanAbandonedCarts(ctx context.Context) error {
	defer observeScan("abandoned_cart", time.Now())

	cutoff := time.Now().Add(-s.cfg.AbandonedCartAfter)
	carts, err := s.cartRepo.FindAbandonedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, cart := range carts {
		if cart.Empty() {
			continue
		}
		key := fmt.Sprintf("suppress:abandoned_cart:%d", cart.ID)
		first, err := s.suppression.SetMarkNX(ctx, key, s.cfg.SuppressionWindow)
		if err != nil {
			return err
		}
		if !first {
			continue
		}

		total := decimal.Zero
		itemCount := 0
		for _, item := range cart.Items {
			product, err := s.productRepo.FindByID(ctx, item.ProductID)
			if err != nil {
				// 商品可能已下架删除，这一行不计入金额。
				continue
			}
			total = total.Add(product.EffectivePrice().Mul(decimal.NewFromInt(int64(item.Quantity))))
			itemCount += item.Quantity
		}
		s.emitter.Emit(ctx, domain.EventCartAbandoned, map[string]interface{}{
			"cart_id":    cart.ID,
			"user_id":    cart.UserID,
			"item_count": itemCount,
			"total":      total.StringFixed(2),
			"idle_since": cart.LastActivity(),
		})
	}
	logger.Ctx(ctx).Debug().Int("count", len(carts)).Msg("abandoned cart scan done")
	return nil
}

func (s *Scanner) scanReviewRequests(ctx context.Context) error {
	defer observeScan("review_request", time.Now())

	cutoff := time.Now().Add(-s.cfg.ReviewRequestAfter)
	orders, err := s.orderRepo.FindDeliveredBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, order := range orders {
		// 评价只请一次，标记不设过期。
		key := fmt.Sprintf("suppress:review_request:%d", order.ID)
		first, err := s.suppression.SetMarkNX(ctx, key, 0)
		if err != nil {
			return err
		}
		if !first {
			continue
		}
		s.emitter.Emit(ctx, domain.EventReviewRequest, map[string]interface{}{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"user_id":      order.UserID,
			"delivered_at": order.DeliveredAt,
		})
	}
	logger.Ctx(ctx).Debug().Int("count", len(orders)).Msg("review request scan done")
	return nil
}

func observeScan(name string, start time.Time) {
	metrics.ScanDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
