// internal/service/checkout/application/service.go
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
	catalogdomain "localcart/internal/service/catalog/domain"
	"localcart/internal/service/checkout/domain"
	orderdomain "localcart/internal/service/order/domain"
	promoapp "localcart/internal/service/promotion/application"
)

// CouponApplier 是结账对优惠券引擎的依赖面。
// 由 PromotionService 实现；测试里用假实现替换。
type CouponApplier interface {
	ApplyCoupon(ctx context.Context, req *promoapp.ApplyCouponRequest) (*promoapp.AppliedCoupon, error)
}

// CheckoutService 是结账编排器：把一辆购物车变成一张订单。
// 计价、核销优惠券、扣库存、写订单、清空购物车发生在同一个事务里，
// 任何一步失败全部回滚，绝不留下半张订单。
type CheckoutService struct {
	cartRepo        domain.CartRepository
	addressResolver domain.AddressResolver
	productRepo     catalogdomain.ProductRepository
	stockGuard      catalogdomain.StockGuard
	couponApplier   CouponApplier
	orderRepo       orderdomain.OrderRepository
	txManager       db.Runner
	emitter         automationport.Emitter
	tracer          trace.Tracer
	pricing         domain.PricingConfig
}

func NewCheckoutService(
	cartRepo domain.CartRepository,
	addressResolver domain.AddressResolver,
	productRepo catalogdomain.ProductRepository,
	stockGuard catalogdomain.StockGuard,
	couponApplier CouponApplier,
	orderRepo orderdomain.OrderRepository,
	txManager db.Runner,
	emitter automationport.Emitter,
	tracer trace.Tracer,
	pricing domain.PricingConfig,
) *CheckoutService {
	return &CheckoutService{
		cartRepo:        cartRepo,
		addressResolver: addressResolver,
		productRepo:     productRepo,
		stockGuard:      stockGuard,
		couponApplier:   couponApplier,
		orderRepo:       orderRepo,
		txManager:       txManager,
		emitter:         emitter,
		tracer:          tracer,
		pricing:         pricing,
	}
}

// CheckoutRequest 携带下单所需的输入。
type CheckoutRequest struct {
	UserID            uint64
	ShippingAddressID uint64
	BillingAddressID  uint64
	CouponCode        string
	Notes             string
}

// Checkout 执行结账事务。
func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*orderdomain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", int64(req.UserID)))

	var order *orderdomain.Order
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.checkoutTx(ctx, req)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code, ok := apperrors.CodeOf(err); ok {
			metrics.CheckoutTotal.WithLabelValues(string(code)).Inc()
		} else {
			metrics.CheckoutTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.CheckoutTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.String("order.number", order.OrderNumber))

	// 事件只在提交之后发出，投递失败不影响已落库的订单。
	s.emitter.Emit(ctx, automation.EventOrderCreated, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"total":        order.Total.StringFixed(2),
		"item_count":   len(order.Items),
	})

	logger.Ctx(ctx).Info().
		Str("order", order.OrderNumber).
		Str("total", order.Total.StringFixed(2)).
		Int("items", len(order.Items)).
		Msg("checkout completed")
	return order, nil
}

// checkoutTx 是事务内的主体流程。
func (s *CheckoutService) checkoutTx(ctx context.Context, req *CheckoutRequest) (*orderdomain.Order, error) {
	// 校验在任何写入之前完成。
	if _, err := s.addressResolver.Resolve(ctx, req.ShippingAddressID, req.UserID); err != nil {
		return nil, err
	}
	if _, err := s.addressResolver.Resolve(ctx, req.BillingAddressID, req.UserID); err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if cart.Empty() {
		return nil, apperrors.New(apperrors.CodeValidation, "cart is empty")
	}

	// 逐行定格价格快照。
	lines := make([]domain.PricedLine, 0, len(cart.Items))
	itemCount := 0
	for _, item := range cart.Items {
		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, apperrors.Newf(apperrors.CodeValidation,
				"product %s is no longer available", product.Name)
		}
		unit := product.EffectivePrice()
		lines = append(lines, domain.PricedLine{
			ProductID:   product.ID,
			VendorID:    product.VendorID,
			ProductName: product.Name,
			UnitPrice:   unit,
			Quantity:    item.Quantity,
			Subtotal:    unit.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
		itemCount += item.Quantity
	}
	subtotal := domain.Subtotal(lines)

	// 核销优惠券：用量加一与后面的订单写入同生共死。
	discount := decimal.Zero
	var couponID *uint64
	if req.CouponCode != "" {
		applied, err := s.couponApplier.ApplyCoupon(ctx, &promoapp.ApplyCouponRequest{
			Code:        req.CouponCode,
			UserID:      req.UserID,
			OrderAmount: subtotal,
			ItemCount:   itemCount,
		})
		if err != nil {
			return nil, err
		}
		discount = applied.Discount
		couponID = &applied.CouponID
	}

	// 第三行缺货也会把前两行的扣减一起回滚。
	for _, line := range lines {
		if err := s.stockGuard.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}

	quote := domain.CalculateQuote(lines, discount, s.pricing)

	now := time.Now()
	orderItems := make([]orderdomain.OrderItem, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		orderItems = append(orderItems, orderdomain.OrderItem{
			ProductID:   line.ProductID,
			VendorID:    line.VendorID,
			ProductName: line.ProductName,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			Subtotal:    line.Subtotal,
		})
	}
	order := &orderdomain.Order{
		OrderNumber:       orderdomain.NewOrderNumber(now),
		UserID:            req.UserID,
		Status:            orderdomain.StatusPending,
		Subtotal:          quote.Subtotal,
		Tax:               quote.Tax,
		ShippingFee:       quote.ShippingFee,
		Discount:          quote.Discount,
		Total:             quote.Total,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		CouponID:          couponID,
		Notes:             req.Notes,
		Items:             orderItems,
	}
	if err := order.CheckTotals(); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	if err := s.cartRepo.Clear(ctx, cart.ID); err != nil {
		return nil, err
	}
	return order, nil
}

// Quote 只计价不落库，给购物车页展示用。
func (s *CheckoutService) Quote(ctx context.Context, userID uint64) (*domain.Quote, error) {
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.PricedLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		unit := product.EffectivePrice()
		lines = append(lines, domain.PricedLine{
			ProductID:   product.ID,
			VendorID:    product.VendorID,
			ProductName: product.Name,
			UnitPrice:   unit,
			Quantity:    item.Quantity,
			Subtotal:    unit.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	quote := domain.CalculateQuote(lines, decimal.Zero, s.pricing)
	return &quote, nil
}

// GetCart 返回用户的购物车，没有则建一辆空车。
func (s *CheckoutService) GetCart(ctx context.Context, userID uint64) (*domain.Cart, error) {
	return s.cartRepo.GetOrCreate(ctx, userID)
}

// AddToCart 加购；同一商品合并数量。
func (s *CheckoutService) AddToCart(ctx context.Context, userID, productID uint64, quantity int) (*domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.AddToCart")
	defer span.End()

	if quantity <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !product.IsActive {
		return nil, apperrors.Newf(apperrors.CodeValidation,
			"product %s is no longer available", product.Name)
	}

	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cartRepo.AddItem(ctx, cart.ID, productID, quantity); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.cartRepo.GetOrCreate(ctx, userID)
}

// UpdateCartItem 改数量；数量为 0 等同于删行。
func (s *CheckoutService) UpdateCartItem(ctx context.Context, userID, productID uint64, quantity int) (*domain.Cart, error) {
	if quantity < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantity must not be negative")
	}
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		err = s.cartRepo.RemoveItem(ctx, cart.ID, productID)
	} else {
		err = s.cartRepo.UpdateItemQuantity(ctx, cart.ID, productID, quantity)
	}
	if err != nil {
		return nil, err
	}
	return s.cartRepo.GetOrCreate(ctx, userID)
}

// RemoveFromCart 删行。
func (s *CheckoutService) RemoveFromCart(ctx context.Context, userID, productID uint64) (*domain.Cart, error) {
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cartRepo.RemoveItem(ctx, cart.ID, productID); err != nil {
		return nil, err
	}
	return s.cartRepo.GetOrCreate(ctx, userID)
}

// ClearCart 清空整车。
func (s *CheckoutService) ClearCart(ctx context.Context, userID uint64) error {
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	return s.cartRepo.Clear(ctx, cart.ID)
}
