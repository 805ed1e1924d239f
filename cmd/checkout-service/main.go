// cmd/checkout-service/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"localcart/internal/pkg/bootstrap"
	"localcart/internal/pkg/db"
	"localcart/internal/pkg/httpclient"
	"localcart/internal/pkg/logger"
	"localcart/internal/pkg/mq"
	"localcart/internal/pkg/redis"
	"localcart/internal/pkg/zookeeper"
	automationapp "localcart/internal/service/automation/application"
	automationinfra "localcart/internal/service/automation/infrastructure"
	automationport "localcart/internal/service/automation/port"
	cataloginfra "localcart/internal/service/catalog/infrastructure"
	checkoutapp "localcart/internal/service/checkout/application"
	checkoutdomain "localcart/internal/service/checkout/domain"
	checkoutinfra "localcart/internal/service/checkout/infrastructure"
	checkoutifaces "localcart/internal/service/checkout/interfaces"
	orderapp "localcart/internal/service/order/application"
	orderinfra "localcart/internal/service/order/infrastructure"
	orderifaces "localcart/internal/service/order/interfaces"
	paymentapp "localcart/internal/service/payment/application"
	paymentinfra "localcart/internal/service/payment/infrastructure"
	"localcart/internal/service/payment/infrastructure/adapter"
	paymentifaces "localcart/internal/service/payment/interfaces"
	paymentport "localcart/internal/service/payment/port"
	promoapp "localcart/internal/service/promotion/application"
	promoinfra "localcart/internal/service/promotion/infrastructure"
	"localcart/internal/service/promotion/infrastructure/rule"
	promoifaces "localcart/internal/service/promotion/interfaces"
	"localcart/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := bootstrap.Load(*configPath)
	if err != nil {
		logger.Init("checkout-service")
		logger.Logger().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.App.ServiceName)

	gormDB, err := store.Open(cfg.Infra.MySQLDSN)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to open database")
	}
	txManager := db.NewTxManager(gormDB)

	redisClient, err := redis.NewClient(cfg.Infra.RedisAddr)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to connect redis")
	}

	tracer := otel.Tracer(cfg.App.ServiceName)

	// 事件出口：webhook / kafka / websocket 推送三选一。
	var (
		sink    automationport.EventSink
		pushHub *automationinfra.PushHub
		cleanup []func(ctx context.Context)
	)
	switch cfg.Automation.SinkKind {
	case "kafka":
		writer := mq.NewKafkaWriter(strings.Split(cfg.Infra.KafkaAddrs, ","), cfg.Automation.KafkaTopic)
		kafkaSink := automationinfra.NewKafkaSink(writer)
		cleanup = append(cleanup, func(context.Context) { _ = kafkaSink.Close() })
		sink = kafkaSink
	case "push":
		pushHub = automationinfra.NewPushHub()
		cleanup = append(cleanup, func(context.Context) { _ = pushHub.Close() })
		sink = pushHub
	default:
		sink = automationinfra.NewWebhookSink(httpclient.NewClient(tracer), cfg.Automation.WebhookBaseURL)
	}

	// webhookEnabled 只约束 webhook 出口，kafka / push 不受它影响。
	sinkReady := cfg.Automation.SinkKind == "kafka" ||
		cfg.Automation.SinkKind == "push" ||
		cfg.Automation.WebhookEnabled

	var emitter automationport.Emitter = automationport.NopEmitter{}
	if cfg.Automation.Enabled && sinkReady {
		dispatcher := automationapp.NewDispatcher(sink, cfg.Automation.QueueSize, true)
		dispatcher.Start()
		cleanup = append(cleanup, func(ctx context.Context) { _ = dispatcher.Close(ctx) })
		emitter = dispatcher
	}

	// 仓储
	productRepo := cataloginfra.NewGormProductRepository(gormDB)
	couponRepo := promoinfra.NewGormCouponRepository(gormDB)
	orderRepo := orderinfra.NewGormOrderRepository(gormDB)
	paymentRepo := paymentinfra.NewGormPaymentRepository(gormDB)
	cartRepo := checkoutinfra.NewGormCartRepository(gormDB)
	addressResolver := checkoutinfra.NewGormAddressResolver(gormDB)

	// 支付网关：启动时按配置定死，不做运行时发现。
	var gateway paymentport.PaymentGateway
	switch cfg.Payment.Provider {
	case "hosted":
		gateway = adapter.NewHostedGateway(cfg.Payment.GatewayBaseURL, cfg.Payment.GatewayAPIKey, tracer)
	default:
		gateway = adapter.NewMockGateway(cfg.Payment.MockAutoApprove)
	}

	ruleEngine, err := rule.NewCELRuleEngine()
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to build rule engine")
	}

	// 应用服务
	promotionSvc := promoapp.NewPromotionService(couponRepo, ruleEngine, orderRepo, tracer)
	orderSvc := orderapp.NewOrderService(orderRepo, productRepo, txManager, emitter, tracer)
	paymentSvc := paymentapp.NewPaymentService(paymentRepo, orderRepo, gateway, txManager, emitter, tracer, cfg.Payment.CallTimeout.Std())
	checkoutSvc := checkoutapp.NewCheckoutService(
		cartRepo,
		addressResolver,
		productRepo,
		productRepo,
		promotionSvc,
		orderRepo,
		txManager,
		emitter,
		tracer,
		checkoutdomain.PricingConfig{
			TaxRate:               decimal.NewFromFloat(cfg.Checkout.TaxRate),
			FreeShippingThreshold: decimal.NewFromFloat(cfg.Checkout.FreeShippingThreshold),
			FlatShippingFee:       decimal.NewFromFloat(cfg.Checkout.FlatShippingFee),
		},
	)

	// 自动扫描（进程内跑，零散部署时靠 zk 锁保证单实例执行）
	if cfg.Automation.Enabled {
		var leaderLock automationapp.LeaderLock
		if cfg.Automation.LeaderLockEnabled {
			zkConn, err := zookeeper.Connect(strings.Split(cfg.Infra.ZkAddrs, ","))
			if err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to connect zookeeper")
			}
			cleanup = append(cleanup, func(context.Context) { zkConn.Close() })
			leaderLock, err = zookeeper.NewDistributedLock(zkConn, "automation-scanner")
			if err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to create scan lock")
			}
		}

		scanner := automationapp.NewScanner(
			productRepo, cartRepo, orderRepo, emitter, redisClient, leaderLock, tracer,
			automationapp.ScannerConfig{
				Interval:           cfg.Automation.ScanInterval.Std(),
				LowStockThreshold:  cfg.Automation.LowStockThreshold,
				AbandonedCartAfter: cfg.Automation.AbandonedCartAfter.Std(),
				ReviewRequestAfter: cfg.Automation.ReviewRequestAfter.Std(),
				SuppressionWindow:  cfg.Automation.SuppressionWindow.Std(),
			},
		)
		scanCtx, stopScan := context.WithCancel(context.Background())
		go scanner.Run(scanCtx)
		cleanup = append(cleanup, func(context.Context) { stopScan() })
	}
	cleanup = append(cleanup, func(context.Context) { _ = redisClient.Close() })

	checkoutHandler := checkoutifaces.NewCheckoutHandler(checkoutSvc)
	orderHandler := orderifaces.NewOrderHandler(orderSvc)
	paymentHandler := paymentifaces.NewPaymentHandler(paymentSvc)
	couponHandler := promoifaces.NewCouponHandler(promotionSvc)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:    cfg.App.ServiceName,
		Port:           cfg.App.Port,
		JaegerEndpoint: cfg.Infra.Jaeger.Endpoint,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			checkoutHandler.RegisterRoutes(appCtx.Mux)
			orderHandler.RegisterRoutes(appCtx.Mux)
			paymentHandler.RegisterRoutes(appCtx.Mux)
			couponHandler.RegisterRoutes(appCtx.Mux)

			appCtx.Mux.Handle("GET /metrics", promhttp.Handler())
			appCtx.Mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
				if !paymentSvc.GatewayHealthy(r.Context()) {
					http.Error(w, "payment gateway unavailable", http.StatusServiceUnavailable)
					return
				}
				w.WriteHeader(http.StatusOK)
			})
			if pushHub != nil {
				appCtx.Mux.Handle("GET /ws/events", pushHub)
			}
		},
		OnShutdown: cleanup,
	})
}
