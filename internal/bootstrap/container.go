package bootstrap

import (
	"context"
	"fmt"
	"log"

	"milk-subscription-be/internal/config"
	"milk-subscription-be/internal/controller"
	"milk-subscription-be/internal/pkg/logger"
	"milk-subscription-be/internal/pkg/mailer"
	"milk-subscription-be/internal/pkg/serverutils"
	"milk-subscription-be/internal/repository/cache"
	"milk-subscription-be/internal/repository/contract"
	"milk-subscription-be/internal/repository/implementation"
	"milk-subscription-be/internal/repository/memory"
	"milk-subscription-be/internal/repository/unitofwork"
	"milk-subscription-be/internal/service"
	"milk-subscription-be/pkg/events"
	"milk-subscription-be/pkg/gateway/factory"
	"milk-subscription-be/pkg/metrics"
	"milk-subscription-be/pkg/subscription"

	pktNats "milk-subscription-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	PlanController         controller.IPlanController
	SubscriptionController controller.ISubscriptionController
	PaymentController      controller.IPaymentController

	// Exposed for cmd/subctl and cmd/seed
	SubscriptionService service.ISubscriptionService
	Lifecycle           *subscription.Lifecycle
	Store               contract.SubscriptionRepository
	RepositoryFactory   unitofwork.RepositoryFactory

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	MetricsRegistry *prometheus.Registry
	Logger          logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	webhookLogger := logger.NewIsolatedLogger(cfg.App.WebhookLogFilePath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	subMetrics := metrics.NewSubscriptionMetrics(registry)

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	c := &Container{
		RepositoryFactory: uowFactory,
		MetricsRegistry:   registry,
		Logger:            sysLogger,
	}
	c.closers = append(c.closers, func() { _ = sysLogger.Sync(); _ = webhookLogger.Sync() })

	// 2. Payment Gateway
	gw, err := factory.NewGateway(factory.Options{
		Provider:              cfg.Payment.Provider,
		RazorpayKeyId:         cfg.Payment.RazorpayKeyId,
		RazorpayKeySecret:     cfg.Payment.RazorpayKeySecret,
		RazorpayWebhookSecret: cfg.Payment.RazorpayWebhookSecret,
		MidtransServerKey:     cfg.Payment.MidtransServerKey,
		MidtransClientKey:     cfg.Payment.MidtransClientKey,
		MidtransProduction:    cfg.Payment.MidtransProduction,
		CheckoutSecret:        cfg.Payment.SignatureSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w", err)
	}
	log.Printf("[INFO] Using Payment Provider: %s", gw.Name())

	// 3. Subscription Store
	var store contract.SubscriptionRepository
	switch cfg.Storage.Driver {
	case "memory":
		store = memory.NewSubscriptionRepository()
		log.Printf("[WARN] Subscriptions are kept in memory and lost on restart")
	case "", "gorm":
		store = implementation.NewSubscriptionRepository(db)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
	c.Store = store

	// 4. Status Cache
	var subCache cache.SubscriptionCache
	switch cfg.Cache.Driver {
	case "redis":
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		subCache = cache.NewRedisSubscriptionCache(rdb, cfg.Cache.TTL)
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	default:
		subCache = cache.NewMemorySubscriptionCache(cfg.Cache.TTL)
	}

	// 5. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	publisherService := service.NewPublisherService(cfg.App.EventTopic, pubSub)

	var forwarder events.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			forwarder = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.App.EventTopic,
		forwarder,
		implementation.NewUserRepository(db),
		emailService,
		sysLogger,
	)

	// 6. Lifecycle and Services
	verifier := subscription.NewVerifier(gw, cfg.Payment.VerifyTimeout, subMetrics, sysLogger)
	c.Lifecycle = subscription.NewLifecycle(store, verifier, subCache, publisherService, subMetrics, sysLogger, subscription.SystemClock{})
	c.SubscriptionService = service.NewSubscriptionService(c.Lifecycle, store, subCache, gw, sysLogger, webhookLogger)

	// 7. Controllers
	jwtMiddleware := serverutils.NewJwtMiddleware(cfg.App.JwtSecret)
	c.PlanController = controller.NewPlanController(c.SubscriptionService)
	c.SubscriptionController = controller.NewSubscriptionController(c.SubscriptionService, jwtMiddleware)
	c.PaymentController = controller.NewPaymentController(c.SubscriptionService)

	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
