package cmd

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/notify"
	"github.com/vibast-solutions/ms-go-billing/app/payment"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/app/store"
	"github.com/vibast-solutions/ms-go-billing/config"

	_ "github.com/go-sql-driver/mysql"
)

// application holds the wired service graph shared by serve and the jobs.
type application struct {
	cfg           *config.Config
	db            *sql.DB
	plans         *service.PlanService
	subscriptions *service.SubscriptionService
	checkout      *service.CheckoutService
	reconciler    *service.Reconciler
	usage         *service.UsageService
	notifications *service.NotificationService
	closers       []func()
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDB(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func mustBuildApplication(cfg *config.Config) *application {
	db := mustOpenDB(cfg)
	app := &application{cfg: cfg, db: db}
	app.closers = append(app.closers, func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	})

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	planRepo := repository.NewPlanRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	userRepo := repository.NewUserRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	ledger := repository.NewLedger(db)

	attempts := app.checkoutAttemptStore()
	dispatcher := app.notificationDispatcher()

	app.plans = service.NewPlanService(planRepo)
	app.notifications = service.NewNotificationService(dispatcher, userRepo, outboxRepo, cfg.Jobs)
	app.subscriptions = service.NewSubscriptionService(subscriptionRepo, app.plans, ledger, app.notifications)
	app.usage = service.NewUsageService(subscriptionRepo, app.plans, usageRepo)

	verifier := payment.NewVerifier(cfg.Gateway.APIKey, cfg.Gateway.APISecret, cfg.Gateway.RequireSignature)
	app.reconciler = service.NewReconciler(verifier, app.plans, ledger, attempts, app.notifications)

	provider := payment.NewClient(payment.ClientConfig{
		BaseURL:         cfg.Gateway.BaseURL,
		APIKey:          cfg.Gateway.APIKey,
		Sandbox:         cfg.Gateway.Sandbox,
		Timeout:         cfg.Gateway.Timeout,
		BreakerFailures: cfg.Gateway.BreakerFailures,
		BreakerCooldown: cfg.Gateway.BreakerCooldown,
	}, nil)
	app.checkout = service.NewCheckoutService(app.plans, provider, payment.NewReferenceGenerator(), attempts, service.CheckoutConfig{
		IPNURL:     cfg.IPNURL(),
		SuccessURL: cfg.Billing.SuccessURL,
		CancelURL:  cfg.Billing.CancelURL,
	})

	return app
}

// checkoutAttemptStore uses Redis when REDIS_URL is set so attempts survive
// restarts and are shared between instances.
func (a *application) checkoutAttemptStore() store.CheckoutAttemptStore {
	ttl := a.cfg.Billing.CheckoutAttemptTT
	if a.cfg.Redis.URL == "" {
		logrus.Info("REDIS_URL not set, keeping checkout attempts in process memory")
		return store.NewMemoryCheckoutStore(ttl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := store.ConnectRedis(ctx, a.cfg.Redis.URL)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to redis")
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	})
	return store.NewRedisCheckoutStore(client, ttl)
}

func (a *application) notificationDispatcher() notify.Dispatcher {
	if a.cfg.RabbitMQ.URL == "" {
		logrus.Info("RABBITMQ_URL not set, notifications are logged only")
		return notify.NewLogDispatcher()
	}

	publisher, err := notify.NewRabbitMQPublisher(a.cfg.RabbitMQ.URL, a.cfg.RabbitMQ.Exchange)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to rabbitmq")
	}
	a.closers = append(a.closers, func() {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close rabbitmq publisher")
		}
	})
	return publisher
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
