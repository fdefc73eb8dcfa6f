// Package bootstrap builds the application graph from Settings: storage,
// queue, notifications, real-time fan-out, services, controllers and the HTTP
// kernel. Every CLI command starts here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/orderdesk/app/controllers"
	"github.com/shashiranjanraj/orderdesk/app/repositories"
	"github.com/shashiranjanraj/orderdesk/app/routes"
	"github.com/shashiranjanraj/orderdesk/app/services"
	"github.com/shashiranjanraj/orderdesk/config"
	_ "github.com/shashiranjanraj/orderdesk/database/migrations"
	"github.com/shashiranjanraj/orderdesk/database/seeders"
	"github.com/shashiranjanraj/orderdesk/internal/kernel"
	"github.com/shashiranjanraj/orderdesk/pkg/auth"
	"github.com/shashiranjanraj/orderdesk/pkg/cache"
	"github.com/shashiranjanraj/orderdesk/pkg/database"
	"github.com/shashiranjanraj/orderdesk/pkg/event"
	"github.com/shashiranjanraj/orderdesk/pkg/logger"
	"github.com/shashiranjanraj/orderdesk/pkg/middleware"
	"github.com/shashiranjanraj/orderdesk/pkg/migration"
	"github.com/shashiranjanraj/orderdesk/pkg/notification"
	"github.com/shashiranjanraj/orderdesk/pkg/queue"
	"github.com/shashiranjanraj/orderdesk/pkg/router"
	"github.com/shashiranjanraj/orderdesk/pkg/schedule"
	"github.com/shashiranjanraj/orderdesk/pkg/sse"
	"github.com/shashiranjanraj/orderdesk/pkg/storage"
	"github.com/shashiranjanraj/orderdesk/pkg/ws"
)

const (
	queueName       = "orderdesk:jobs"
	redisKeyPrefix  = "orderdesk"
	memoryQueueSize = 1024
	sseKeepAlive    = 15 * time.Second
	gaugePeriod     = 30 * time.Second
)

// App holds every long-lived dependency. Fields the current configuration
// does not use are nil.
type App struct {
	Settings config.Settings

	DB    *gorm.DB
	Redis *redis.Client

	Orders        repositories.OrderStore
	Subscriptions repositories.SubscriptionRegistry
	Staff         repositories.StaffRepository

	Queue     *queue.Manager
	Hub       *ws.Hub
	Broker    *sse.Broker
	Bus       *event.Bus
	Scheduler *schedule.Scheduler
	Limiter   *middleware.Limiter

	OrderManager *services.OrderManager
	Notifier     *services.Notifier
	Kernel       *kernel.HTTPKernel

	closers []func() error
}

// Option adjusts how New wires the application.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient routes outgoing webhook and push calls through c.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New wires the whole application. On error everything opened so far is
// closed again.
func New(ctx context.Context, s config.Settings, opts ...Option) (app *App, err error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	app = &App{Settings: s}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	if s.LogMongoURI != "" {
		if err := logger.EnableMongo(s.LogMongoURI, s.LogMongoDB, s.LogMongoCollection); err != nil {
			logger.Warn("bootstrap: mongo log sink disabled", "error", err)
		}
	}

	if err = app.openStores(ctx); err != nil {
		return app, err
	}
	if err = app.openQueue(); err != nil {
		return app, err
	}

	var pusher *notification.WebPusher
	if s.VAPIDPublicKey != "" && s.VAPIDPrivateKey != "" {
		pusher, err = notification.NewWebPusher(notification.WebPushOptions{
			PublicKey:  s.VAPIDPublicKey,
			PrivateKey: s.VAPIDPrivateKey,
			Subject:    s.VAPIDSubject,
			TTL:        int(time.Hour.Seconds()),
			HTTPClient: o.httpClient,
		})
		if err != nil {
			return app, fmt.Errorf("bootstrap: web push: %w", err)
		}
	} else {
		logger.Warn("bootstrap: VAPID keys not set, push notifications disabled")
	}

	var slack *notification.SlackNotifier
	if s.SlackWebhook != "" {
		slack = notification.NewSlackNotifier(s.SlackWebhook).WithClient(o.httpClient)
	}

	app.Hub = ws.NewHub()
	app.Broker = sse.NewBroker(sseKeepAlive)
	app.Bus = event.New()

	notifierOpts := services.NotifierOptions{
		Publishers:    []services.Publisher{app.Hub, app.Broker},
		Jobs:          app.Queue,
		Subscriptions: app.Subscriptions,
		Slack:         slack,
		NotifyURL:     s.NotifyURL,
	}
	pushKey := ""
	if pusher != nil {
		notifierOpts.Pusher = pusher
		pushKey = pusher.PublicKey()
	}
	app.Notifier = services.NewNotifier(notifierOpts)
	app.Notifier.RegisterJobs(app.Queue)

	app.OrderManager = services.NewOrderManager(app.Orders, app.Notifier, s.DeliveryFee)
	authService := services.NewAuthService(app.Staff, auth.BcryptVerifier{}, pushKey)
	subscriptionService := services.NewSubscriptionService(app.Subscriptions)

	graphQL, err := controllers.NewGraphQLController(app.OrderManager)
	if err != nil {
		return app, fmt.Errorf("bootstrap: graphql schema: %w", err)
	}
	ctrl := routes.Controllers{
		Orders:        controllers.NewOrderController(app.OrderManager),
		Staff:         controllers.NewStaffController(authService),
		Subscriptions: controllers.NewSubscriptionController(subscriptionService),
		Realtime:      controllers.NewRealtimeController(app.OrderManager, app.Hub, app.Broker, app.Bus),
		GraphQL:       graphQL,
	}

	if s.RateLimitPerMinute > 0 {
		app.Limiter = middleware.NewLimiter(s.RateLimitPerMinute, time.Minute)
	}
	app.Kernel = kernel.NewHTTPKernel(middleware.DefaultCORSOptions(), func(r *router.Router) {
		routes.RegisterAPI(r, ctrl, routes.Options{
			StaffAuthRequired: s.StaffAuthRequired,
			OrderLimiter:      app.Limiter,
		})
	})

	app.Scheduler = schedule.New()
	app.Scheduler.Every(gaugePeriod).Name("orders.active-gauge").WithoutOverlapping().Run(func(ctx context.Context) error {
		_, err := app.OrderManager.Stats(ctx)
		return err
	})
	app.Scheduler.Every(gaugePeriod).Name("subscriptions.gauge").WithoutOverlapping().Run(func(ctx context.Context) error {
		_, err := subscriptionService.Count(ctx)
		return err
	})

	return app, nil
}

func (a *App) openStores(ctx context.Context) error {
	s := a.Settings

	if s.OrderStore == "database" || s.SubscriptionStore == "database" {
		if err := a.OpenDB(ctx); err != nil {
			return err
		}
		if _, err := migration.New(a.DB, nil).Run(ctx); err != nil {
			return fmt.Errorf("bootstrap: migrate: %w", err)
		}
	}
	if s.SubscriptionStore == "redis" || s.QueueDriver == "redis" {
		rdb, err := cache.Connect(ctx, s.RedisAddr, s.RedisPassword)
		if err != nil {
			return fmt.Errorf("bootstrap: redis: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, rdb.Close)
	}

	switch s.OrderStore {
	case "memory", "":
		a.Orders = repositories.NewMemoryOrderStore()
	case "file":
		disk, err := storage.New(ctx, s)
		if err != nil {
			return fmt.Errorf("bootstrap: storage: %w", err)
		}
		a.Orders = repositories.NewFileOrderStore(disk, s.OrderFile)
	case "database":
		a.Orders = repositories.NewGormOrderStore(a.DB)
	default:
		return fmt.Errorf("bootstrap: unknown ORDER_STORE %q", s.OrderStore)
	}

	switch s.SubscriptionStore {
	case "memory", "":
		a.Subscriptions = repositories.NewMemorySubscriptionRegistry()
	case "database":
		a.Subscriptions = repositories.NewGormSubscriptionRegistry(a.DB)
	case "redis":
		a.Subscriptions = repositories.NewRedisSubscriptionRegistry(a.Redis, redisKeyPrefix)
	default:
		return fmt.Errorf("bootstrap: unknown SUBSCRIPTION_STORE %q", s.SubscriptionStore)
	}

	if a.DB != nil {
		a.Staff = repositories.NewGormStaffRepository(a.DB)
	} else {
		a.Staff = repositories.NewMemoryStaffRepository()
	}
	if err := seeders.EnsureStaff(ctx, a.Staff, auth.BcryptVerifier{}, s); err != nil {
		return fmt.Errorf("bootstrap: seed staff: %w", err)
	}
	return nil
}

func (a *App) openQueue() error {
	s := a.Settings

	var driver queue.Driver
	switch s.QueueDriver {
	case "memory", "":
		driver = queue.NewMemoryDriver(memoryQueueSize)
	case "redis":
		driver = queue.NewRedisDriver(a.Redis, queueName)
	case "rabbitmq":
		d, err := queue.NewRabbitMQDriver(s.RabbitMQURL, queueName, s.PushWorkers)
		if err != nil {
			return fmt.Errorf("bootstrap: rabbitmq: %w", err)
		}
		driver = d
	default:
		return fmt.Errorf("bootstrap: unknown QUEUE_DRIVER %q", s.QueueDriver)
	}

	a.Queue = queue.NewManager(driver, queue.Options{
		Workers:  s.PushWorkers,
		Timeout:  s.PushTimeout,
		MaxRetry: s.QueueMaxRetry,
	})
	if a.DB != nil {
		a.Queue.UseDB(a.DB)
	}
	a.closers = append(a.closers, a.Queue.Close)
	return nil
}

// OpenDB connects to the configured database if not already connected.
// The migrate and seed commands use it on its own.
func (a *App) OpenDB(ctx context.Context) error {
	if a.DB != nil {
		return nil
	}
	db, err := database.Open(ctx, a.Settings.DatabaseDriver(), a.Settings.DSN())
	if err != nil {
		return fmt.Errorf("bootstrap: database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() error { return database.Close(db) })
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	logger.Close()
	return errors.Join(errs...)
}
