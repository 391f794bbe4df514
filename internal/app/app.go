// Package app assembles the QuickKart services shared by the api and jobs binaries.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quickkart/quickkart-backend/internal/auth"
	"github.com/quickkart/quickkart-backend/internal/cart"
	"github.com/quickkart/quickkart-backend/internal/coupons"
	"github.com/quickkart/quickkart-backend/internal/delivery"
	"github.com/quickkart/quickkart-backend/internal/inventory"
	"github.com/quickkart/quickkart-backend/internal/jobs"
	"github.com/quickkart/quickkart-backend/internal/notifications"
	"github.com/quickkart/quickkart-backend/internal/orders"
	"github.com/quickkart/quickkart-backend/internal/payments"
	"github.com/quickkart/quickkart-backend/internal/pricing"
	"github.com/quickkart/quickkart-backend/internal/products"
	"github.com/quickkart/quickkart-backend/internal/reports"
	"github.com/quickkart/quickkart-backend/internal/settings"
	"github.com/quickkart/quickkart-backend/internal/stores"
	"github.com/quickkart/quickkart-backend/internal/subscriptions"
	"github.com/quickkart/quickkart-backend/internal/users"
	"github.com/quickkart/quickkart-backend/pkg/config"
	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/logger"
	"github.com/quickkart/quickkart-backend/pkg/maps"
	"github.com/quickkart/quickkart-backend/pkg/metrics"
	"github.com/quickkart/quickkart-backend/pkg/pubsub"
	"github.com/quickkart/quickkart-backend/pkg/razorpay"
	"github.com/quickkart/quickkart-backend/pkg/redis"
)

type routeEstimator interface {
	EstimateRoute(ctx context.Context, origin, destination maps.LatLng) (*maps.RouteEstimate, error)
}

// Params are the process-level resources the services are built on. Registerer may be nil.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
}

// Services is the wired domain layer.
type Services struct {
	Auth          auth.Service
	Users         users.Service
	Products      products.Service
	Cart          cart.Service
	Coupons       coupons.Service
	Stores        stores.Service
	Settings      settings.Service
	Inventory     inventory.Service
	Orders        orders.Service
	Delivery      delivery.Service
	Subscriptions subscriptions.Service
	Reports       reports.Service
	Notifier      *notifications.Notifier

	pubsub *pubsub.Client
}

// Build wires every service. The caller owns DB and Redis; Close releases what Build opened.
func Build(ctx context.Context, p Params) (*Services, error) {
	if p.Config == nil || p.Logger == nil || p.DB == nil {
		return nil, fmt.Errorf("config, logger and db are required")
	}
	cfg, logg, conn := p.Config, p.Logger, p.DB.DB()
	out := &Services{}

	userRepo := users.NewRepository(conn)
	var err error
	if out.Auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	}); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if out.Users, err = users.NewService(userRepo, p.DB); err != nil {
		return nil, fmt.Errorf("users service: %w", err)
	}

	if out.Settings, err = settings.NewService(settings.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("settings service: %w", err)
	}
	if out.Stores, err = stores.NewService(stores.NewRepository(conn), out.Settings, p.DB); err != nil {
		return nil, fmt.Errorf("stores service: %w", err)
	}
	if out.Inventory, err = inventory.NewService(conn); err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}
	if out.Products, err = products.NewService(products.NewRepository(conn), out.Inventory, p.DB); err != nil {
		return nil, fmt.Errorf("products service: %w", err)
	}
	cartRepo := cart.NewRepository(conn)
	if out.Cart, err = cart.NewService(cartRepo, out.Stores, out.Products, out.Inventory); err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}
	if out.Coupons, err = coupons.NewService(coupons.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("coupons service: %w", err)
	}
	pricer, err := pricing.NewService(pricing.NewCouponStore(conn))
	if err != nil {
		return nil, fmt.Errorf("pricing service: %w", err)
	}

	gateway, err := razorpay.NewClient(cfg.Razorpay)
	if err != nil {
		return nil, fmt.Errorf("razorpay client: %w", err)
	}
	verifier, err := payments.NewVerifier(gateway)
	if err != nil {
		return nil, fmt.Errorf("payment verifier: %w", err)
	}

	dispatcher, err := out.dispatcher(ctx, cfg, logg)
	if err != nil {
		return nil, err
	}
	if out.Notifier, err = notifications.NewNotifier(dispatcher, userRepo, logg); err != nil {
		out.Close()
		return nil, fmt.Errorf("notifier: %w", err)
	}

	var router routeEstimator
	if cfg.GoogleMaps.APIKey != "" {
		client, err := maps.NewClient(cfg.GoogleMaps.APIKey, maps.WithTimeout(cfg.GoogleMaps.ETATimeout))
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("maps client: %w", err)
		}
		router = client
	} else {
		logg.Warn(ctx, "google maps key not configured, eta disabled")
	}

	orderRepo := orders.NewRepository(conn)
	if out.Delivery, err = delivery.NewService(orderRepo, userRepo, out.Settings, out.Stores, router, logg); err != nil {
		out.Close()
		return nil, fmt.Errorf("delivery service: %w", err)
	}
	if out.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:      orderRepo,
		Tx:        p.DB,
		Cart:      cartRepo,
		Stores:    out.Stores,
		Inventory: out.Inventory,
		Pricing:   pricer,
		Payments:  verifier,
		Products:  out.Products,
		Addresses: userRepo,
		Notifier:  out.Notifier,
		Assigner:  out.Delivery,
		Metrics:   metrics.NewOrderMetrics(p.Registerer),
		Logger:    logg,
	}); err != nil {
		out.Close()
		return nil, fmt.Errorf("orders service: %w", err)
	}
	if out.Subscriptions, err = subscriptions.NewService(subscriptions.ServiceParams{
		Repo:     subscriptions.NewRepository(conn),
		Stores:   out.Stores,
		Products: out.Products,
		Orders:   out.Orders,
		Tx:       p.DB,
		Logger:   logg,
	}); err != nil {
		out.Close()
		return nil, fmt.Errorf("subscriptions service: %w", err)
	}
	if out.Reports, err = reports.NewService(conn, out.Settings); err != nil {
		out.Close()
		return nil, fmt.Errorf("reports service: %w", err)
	}
	return out, nil
}

// dispatcher picks the Pub/Sub fan-out when the feature flag is on, else the log dispatcher.
func (s *Services) dispatcher(ctx context.Context, cfg *config.Config, logg *logger.Logger) (notifications.Dispatcher, error) {
	if !cfg.FeatureFlags.PubSubNotifications {
		return notifications.NewLogDispatcher(logg), nil
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	s.pubsub = client
	dispatcher, err := notifications.NewPubSubDispatcher(client, cfg.Email.DefaultFrom)
	if err != nil {
		return nil, fmt.Errorf("pubsub dispatcher: %w", err)
	}
	return dispatcher, nil
}

// PubSub returns the notification client, nil when notifications are logged only.
func (s *Services) PubSub() *pubsub.Client {
	return s.pubsub
}

// Jobs registers the maintenance jobs on a runner guarded by Redis locks.
func (s *Services) Jobs(p Params, jobMetrics *metrics.JobMetrics) (*jobs.Runner, error) {
	cfg, logg := p.Config, p.Logger
	subs, err := jobs.NewSubscriptionJob(s.Subscriptions, logg)
	if err != nil {
		return nil, err
	}
	carts, err := jobs.NewCartCleanupJob(s.Cart, cfg.Jobs.CartIdleTTL, logg)
	if err != nil {
		return nil, err
	}
	lowStock, err := jobs.NewLowStockJob(s.Inventory, s.Settings, s.Notifier, cfg.Email.AdminEmails, logg)
	if err != nil {
		return nil, err
	}
	return jobs.NewRunner(jobs.RunnerParams{
		Logger:   logg,
		Registry: jobs.NewRegistry(subs, carts, lowStock),
		Locks:    jobs.RedisLocks(p.Redis, cfg.Jobs.LockTTL),
		Metrics:  jobMetrics,
		Timeout:  cfg.Jobs.BatchTimeout,
	})
}

// Close waits for queued notifications, then releases the clients Build opened.
func (s *Services) Close() {
	s.Notifier.Flush()
	if s.pubsub != nil {
		_ = s.pubsub.Close()
	}
}
