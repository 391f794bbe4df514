package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quickkart/quickkart-backend/api/controllers"
	"github.com/quickkart/quickkart-backend/api/middleware"
	"github.com/quickkart/quickkart-backend/api/responses"
	"github.com/quickkart/quickkart-backend/internal/auth"
	"github.com/quickkart/quickkart-backend/internal/cart"
	"github.com/quickkart/quickkart-backend/internal/coupons"
	"github.com/quickkart/quickkart-backend/internal/delivery"
	"github.com/quickkart/quickkart-backend/internal/orders"
	"github.com/quickkart/quickkart-backend/internal/products"
	"github.com/quickkart/quickkart-backend/internal/reports"
	"github.com/quickkart/quickkart-backend/internal/settings"
	"github.com/quickkart/quickkart-backend/internal/stores"
	"github.com/quickkart/quickkart-backend/internal/subscriptions"
	"github.com/quickkart/quickkart-backend/internal/users"
	"github.com/quickkart/quickkart-backend/pkg/config"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/logger"
	"github.com/quickkart/quickkart-backend/pkg/metrics"
	"github.com/quickkart/quickkart-backend/pkg/redis"
)

const (
	loginWindow     = 15 * time.Minute
	loginIPLimit    = 30
	loginEmailLimit = 10
	apiWindow       = time.Minute
	apiLimit        = 300
)

// RedisStore is the slice of the Redis client the HTTP layer leans on.
type RedisStore interface {
	redis.IdempotencyStore
	redis.RateLimiter
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Params carries every dependency the router wires. Nil services answer 500.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    RedisStore
	Ready    map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTPMetrics

	Auth          auth.Service
	Users         users.Service
	Products      products.Service
	Cart          cart.Service
	Orders        orders.Service
	Delivery      delivery.Service
	Coupons       coupons.Service
	Stores        stores.Service
	Subscriptions subscriptions.Service
	Settings      settings.Service
	Reports       reports.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	responses.ExposeStack(!cfg.App.IsProd())

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.Metrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Ready))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy("login", loginWindow, loginIPLimit, loginEmailLimit)
	registerPolicy := middleware.NewAuthRateLimitPolicy("register", loginWindow, loginIPLimit, loginEmailLimit)

	var (
		idem      redis.IdempotencyStore
		limiter   redis.RateLimiter
		authStore interface {
			IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
		}
	)
	if p.Redis != nil {
		idem, limiter, authStore = p.Redis, p.Redis, p.Redis
	}

	admin := middleware.RequireRole(logg, enums.UserRoleAdmin)
	staff := middleware.RequireRole(logg, enums.UserRoleStaff, enums.UserRoleAdmin)
	partner := middleware.RequireRole(logg, enums.UserRoleDeliveryPartner, enums.UserRoleAdmin)
	partnerOnly := middleware.RequireRole(logg, enums.UserRoleDeliveryPartner)

	throttle := middleware.RateLimit(limiter, apiLimit, apiWindow, logg)
	idempotent := middleware.Idempotency(idem, cfg.Idempotency.TTL, logg)
	authed := chi.Chain(middleware.Auth(cfg.JWT, logg), throttle, idempotent)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(throttle, middleware.AuthRateLimit(registerPolicy, authStore, logg), idempotent).
				Post("/register", controllers.UserRegister(p.Auth, logg))
			r.With(throttle, middleware.AuthRateLimit(loginPolicy, authStore, logg)).
				Post("/login", controllers.UserLogin(p.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(authed...)
				r.Get("/profile", controllers.UserProfile(p.Users, logg))
				r.Get("/addresses", controllers.ListAddresses(p.Users, logg))
				r.Post("/addresses", controllers.AddAddress(p.Users, logg))
				r.With(admin).Post("/", controllers.AdminCreateUser(p.Auth, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.With(throttle).Get("/", controllers.ListProducts(p.Products, logg))
			r.With(throttle).Get("/{id}", controllers.ProductDetail(p.Products, logg))

			r.Group(func(r chi.Router) {
				r.Use(authed...)
				r.Post("/{id}/reviews", controllers.AddProductReview(p.Products, p.Users, logg))
				r.With(admin).Post("/", controllers.CreateProduct(p.Products, logg))
				r.With(admin).Put("/{id}/stock", controllers.UpdateProductStock(p.Products, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authed...)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(p.Cart, logg))
				r.Post("/", controllers.CartAddItem(p.Cart, logg))
				r.Delete("/", controllers.CartClear(p.Cart, logg))
				r.Delete("/{productId}", controllers.CartRemoveItem(p.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.CreateOrder(p.Orders, logg))
				r.Post("/verify-payment", controllers.VerifyPayment(p.Orders, logg))
				r.Get("/myorders", controllers.MyOrders(p.Orders, logg))
				r.With(admin).Get("/admin/all", controllers.AllOrders(p.Orders, logg))
				r.Get("/{id}", controllers.OrderDetail(p.Orders, logg))
				r.Put("/{id}/cancel", controllers.CancelOrder(p.Orders, logg))
				r.With(staff).Put("/{id}/pack", controllers.PackOrder(p.Orders, logg))
				r.With(partner).Put("/{id}/out-for-delivery", controllers.OutForDelivery(p.Orders, logg))
				r.With(partner).Put("/{id}/deliver", controllers.DeliverOrder(p.Orders, logg))
				r.Post("/{id}/feedback", controllers.OrderFeedback(p.Orders, logg))
				r.Post("/{id}/report-issue", controllers.ReportOrderIssue(p.Orders, logg))
				r.With(admin).Put("/{id}/resolve-issue", controllers.ResolveOrderIssue(p.Orders, logg))
			})

			r.Route("/delivery", func(r chi.Router) {
				r.With(partnerOnly).Put("/status", controllers.PartnerStatus(p.Delivery, logg))
				r.With(partnerOnly).Put("/location", controllers.PartnerLocation(p.Delivery, logg))
				r.With(partnerOnly).Get("/my-orders", controllers.PartnerOrders(p.Delivery, logg))
				r.With(staff).Get("/find-partners/{id}", controllers.FindPartners(p.Delivery, logg))
				r.With(admin).Put("/assign/{id}", controllers.AssignPartner(p.Delivery, logg))
				r.Get("/track/{id}", controllers.TrackOrder(p.Delivery, logg))
				r.Get("/eta/{id}", controllers.OrderETA(p.Delivery, logg))
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Post("/validate", controllers.ValidateCoupon(p.Coupons, logg))
				r.Group(func(r chi.Router) {
					r.Use(admin)
					r.Post("/", controllers.CreateCoupon(p.Coupons, logg))
					r.Get("/", controllers.ListCoupons(p.Coupons, logg))
					r.Put("/{id}", controllers.UpdateCoupon(p.Coupons, logg))
					r.Delete("/{id}", controllers.DeleteCoupon(p.Coupons, logg))
				})
			})

			r.Route("/stores", func(r chi.Router) {
				r.Use(admin)
				r.Post("/", controllers.CreateStore(p.Stores, logg))
				r.Get("/", controllers.ListStores(p.Stores, logg))
				r.Delete("/{id}", controllers.DeleteStore(p.Stores, logg))
			})

			r.Route("/subscriptions", func(r chi.Router) {
				r.Post("/", controllers.CreateSubscription(p.Subscriptions, logg))
				r.Get("/", controllers.ListSubscriptions(p.Subscriptions, logg))
				r.Delete("/{id}", controllers.CancelSubscription(p.Subscriptions, logg))
			})

			r.Route("/settings", func(r chi.Router) {
				r.Use(admin)
				r.Get("/", controllers.GetSettings(p.Settings, logg))
				r.Put("/", controllers.UpdateSettings(p.Settings, logg))
			})

			r.With(admin).Get("/admin/summary", controllers.AdminSummary(p.Reports, logg))
		})
	})

	return r
}
