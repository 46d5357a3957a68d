package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
)

type Server struct {
	config   *config.Config
	router   *gin.Engine
	handlers *handlers.Handlers
	throttle *middleware.Throttle
	http     *http.Server
	logger   *logging.LoggerV2
}

// New builds the router. throttle may be nil when rate limiting is disabled.
func New(h *handlers.Handlers, throttle *middleware.Throttle, cfg *config.Config) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logging.NewLoggerV2("http")
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(logger))

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		throttle: throttle,
		logger:   logger,
	}

	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)
	s.router.GET("/ready", s.handlers.Ready)
	s.router.GET("/live", s.handlers.Live)
	s.router.GET("/version", s.handlers.Version)
	s.router.GET("/metrics", s.handlers.Metrics)

	throttled := func(route string) gin.HandlerFunc {
		return middleware.ThrottleMiddleware(s.throttle, s.config.RateLimit.Enabled, route)
	}

	v1 := s.router.Group("/api/v1")
	{
		catalog := v1.Group("/catalog")
		catalog.GET("/categories", s.handlers.ListCategories)
		catalog.GET("/categories/:id/subcategories", s.handlers.ListSubcategories)
		catalog.GET("/products", s.handlers.ListProducts)
		catalog.GET("/products/:id", s.handlers.GetProduct)

		v1.GET("/currency", s.handlers.GetCurrency)

		// Signed by the processor, not by a customer token.
		v1.POST("/payments/webhook", s.handlers.PaymentWebhook)

		authed := v1.Group("", middleware.Authenticate([]byte(s.config.Auth.JWTSecret)))
		authed.POST("/orders", throttled("submit_order"), s.handlers.SubmitOrder)
		authed.GET("/orders/mine", s.handlers.ListMyOrders)
		authed.POST("/payments/intent", throttled("create_payment_intent"), s.handlers.CreatePaymentIntent)
		authed.GET("/payments/intent/:id", s.handlers.GetPaymentIntent)

		admin := authed.Group("", middleware.RequireAdmin())
		admin.GET("/orders", s.handlers.ListOrders)
		admin.GET("/orders/:id", s.handlers.GetOrder)
		admin.PUT("/orders/:id", s.handlers.UpdateOrderStatus)
		admin.DELETE("/orders/:id", s.handlers.DeleteOrder)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting server", logging.Fields{"addr": s.http.Addr})
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
