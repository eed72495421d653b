package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ordersplit/backend/internal/infrastructure/logger"
	"github.com/ordersplit/backend/internal/infrastructure/telemetry"
	"github.com/ordersplit/backend/internal/interfaces/http/handler"
	"github.com/ordersplit/backend/internal/interfaces/http/middleware"
)

// Paths served outside the versioned API
const (
	HealthPath = "/health"
)

// EngineOptions configures the middleware stack
type EngineOptions struct {
	Logger         *zap.Logger
	ServiceName    string
	Tracing        bool
	Profiling      bool
	HTTPMetrics    *telemetry.HTTPMetrics
	CORSOrigins    []string
	HSTS           bool
	MaxBodySize    int64
	RateLimiter    *middleware.RateLimiter // nil disables rate limiting
	TrustedProxies []string
}

// Handlers are the endpoint implementations mounted by NewEngine
type Handlers struct {
	OrderSplit *handler.OrderSplitHandler
	System     *handler.SystemHandler
}

// NewEngine builds the gin engine with the full middleware stack and routes.
//
// Middleware order: request ID, recovery, tracing, span enrichment, request
// log, metrics, profiling labels, security headers, CORS, body limit, rate limit.
func NewEngine(opts EngineOptions, h Handlers) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(opts.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: opts.ServiceName,
		Enabled:     opts.Tracing,
		SkipPaths:   []string{HealthPath},
	}))
	engine.Use(middleware.SpanEnricher())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.HTTPMetrics(opts.HTTPMetrics))
	engine.Use(middleware.Profiling(opts.Profiling, HealthPath))
	engine.Use(middleware.Secure(middleware.SecurityConfig{HSTSEnabled: opts.HSTS, HSTSMaxAge: 31536000}))

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = opts.CORSOrigins
	engine.Use(middleware.CORSWithConfig(cors))

	if opts.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(opts.MaxBodySize))
	}
	if opts.RateLimiter != nil {
		engine.Use(middleware.RateLimit(opts.RateLimiter))
	}

	engine.GET(HealthPath, h.System.Health)

	webhooks := NewRouteGroup("/webhooks").
		POST("/shipstation/orders", h.OrderSplit.HandleOrderNotify)
	orders := NewRouteGroup("/orders").
		POST("/split/preview", h.OrderSplit.PreviewSplit)
	system := NewRouteGroup("/system").
		GET("/info", h.System.Info).
		GET("/ping", h.System.Ping)

	NewRouter(engine, DefaultAPIVersion).
		Register(webhooks, orders, system).
		Setup()

	return engine
}
