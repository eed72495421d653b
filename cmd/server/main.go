package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ordersplit/backend/internal/application/ordersplit"
	"github.com/ordersplit/backend/internal/domain/fulfillment"
	"github.com/ordersplit/backend/internal/infrastructure/config"
	"github.com/ordersplit/backend/internal/infrastructure/logger"
	"github.com/ordersplit/backend/internal/infrastructure/shipstation"
	"github.com/ordersplit/backend/internal/infrastructure/telemetry"
	"github.com/ordersplit/backend/internal/interfaces/http/handler"
	"github.com/ordersplit/backend/internal/interfaces/http/middleware"
	"github.com/ordersplit/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version string

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if version != "" {
		cfg.App.Version = version
	}

	baseLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry: traces, metrics, log bridge, profiles
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize log export", zap.Error(err))
	}

	log := telemetry.NewBridgedLogger(baseLog, loggerProvider, cfg.Telemetry.ServiceName,
		logger.ParseLevel(cfg.Telemetry.LogsLevel))
	defer func() {
		_ = log.Sync()
	}()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileCPU:        true,
		ProfileAlloc:      true,
		ProfileInuse:      true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}

	log.Info("Starting order splitter",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
	)

	meter := meterProvider.Meter(telemetry.TracerName)
	splitMetrics, err := telemetry.NewSplitMetrics(meter)
	if err != nil {
		log.Warn("Split metrics unavailable", zap.Error(err))
	}
	var httpMetrics *telemetry.HTTPMetrics
	if meterProvider.IsEnabled() {
		if httpMetrics, err = telemetry.NewHTTPMetrics(meterProvider.Meter("http.server")); err != nil {
			log.Warn("HTTP metrics unavailable", zap.Error(err))
		}
	}

	// The gateway stays a nil interface without credentials so the service
	// reports itself as unconfigured instead of failing every call upstream.
	var gateway fulfillment.Gateway
	if cfg.ShipStation.HasCredentials() {
		client, err := shipstation.NewClient(&shipstation.Config{
			BaseURL:            cfg.ShipStation.BaseURL,
			APIKey:             cfg.ShipStation.APIKey,
			APISecret:          cfg.ShipStation.APISecret,
			AuthToken:          cfg.ShipStation.AuthToken,
			Timeout:            cfg.ShipStation.Timeout,
			RateLimitPerMinute: cfg.ShipStation.RateLimitPerMinute,
			RateLimitBurst:     cfg.ShipStation.RateLimitBurst,
			AllowedHosts:       cfg.ShipStation.AllowedHosts,
		})
		if err != nil {
			log.Fatal("Failed to create ShipStation client", zap.Error(err))
		}
		gateway = client
	} else {
		log.Warn("ShipStation credentials missing, webhooks will be rejected")
	}

	service := ordersplit.NewService(gateway, ordersplit.Config{
		MaxConcurrency: cfg.Splitter.MaxConcurrency,
		AsyncSubmit:    cfg.Splitter.AsyncSubmit,
	},
		ordersplit.WithLogger(log.Named("ordersplit")),
		ordersplit.WithMetrics(splitMetrics),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	}

	engine := router.NewEngine(router.EngineOptions{
		Logger:         log,
		ServiceName:    cfg.Telemetry.ServiceName,
		Tracing:        tracerProvider.IsEnabled(),
		Profiling:      profiler.IsEnabled(),
		HTTPMetrics:    httpMetrics,
		CORSOrigins:    cfg.HTTP.CORSAllowOrigins,
		HSTS:           cfg.IsProduction(),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RateLimiter:    rateLimiter,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		OrderSplit: handler.NewOrderSplitHandler(service),
		System: handler.NewSystemHandler(service, handler.SystemInfo{
			Name:        cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Env,
		}),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Stop intake first, then drain background submissions, then flush telemetry.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := service.Shutdown(shutdownCtx); err != nil {
		log.Error("Split submissions abandoned at shutdown",
			zap.Int64("in_flight", service.InFlight()), zap.Error(err))
	}
	shutdownTelemetry(log, profiler, tracerProvider, meterProvider, loggerProvider)

	log.Info("Server exited gracefully")
}

// shutdownTelemetry flushes exporters with their own deadline so a slow
// drain above does not cost the final spans.
func shutdownTelemetry(log *zap.Logger, profiler *telemetry.Profiler, tp *telemetry.TracerProvider,
	mp *telemetry.MeterProvider, lp *telemetry.LoggerProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracing", zap.Error(err))
	}
	if err := mp.Shutdown(ctx); err != nil {
		log.Error("Error shutting down metrics", zap.Error(err))
	}
	if err := lp.Shutdown(ctx); err != nil {
		log.Error("Error shutting down log export", zap.Error(err))
	}
}
