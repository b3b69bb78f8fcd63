package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/crypto/bcrypt"

	echoapi "github.com/glowmart/storefront-bff/api/echo"
	"github.com/glowmart/storefront-bff/cache"
	"github.com/glowmart/storefront-bff/config"
	"github.com/glowmart/storefront-bff/internal/auth"
	"github.com/glowmart/storefront-bff/internal/federation"
	"github.com/glowmart/storefront-bff/internal/metrics"
	"github.com/glowmart/storefront-bff/internal/shopify"
	"github.com/glowmart/storefront-bff/internal/vault"
	"github.com/glowmart/storefront-bff/log"
	"github.com/glowmart/storefront-bff/mongodb"
	"github.com/glowmart/storefront-bff/services"
	"github.com/glowmart/storefront-bff/tracing"

	redislock "github.com/glowmart/storefront-bff/cache/redis"
)

var (
	appLogger      log.Logger
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting storefront-bff server...", map[string]any{
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"log_level":     cfg.LogLevel,
		"otel_service":  cfg.OtelServiceName,
		"shop":          cfg.ShopifyShopName,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	if err := mongodb.Init(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", err, nil)
	}
	defer mongodb.Close(ctx)

	userRepo, err := mongodb.NewUserRepository(ctx, mongodb.DB())
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize UserRepository", err, nil)
	}

	credentialVault, err := vault.New(cfg.JWTSecret)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize credential vault", err, nil)
	}

	shopifyClient, err := shopify.NewClient(
		cfg.ShopifyShopName,
		cfg.ShopifyAPIVersion,
		cfg.ShopifyStorefrontToken,
		cfg.ShopifyAdminToken,
	)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize Shopify client", err, nil)
	}

	tokenCache := cache.NewTokenCache()
	defer tokenCache.Close()

	tokenOpts := []services.TokenServiceOption{
		services.WithExpiryBuffer(cfg.TokenExpiryBuffer),
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", pingErr, nil)
		}
		defer redisClient.Close()
		tokenOpts = append(tokenOpts,
			services.WithRenewalLocker(redislock.NewRenewalLock(redisClient, cfg.OtelServiceName, 30*time.Second)))
		appLogger.Info(ctx, "Distributed renewal lock enabled", map[string]any{"redis_addr": cfg.RedisAddr})
	}

	tokenService := services.NewTokenService(userRepo, shopifyClient, credentialVault, tokenCache, appLogger, tokenOpts...)

	sessionService, err := services.NewSessionService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize session service", err, nil)
	}

	passwordHasher := auth.NewBcryptPasswordHasher(bcrypt.DefaultCost)
	authService := services.NewAuthService(
		userRepo, shopifyClient, credentialVault, passwordHasher,
		sessionService, cfg.ShopifyCustomerPassword, appLogger)

	fedService := federation.NewService(cfg.CallbackBaseURL)
	if cfg.GoogleClientID != "" {
		fedService.RegisterProvider(federation.NewGoogleProvider(federation.ProviderConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
		}))
	}
	if cfg.AppleClientID != "" {
		fedService.RegisterProvider(federation.NewAppleProvider(federation.ProviderConfig{
			ClientID:     cfg.AppleClientID,
			ClientSecret: cfg.AppleClientSecret,
		}))
	}
	if cfg.KakaoClientID != "" {
		fedService.RegisterProvider(federation.NewKakaoProvider(federation.ProviderConfig{
			ClientID:     cfg.KakaoClientID,
			ClientSecret: cfg.KakaoClientSecret,
		}))
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	// Re-bind the counters to the default registry so promhttp serves them.
	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	echoapi.NewAPI(authService, tokenService, sessionService, fedService, userRepo, appLogger).RegisterRoutes(e)

	go func() {
		if serveErr := e.Start(":" + cfg.HTTPPort); serveErr != nil && serveErr != http.ErrServerClosed {
			appLogger.Fatal(ctx, "HTTP server failed", serveErr, nil)
		}
	}()
	appLogger.Info(ctx, "HTTP server listening", map[string]any{"port": cfg.HTTPPort})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info(ctx, "Shutting down...", nil)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown failed", err, nil)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown failed", err, nil)
	}
	appLogger.Info(ctx, "Server stopped.", nil)
}
