package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KretovDmitry/bistro/internal/auth"
	"github.com/KretovDmitry/bistro/internal/cart"
	"github.com/KretovDmitry/bistro/internal/config"
	"github.com/KretovDmitry/bistro/internal/infrastructure/db/postgres"
	"github.com/KretovDmitry/bistro/internal/menu"
	"github.com/KretovDmitry/bistro/internal/metrics"
	"github.com/KretovDmitry/bistro/internal/ordering"
	"github.com/KretovDmitry/bistro/pkg/accesslog"
	"github.com/KretovDmitry/bistro/pkg/limiter"
	"github.com/KretovDmitry/bistro/pkg/logger"
	"github.com/KretovDmitry/bistro/pkg/unzip"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nanmu42/gzip"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Server run context.
	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	// Load application configurations.
	cfg := config.MustLoad()

	// Create root logger tagged with server version.
	logger := logger.New(cfg).With(serverCtx, "version", Version)

	db, err := postgres.Connect(cfg, logger)
	if err != nil {
		return err
	}

	// Close connection.
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(err)
		}
		_ = logger.Sync()
	}()

	// Create default transaction manager for database/sql package.
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	metrics.Init()

	// Init auth service.
	authRepo, err := auth.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init auth repository: %w", err)
	}
	authService, err := auth.NewService(authRepo, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to init auth service: %w", err)
	}

	// Init menu service.
	menuRepo, err := menu.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init menu repository: %w", err)
	}
	menuService, err := menu.NewService(menuRepo, logger)
	if err != nil {
		return fmt.Errorf("failed to init menu service: %w", err)
	}

	// Init order service. Configured totals are consulted before the overrides table.
	orderRepo, err := ordering.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init order repository: %w", err)
	}
	configured, err := cfg.Orders.Overrides()
	if err != nil {
		return fmt.Errorf("failed to parse total overrides: %w", err)
	}
	resolver, err := ordering.NewResolver(
		ordering.ChainOverrides{ordering.MapOverrides(configured), orderRepo},
		orderRepo,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to init total resolver: %w", err)
	}
	orderService, err := ordering.NewService(orderRepo, resolver, menuRepo, trManager, logger)
	if err != nil {
		return fmt.Errorf("failed to init order service: %w", err)
	}
	orderController, err := ordering.NewController(orderService, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init order controller: %w", err)
	}

	// Init cart service.
	cartRepo, err := cart.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init cart repository: %w", err)
	}
	cartService, err := cart.NewService(cartRepo, menuRepo, orderService, trManager, logger)
	if err != nil {
		return fmt.Errorf("failed to init cart service: %w", err)
	}
	cartController, err := cart.NewController(cartService, logger)
	if err != nil {
		return fmt.Errorf("failed to init cart controller: %w", err)
	}

	// Brute force protection for register and login.
	rateLimiter := limiter.NewClientRateLimiter(cfg.RateLimit.Interval, cfg.RateLimit.Burst)

	// Create root router.
	router := initRootRouter(logger)

	router.Handle("/metrics", promhttp.Handler())

	// Init handlers for auth routes.
	auth.HandlerWithOptions(authService, auth.ChiServerOptions{
		BaseURL:          "/api/user",
		BaseRouter:       router,
		ErrorHandlerFunc: authService.ErrorHandlerFunc,
		Middlewares:      []auth.MiddlewareFunc{rateLimiter.Middleware},
		Authenticator:    authService.Middleware,
	})

	// Reading the menu is public, changing it is not.
	router.Route("/api/menu", func(r chi.Router) {
		menu.HandlerWithOptions(menuService, menu.ChiServerOptions{
			BaseRouter:       r,
			ErrorHandlerFunc: menuService.ErrorHandlerFunc,
			Authenticator:    authService.Middleware,
		})
	})

	auth.AdminHandlerWithOptions(authService, auth.AdminChiServerOptions{
		BaseURL:          "/api/admin",
		BaseRouter:       router,
		ErrorHandlerFunc: authService.ErrorHandlerFunc,
		Middlewares:      []auth.MiddlewareFunc{authService.Middleware, authService.AdminOnly},
	})

	router.Route("/api/orders", func(r chi.Router) {
		r.Use(authService.Middleware)
		ordering.HandlerWithOptions(orderController, ordering.ChiServerOptions{
			BaseRouter:       r,
			ErrorHandlerFunc: orderController.ErrorHandlerFunc,
		})
	})

	router.Route("/api/cart", func(r chi.Router) {
		r.Use(authService.Middleware)
		cart.HandlerWithOptions(cartController, cart.ChiServerOptions{
			BaseRouter:       r,
			ErrorHandlerFunc: cartController.ErrorHandlerFunc,
		})
	})

	// Build HTTP server.
	hs := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
		Handler:           router,
	}

	// Graceful shutdown.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT,
			syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)

		signal := <-sig

		logger.With(serverCtx, "signal", signal.String()).
			Infof("Shutting down server with %s timeout",
				cfg.HTTPServer.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(serverCtx, cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("graceful shutdown failed: %s", err)
		}
		serverStopCtx()
	}()

	// Start the HTTP server with graceful shutdown.
	logger.Infof("Server %v is running at %v", Version, cfg.HTTPServer.Address)
	if err = hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("run server failed: %w", err)
	}

	// Wait for server context to be stopped or force exit if timeout exceeded.
	select {
	case <-serverCtx.Done():
	case <-time.After(cfg.HTTPServer.ShutdownTimeout):
		return errors.New("graceful shutdown timed out.. forcing exit")
	}

	return nil
}

func initRootRouter(logger logger.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(accesslog.Handler(logger))
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)
	router.Use(gzip.DefaultHandler().WrapHandler)
	router.Use(unzip.Middleware(logger))

	return router
}
