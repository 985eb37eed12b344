// Package main runs the QuanticPro backend: the HTTP API, the Supabase
// document store client and the bill reminder worker.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/quanticpro/backend/internal/config"
	"github.com/quanticpro/backend/internal/httputil"
	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/internal/metrics"
	"github.com/quanticpro/backend/internal/middleware"
	"github.com/quanticpro/backend/services/billing"
	"github.com/quanticpro/backend/services/bills"
	"github.com/quanticpro/backend/services/experience"
	"github.com/quanticpro/backend/services/menus"
	"github.com/quanticpro/backend/services/notify"
	"github.com/quanticpro/backend/services/products"
	"github.com/quanticpro/backend/services/transactions"
	"github.com/quanticpro/backend/services/users"
	"github.com/quanticpro/backend/supabase/client"
)

const serviceName = "quanticpro-backend"

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	// .env is optional; deployment injects real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New(os.Stderr, "error").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level)
	logger.WithFields(map[string]interface{}{
		"addr":    cfg.Server.Addr,
		"version": version,
	}).Info("starting server")

	supa, err := client.NewEnhanced(client.EnhancedConfig{
		Config: client.Config{
			URL:    cfg.Supabase.URL,
			APIKey: cfg.Supabase.ServiceKey,
		},
		RetryConfig:          client.DefaultRetryConfig(),
		CircuitBreakerConfig: client.DefaultCircuitBreakerConfig(),
		EnableResilience:     cfg.Supabase.Resilience,
	})
	if err != nil {
		logger.WithError(err).Error("create supabase client")
		os.Exit(1)
	}

	m := metrics.New("quanticpro")

	store := users.NewSupabaseStore(supa)
	notifier := notify.Multi{
		notify.NewSupabaseNotifier(supa, logger, m),
		notify.NewLogNotifier(logger),
	}

	realtime := client.NewRealtimeClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)

	userSvc := users.NewService(store, realtime, logger)
	xpSvc := experience.NewService(store, notifier, m, logger)
	txSvc := transactions.NewService(store, xpSvc, logger)
	billSvc := bills.NewService(store, notifier, logger)
	productSvc := products.NewService(store, xpSvc, logger)
	menuSvc := menus.NewService(
		store,
		menus.NewSupabasePublishedStore(supa),
		supa.Storage().From("menu-logos"),
		logger,
	)
	billingSvc := billing.NewService(store, billing.NewStripeGateway(cfg.Stripe.SecretKey), notifier, billing.Config{
		WebhookSecret: cfg.Stripe.WebhookSecret,
		PriceID:       cfg.Stripe.PriceID,
		AppBaseURL:    cfg.Stripe.AppBaseURL,
	}, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", handleHealth(supa)).Methods("GET")
	router.HandleFunc("/info", handleInfo).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")

	userSvc.RegisterRoutes(router)
	xpSvc.RegisterRoutes(router)
	txSvc.RegisterRoutes(router)
	billSvc.RegisterRoutes(router)
	productSvc.RegisterRoutes(router)
	menuSvc.RegisterRoutes(router)
	billingSvc.RegisterRoutes(router)

	auth := middleware.NewAuthMiddleware([]byte(cfg.Supabase.JWTSecret), logger, []string{
		"/health",
		"/info",
		"/metrics",
		"/api/billing/webhook",
	})
	cors := middleware.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)

	router.Use(middleware.MetricsMiddleware(serviceName, m))

	// Auth runs before the rate limiter so authenticated requests are
	// keyed by user ID rather than by address.
	var handler http.Handler = router
	handler = limiter.Handler(handler)
	handler = auth.Handler(handler)
	handler = middleware.LoggingMiddleware(logger)(handler)
	handler = cors.Handler(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go billSvc.RunReminderWorker(ctx, cfg.Bills.ReminderInterval)

	go func() {
		if err := realtime.Connect(ctx); err != nil {
			logger.WithError(err).Warn("realtime connection unavailable")
		}
	}()

	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server stopped")
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("forced shutdown")
	}
	_ = realtime.Disconnect()
}

func handleHealth(supa *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		httpStatus := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := supa.Health(ctx); err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}

		httputil.WriteJSON(w, httpStatus, map[string]string{
			"status":    status,
			"service":   serviceName,
			"version":   version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"service": serviceName,
		"version": version,
	})
}
