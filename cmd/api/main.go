package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/josh-kwaku/psp-connector/api"
	"github.com/josh-kwaku/psp-connector/internal/config"
	"github.com/josh-kwaku/psp-connector/internal/handler"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/metrics"
	"github.com/josh-kwaku/psp-connector/internal/middleware"
	"github.com/josh-kwaku/psp-connector/internal/psp"
	"github.com/josh-kwaku/psp-connector/internal/repository"
	"github.com/josh-kwaku/psp-connector/internal/service"
	"github.com/josh-kwaku/psp-connector/internal/service/payment"
	"github.com/josh-kwaku/psp-connector/internal/telemetry"
)

const (
	serviceName             = "psp-connector"
	idempotencyCleanupEvery = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	db, err := repository.OpenPostgres(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeS) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second,
	}, repository.ConnectOptions{Attempts: 30, Backoff: time.Second})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	baseURL := cfg.PSPBaseURL
	if baseURL == "" {
		if baseURL, err = psp.BaseURLFor(psp.Environment(cfg.PSPEnvironment)); err != nil {
			slog.Error("failed to resolve psp base url", "error", err)
			os.Exit(1)
		}
	}

	m := metrics.New()
	pspClient := psp.NewClient(psp.Config{
		BaseURL:              baseURL,
		ClientID:             cfg.PSPClientID,
		ClientSecret:         cfg.PSPClientSecret,
		PartnerAttributionID: cfg.PSPPartnerAttributionID,
		Timeout:              cfg.PSPTimeout(),
	}, psp.WithMetrics(m))

	cartRepo := repository.NewCartRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	paymentSvc := payment.NewService(cartRepo, paymentRepo, pspClient, m, payment.Settings{
		ClientID:    cfg.PSPClientID,
		Environment: psp.Environment(cfg.PSPEnvironment),
	})

	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	operationsHandler := handler.NewOperationsHandler(paymentSvc)
	sessionHandler := handler.NewSessionHandler(cartRepo, cfg.SessionJWTSecret, cfg.SessionTTL())
	webhookHandler := handler.NewWebhookHandler(webhookRepo, pspClient, cfg.PSPWebhookID)
	healthHandler := handler.NewHealthHandler(db, pspClient)

	session := chain(middleware.Session(cfg.SessionJWTSecret), middleware.Idempotency(idempotencyRepo))
	operator := middleware.Operator(cfg.OperationsAPIKeyHash)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /docs", handler.ServeDocs("PSP Connector API", "/docs/openapi.yaml"))
	mux.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(api.Spec))

	mux.Handle("POST /payments", session(http.HandlerFunc(paymentHandler.Create)))
	mux.Handle("POST /payments/confirm", session(http.HandlerFunc(paymentHandler.Confirm)))

	mux.Handle("GET /operations/config", operator(http.HandlerFunc(operationsHandler.Config)))
	mux.Handle("GET /operations/payment-components", operator(http.HandlerFunc(operationsHandler.Components)))
	mux.Handle("GET /operations/payments/{id}", operator(http.HandlerFunc(operationsHandler.GetPayment)))
	mux.Handle("POST /operations/payments/{id}", operator(http.HandlerFunc(operationsHandler.ModifyPayment)))
	mux.Handle("POST /operations/carts", operator(http.HandlerFunc(sessionHandler.CreateCart)))
	mux.Handle("POST /operations/sessions", operator(http.HandlerFunc(sessionHandler.CreateSession)))

	mux.HandleFunc("POST /webhooks/psp", webhookHandler.ReceivePSPWebhook)

	var root http.Handler = mux
	root = middleware.Logging(root)
	root = middleware.Recovery(root)
	root = middleware.RequestID(root)
	root = otelhttp.NewHandler(root, serviceName)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup

	processor := service.NewWebhookProcessor(webhookRepo, paymentSvc, m, logger, cfg.WebhookPollInterval())
	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanIdempotencyKeys(ctx, idempotencyRepo)
	}()

	go func() {
		slog.Info("server started", "addr", addr, "psp_environment", cfg.PSPEnvironment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	wg.Wait()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to flush traces", "error", err)
	}
	slog.Info("server stopped")
}

func chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}

type expiredKeyCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

func cleanIdempotencyKeys(ctx context.Context, repo expiredKeyCleaner) {
	ticker := time.NewTicker(idempotencyCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				slog.Error("idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired idempotency keys removed", "count", n)
			}
		}
	}
}
