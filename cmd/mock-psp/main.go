package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/middleware"
	"github.com/josh-kwaku/psp-connector/internal/psp/psptest"
)

type mockConfig struct {
	Port         int    `env:"PORT" envDefault:"8081"`
	AppEnv       string `env:"APP_ENV" envDefault:"development"`
	ClientID     string `env:"PSP_CLIENT_ID" envDefault:"mock-client"`
	ClientSecret string `env:"PSP_CLIENT_SECRET" envDefault:"mock-secret"`
	// WebhookURL is the connector's webhook endpoint, notified after every
	// capture and refund.
	WebhookURL string `env:"MOCK_PSP_WEBHOOK_URL"`
}

func main() {
	cfg, err := env.ParseAs[mockConfig]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("mock-psp", "info", cfg.AppEnv)

	fake := psptest.New(cfg.ClientID, cfg.ClientSecret)
	fake.WebhookURL = cfg.WebhookURL

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/", fake.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.RequestID(middleware.Logging(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("mock psp started", "addr", addr, "webhook_url", cfg.WebhookURL)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
