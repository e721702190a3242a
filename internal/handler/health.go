package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/josh-kwaku/psp-connector/internal/logging"
)

const readinessCheckTimeout = 3 * time.Second

type pinger interface {
	PingContext(ctx context.Context) error
}

type pspHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]func(context.Context) error
}

func NewHealthHandler(db pinger, psp pspHealthChecker) *HealthHandler {
	return &HealthHandler{checks: map[string]func(context.Context) error{
		"database": db.PingContext,
		"psp":      psp.HealthCheck,
	}}
}

type checkResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness runs every dependency check concurrently. One failing dependency
// marks the whole service down.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]checkResult, len(h.checks))
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, readinessCheckTimeout)
			defer cancel()

			start := time.Now()
			err := check(checkCtx)
			res := checkResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				logger.Warn("readiness check failed", "check", name, "error", err)
				res.Status = "down"
			}

			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status, httpStatus := "ok", http.StatusOK
	for _, res := range results {
		if res.Status != "ok" {
			status, httpStatus = "down", http.StatusServiceUnavailable
			break
		}
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	})
}
