package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"postboard/internal/delivery/api/response"
	deliverycontext "postboard/internal/delivery/context"
	"postboard/internal/domain/lifecycle"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const readinessTimeout = 2 * time.Second

// HealthHandlerParams holds dependencies for HealthHandler, injected by Fx.
type HealthHandlerParams struct {
	fx.In

	Probes []lifecycle.ReadinessProbe `group:"readiness"`
	Logger *slog.Logger
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	probes []lifecycle.ReadinessProbe
	logger *slog.Logger
}

// NewHealthHandler is the constructor for HealthHandler
func NewHealthHandler(params HealthHandlerParams) *HealthHandler {
	return &HealthHandler{probes: params.Probes, logger: params.Logger}
}

// Live reports that the process is up.
func (h *HealthHandler) Live(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready pings every backing store and reports 503 if any of them fails.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.probes))
	for _, probe := range h.probes {
		if err := probe.Ping(ctx); err != nil {
			deliverycontext.GetLoggerOrDefault(ctx, h.logger).
				Warn("Readiness probe failed", slog.String("probe", probe.Name()), slog.Any("error", err))
			checks[probe.Name()] = "unavailable"
			status = http.StatusServiceUnavailable

			continue
		}
		checks[probe.Name()] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}

	return response.Success(c, status, map[string]any{"status": overall, "checks": checks})
}
