package handlers

import (
	"context"
	"net/http"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"ticketing/internal/services"
	"ticketing/utils"
)

// Pinger reports whether a backing service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type AdminHandler struct {
	dashboard *services.DashboardService
	db        Pinger
	redis     redis.Cmdable
}

// NewAdminHandler accepts a nil redisClient when the deployment runs without redis.
func NewAdminHandler(dashboard *services.DashboardService, db Pinger, redisClient redis.Cmdable) *AdminHandler {
	return &AdminHandler{dashboard: dashboard, db: db, redis: redisClient}
}

// Dashboard returns system wide counts for administrators.
func (h *AdminHandler) Dashboard(e *core.RequestEvent) error {
	summary, err := h.dashboard.Summary(e.Request.Context(), actor(e))
	if err != nil {
		return fail(e, err, "")
	}
	return respond(e, http.StatusOK, summary, "")
}

func (h *AdminHandler) Health(e *core.RequestEvent) error {
	ctx := e.Request.Context()
	checks := map[string]string{"database": "up"}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if h.redis != nil {
		checks["redis"] = "up"
		if err := utils.RedisHealthCheck(ctx, h.redis); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	if !healthy {
		return e.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "checks": checks})
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "healthy", "checks": checks})
}
