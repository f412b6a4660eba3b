package handlers

import (
	"time"

	"relaychat/server/internal/config"
	"relaychat/server/internal/database"
	"relaychat/server/internal/presence"
	"relaychat/server/internal/workers"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler reports the auth gateway and messaging broker's live
// status: database connectivity, the connection pool's occupancy, and how
// many users the Presence Registry currently has online.
type HealthHandler struct {
	config   *config.Config
	db       *database.DB
	pool     *workers.ConnectionPool
	registry *presence.Registry
}

func NewHealthHandler(cfg *config.Config, db *database.DB, pool *workers.ConnectionPool, registry *presence.Registry) *HealthHandler {
	return &HealthHandler{config: cfg, db: db, pool: pool, registry: registry}
}

func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	dbStatus := "healthy"
	if err := h.db.PingContext(c.Context()); err != nil {
		dbStatus = "unhealthy"
	}

	return c.JSON(fiber.Map{
		"status":          "ok",
		"message":         "relaychat server is running",
		"timestamp":       time.Now(),
		"environment":     h.config.Server.Environment,
		"database":        dbStatus,
		"connection_pool": h.pool.Stats(),
		"online_users":    h.registry.Count(),
	})
}
