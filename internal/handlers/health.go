package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"qrwallet/internal/repositories/cache"
	"qrwallet/internal/utils"
)

// HealthHandler reports process liveness and the state of the two
// backing stores.
type HealthHandler struct {
	db    *gorm.DB
	cache *cache.CacheService
}

func NewHealthHandler(db *gorm.DB, cache *cache.CacheService) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Check handles GET /health. Degraded dependencies surface in the
// body but the endpoint itself answers 200 as long as the process is
// serving.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error"
	}

	redisStatus := "ok"
	if h.cache == nil {
		redisStatus = "disabled"
	} else if err := h.cache.HealthCheck(c.Context()); err != nil {
		redisStatus = "error"
	}

	return utils.Success(c, fiber.Map{
		"status": "up",
		"db":     dbStatus,
		"redis":  redisStatus,
	})
}
