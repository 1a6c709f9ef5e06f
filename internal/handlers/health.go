package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hospital-followup-server/internal/store"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	DB store.Pinger
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(db store.Pinger) *HealthHandler {
	return &HealthHandler{DB: db}
}

// Health answers GET /api/health.
func (h *HealthHandler) Health(c *gin.Context) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("database ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "ERROR",
				"message":  "Database unreachable",
				"database": "unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "OK",
		"message":  "Server is running",
		"database": "ok",
	})
}
