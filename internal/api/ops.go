package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/guildmirror/internal/middleware"
	"github.com/lalith-99/guildmirror/internal/mirror"
	"go.uber.org/zap"
)

// OpsHandler exposes the operational surface: readiness, counters, and a
// manual topology resync. No mirror semantics live here.
type OpsHandler struct {
	coord  *mirror.Coordinator
	logger *zap.Logger
}

func NewOpsHandler(coord *mirror.Coordinator, logger *zap.Logger) *OpsHandler {
	return &OpsHandler{coord: coord, logger: logger}
}

// Status handles GET /v1/status
func (h *OpsHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.Status())
}

// Resync handles POST /v1/resync — re-runs topology sync against the last
// snapshot delivered by the gateway.
func (h *OpsHandler) Resync(c *gin.Context) {
	operator := middleware.GetOperator(c)
	h.logger.Info("manual topology resync requested", zap.String("operator", operator))

	if err := h.coord.Resync(c.Request.Context()); err != nil {
		h.logger.Error("manual resync failed", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "synced"})
}
