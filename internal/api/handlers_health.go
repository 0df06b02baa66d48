// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		started: time.Now(),
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
	})
}
