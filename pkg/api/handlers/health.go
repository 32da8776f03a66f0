package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/y60yu1ii/canalyst/pkg/api/types"
)

// Driver is the health endpoint's view of the driver transport. The gateway
// client satisfies it.
type Driver interface {
	Done() <-chan struct{}
	Err() error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	driver Driver
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(driver Driver) *HealthHandler {
	return &HealthHandler{driver: driver}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	driverStatus := "connected"
	if h.driver != nil {
		select {
		case <-h.driver.Done():
			driverStatus = "disconnected"
			if err := h.driver.Err(); err != nil {
				driverStatus = err.Error()
			}
		default:
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if driverStatus != "connected" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, types.HealthResponse{
		Status:    status,
		Driver:    driverStatus,
		Timestamp: time.Now(),
	})
}
