package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/pkg/api/types"
)

// writeError maps a session error onto an HTTP status. Lifecycle violations
// are conflicts, catalog misses are not found, local validation is a bad
// request and everything else came back from the driver.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, canalyst.ErrDeviceNotOpen),
		errors.Is(err, canalyst.ErrAlreadyReceiving),
		errors.Is(err, canalyst.ErrNotReceiving),
		errors.Is(err, canalyst.ErrNoProfileSelected):
		c.JSON(http.StatusConflict, types.ErrorResponse{
			Error:   "session_state",
			Message: err.Error(),
		})
	case errors.Is(err, canalyst.ErrUnknownProfile):
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "unknown_profile",
			Message: err.Error(),
		})
	case errors.Is(err, canalyst.ErrEmptyPayload):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusBadGateway, types.ErrorResponse{
			Error:   "driver_error",
			Message: err.Error(),
		})
	}
}
