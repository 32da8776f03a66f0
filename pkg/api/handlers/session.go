package handlers

import (
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/pkg/api/types"
)

// SessionHandler handles the session state and action endpoints
type SessionHandler struct {
	session *canalyst.Session
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(session *canalyst.Session) *SessionHandler {
	return &SessionHandler{session: session}
}

func stateResponse(s canalyst.SessionState) types.StateResponse {
	return types.StateResponse{
		Phase:             s.Phase.String(),
		Identity:          s.Identity,
		SelectedProfile:   s.SelectedProfile,
		LastActionMessage: s.LastActionMessage,
		LastError:         s.LastError,
		LastFrame:         s.LastFrame,
		Timestamp:         time.Now(),
	}
}

func (h *SessionHandler) respondState(c *gin.Context) {
	c.JSON(http.StatusOK, stateResponse(h.session.State()))
}

// State handles GET /session
func (h *SessionHandler) State(c *gin.Context) {
	h.respondState(c)
}

// Open handles POST /session/open
func (h *SessionHandler) Open(c *gin.Context) {
	if err := h.session.Open(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.respondState(c)
}

// Close handles POST /session/close
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.session.Close(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.respondState(c)
}

// Identity handles POST /session/identity
func (h *SessionHandler) Identity(c *gin.Context) {
	if _, err := h.session.ReadIdentity(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.respondState(c)
}

// Reconfigure handles POST /session/reconfigure
func (h *SessionHandler) Reconfigure(c *gin.Context) {
	if err := h.session.Reconfigure(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.respondState(c)
}

// ApplyTiming handles POST /session/timing
func (h *SessionHandler) ApplyTiming(c *gin.Context) {
	if err := h.session.ApplyTiming(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.respondState(c)
}

// StartReceiving handles POST /session/receive/start
func (h *SessionHandler) StartReceiving(c *gin.Context) {
	if err := h.session.StartReceiving(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.respondState(c)
}

// StopReceiving handles POST /session/receive/stop
func (h *SessionHandler) StopReceiving(c *gin.Context) {
	if err := h.session.StopReceiving(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.respondState(c)
}

// Transmit handles POST /session/transmit
func (h *SessionHandler) Transmit(c *gin.Context) {
	var req types.TransmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	payload, err := hex.DecodeString(strings.ReplaceAll(req.Payload, " ", ""))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation_error",
			Message: "payload is not hex: " + err.Error(),
		})
		return
	}

	if err := h.session.Transmit(c.Request.Context(), payload); err != nil {
		writeError(c, err)
		return
	}
	h.respondState(c)
}
