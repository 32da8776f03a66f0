package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/pkg/api/types"
)

// ProfilesHandler handles the baud rate catalog endpoints
type ProfilesHandler struct {
	session *canalyst.Session
}

// NewProfilesHandler creates a new profiles handler
func NewProfilesHandler(session *canalyst.Session) *ProfilesHandler {
	return &ProfilesHandler{session: session}
}

// List handles GET /profiles
func (h *ProfilesHandler) List(c *gin.Context) {
	profiles := h.session.Catalog().Profiles()

	selected := ""
	if p := h.session.State().SelectedProfile; p != nil {
		selected = p.Label
	}

	c.JSON(http.StatusOK, types.ProfilesResponse{
		Profiles: profiles,
		Selected: selected,
		Count:    len(profiles),
	})
}

// Select handles POST /profiles/select
func (h *ProfilesHandler) Select(c *gin.Context) {
	var req types.SelectProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	if err := h.session.SelectBaudRate(req.Label); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stateResponse(h.session.State()))
}
