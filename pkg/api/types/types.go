package types

import (
	"time"

	"github.com/y60yu1ii/canalyst"
)

// --- Request DTOs ---

// SelectProfileRequest is the request body for POST /profiles/select
type SelectProfileRequest struct {
	Label string `json:"label" binding:"required"`
}

// TransmitRequest is the request body for POST /session/transmit. Payload is
// hex text, spaces allowed: "AA BB" and "AABB" both send two bytes.
type TransmitRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Driver    string    `json:"driver"`
	Timestamp time.Time `json:"timestamp"`
}

// StateResponse is the session snapshot every state and action endpoint
// returns.
type StateResponse struct {
	Phase             string                    `json:"phase"`
	Identity          *canalyst.DeviceIdentity  `json:"identity,omitempty"`
	SelectedProfile   *canalyst.BaudRateProfile `json:"selected_profile,omitempty"`
	LastActionMessage string                    `json:"last_action_message,omitempty"`
	LastError         string                    `json:"last_error,omitempty"`
	LastFrame         string                    `json:"last_frame,omitempty"`
	Timestamp         time.Time                 `json:"timestamp"`
}

// ProfilesResponse is returned from GET /profiles
type ProfilesResponse struct {
	Profiles []canalyst.BaudRateProfile `json:"profiles"`
	Selected string                     `json:"selected,omitempty"`
	Count    int                        `json:"count"`
}
