package canalyst

import (
	"context"
	"encoding/json"
)

// Driver daemon command names.
const (
	CmdOpenDevice     = "open_can_device"
	CmdStopDevice     = "stop_can_device"
	CmdReadBoardInfo  = "read_board_info"
	CmdSetBaudRate    = "set_baud_rate"
	CmdReconnect      = "reconnect_can_device"
	CmdStartReceiving = "start_receiving_data"
	CmdStopReceiving  = "stop_receiving_data"
	CmdTransmit       = "transmit_can_data"
)

// Gateway is the request/response bridge to the driver daemon. Call issues
// one named command and blocks until the driver answers or the transport
// fails. A failure is opaque text from the driver or the transport, the
// gateway never interprets it.
type Gateway interface {
	Call(ctx context.Context, command string, args any) (json.RawMessage, error)
}

// DeviceArgs addresses a board for open_can_device, stop_can_device and
// read_board_info.
type DeviceArgs struct {
	DeviceType  uint32 `json:"dev_type"`
	DeviceIndex uint32 `json:"dev_index"`
}

// TimingArgs programs the timing registers of a single channel, set_baud_rate.
type TimingArgs struct {
	DeviceType  uint32 `json:"dev_type"`
	DeviceIndex uint32 `json:"dev_index"`
	Channel     uint32 `json:"can_channel"`
	Timing0     uint8  `json:"timing0"`
	Timing1     uint8  `json:"timing1"`
}

// ReconnectArgs tears the board down and brings both channels back up with
// new timing registers, reconnect_can_device.
type ReconnectArgs struct {
	DeviceType  uint32    `json:"dev_type"`
	DeviceIndex uint32    `json:"dev_index"`
	Channels    [2]uint32 `json:"channels"`
	Timing0     uint8     `json:"timing0"`
	Timing1     uint8     `json:"timing1"`
}

// ReceiveArgs selects the channel for start_receiving_data.
type ReceiveArgs struct {
	DeviceType  uint32 `json:"dev_type"`
	DeviceIndex uint32 `json:"dev_index"`
	Channel     uint32 `json:"can_channel"`
}

// TransmitArgs carries an outbound payload, transmit_can_data.
type TransmitArgs struct {
	DeviceType  uint32 `json:"dev_type"`
	DeviceIndex uint32 `json:"dev_index"`
	Channel     uint32 `json:"can_channel"`
	Payload     []byte `json:"payload"`
}
