package driverd

import (
	"fmt"
)

// transmitID is the arbitration id the daemon stamps on outbound frames.
const transmitID uint32 = 0x1

// Frame is one CAN frame the way the daemon renders it on the can-data
// topic.
type Frame struct {
	ID   uint32
	Data []byte
}

// NewFrame creates a new Frame and copies the data slice
func NewFrame(id uint32, data []byte) *Frame {
	d := make([]byte, len(data))
	copy(d, data)
	return &Frame{
		ID:   id,
		Data: d,
	}
}

// DLC returns the length of the data
func (f *Frame) DLC() int {
	return len(f.Data)
}

func (f *Frame) String() string {
	return fmt.Sprintf("ID=%03X DATA=%X", f.ID, f.Data)
}
