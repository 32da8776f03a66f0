package canalyst

import (
	"fmt"

	"github.com/albenik/bcd"
)

// DeviceIdentity is the board identification snapshot read from the adapter.
// Version words come back BCD coded, 0x0130 meaning V1.30.
type DeviceIdentity struct {
	HardwareVersion uint16 `json:"hardware_version"`
	FirmwareVersion uint16 `json:"firmware_version"`
	SerialNumber    string `json:"serial_number"`
}

func (i DeviceIdentity) String() string {
	return fmt.Sprintf("hw %s fw %s serial %s",
		VersionString(i.HardwareVersion), VersionString(i.FirmwareVersion), i.SerialNumber)
}

// VersionString renders a BCD coded version word the way the vendor tool
// prints it, eg. 0x0130 -> "V1.30".
func VersionString(v uint16) string {
	bs := int(bcd.ToUint16([]byte{byte(v >> 8), byte(v)}))
	return fmt.Sprintf("V%d.%02d", bs/100, bs%100)
}
