package canalyst

// DeviceTypeUSBCANII is the VCI device type code for the CANalyst-II.
const DeviceTypeUSBCANII uint32 = 4

// Config addresses the board and channels a session drives.
type Config struct {
	DeviceType  uint32
	DeviceIndex uint32
	// Channel receives and transmits. ChannelPair is reinitialized together
	// on reconfigure, the CANalyst-II brings up both controllers at once.
	Channel     uint32
	ChannelPair [2]uint32
}

// DefaultConfig is a single CANalyst-II on index 0 using channel 0.
func DefaultConfig() *Config {
	return &Config{
		DeviceType:  DeviceTypeUSBCANII,
		DeviceIndex: 0,
		Channel:     0,
		ChannelPair: [2]uint32{0, 1},
	}
}
