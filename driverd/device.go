package driverd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/y60yu1ii/canalyst"
)

// Status and error strings of the vendor driver surface. The console treats
// all of these as opaque text.
const (
	msgOpened       = "CAN device opened and started successfully"
	msgStopped      = "CAN device stopped successfully"
	msgStoppedRecv  = "Stopped receiving CAN data"
	msgBaudSet      = "Baud rate set successfully"
	errOpenFailed   = "開啟 CAN 裝置失敗"
	errNotInit      = "CAN 裝置尚未初始化"
	errTransmitFail = "傳送 CAN 數據失敗"
	errLibNotInit   = "CAN library not initialized"
)

// Options tunes the simulated board.
type Options struct {
	// Identity is what read_board_info answers with.
	Identity canalyst.DeviceIdentity
	// FrameInterval is the pace of the synthetic frame generator while the
	// device is receiving. Zero disables the generator, transmissions are
	// still looped back.
	FrameInterval time.Duration
}

// Device simulates a single CANalyst-II board of type 4 on index 0. It keeps
// the vendor driver's quirks: command failures are reported twice, once as
// the call result and once on the error-message topic, and receiving
// survives a device stop silently, frames simply stop flowing until the
// next open.
type Device struct {
	opts Options

	mu         sync.Mutex
	opened     bool
	receiving  bool
	generating bool // a generate loop is live
	channel    uint32
	timing     map[uint32][2]uint8
	notify     func(topic canalyst.Topic, payload string)
	seq        uint32

	closeOnce sync.Once
	closeChan chan struct{}
}

func NewDevice(opts Options) *Device {
	if opts.Identity == (canalyst.DeviceIdentity{}) {
		opts.Identity = canalyst.DeviceIdentity{
			HardwareVersion: 0x0130,
			FirmwareVersion: 0x0121,
			SerialNumber:    "31180000636",
		}
	}
	return &Device{
		opts:      opts,
		timing:    make(map[uint32][2]uint8),
		closeChan: make(chan struct{}),
	}
}

// SetNotifier hooks the out-of-band topic writer. Nil detaches it.
func (d *Device) SetNotifier(fn func(topic canalyst.Topic, payload string)) {
	d.mu.Lock()
	d.notify = fn
	d.mu.Unlock()
}

func (d *Device) emit(topic canalyst.Topic, payload string) {
	d.mu.Lock()
	fn := d.notify
	d.mu.Unlock()
	if fn != nil {
		fn(topic, payload)
	}
}

// Open brings the board up. Reopening an open board succeeds silently, just
// like loading the vendor library twice does.
func (d *Device) Open(devType, devIndex uint32) (string, error) {
	if devType != canalyst.DeviceTypeUSBCANII || devIndex != 0 {
		d.emit(canalyst.TopicDriverError, errOpenFailed)
		return "", errors.New(errOpenFailed)
	}
	d.mu.Lock()
	d.opened = true
	d.mu.Unlock()
	log.Debug().Uint32("devType", devType).Uint32("devIndex", devIndex).Msg("device opened")
	return msgOpened, nil
}

// Stop shuts the board down. The receive loop stays armed but goes silent
// until the next open.
func (d *Device) Stop(devType, devIndex uint32) (string, error) {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		d.emit(canalyst.TopicDriverError, errNotInit)
		return "", errors.New(errNotInit)
	}
	d.opened = false
	d.mu.Unlock()
	log.Debug().Msg("device stopped")
	return msgStopped, nil
}

// BoardInfo answers the identification block.
func (d *Device) BoardInfo() (canalyst.DeviceIdentity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return canalyst.DeviceIdentity{}, errors.New(errLibNotInit)
	}
	return d.opts.Identity, nil
}

// SetTiming programs the timing registers of one channel.
func (d *Device) SetTiming(channel uint32, timing0, timing1 uint8) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return "", errors.New(errLibNotInit)
	}
	d.timing[channel] = [2]uint8{timing0, timing1}
	return msgBaudSet, nil
}

// Reconnect cycles the board and brings both channels back up with new
// timing registers. Works from any state, the cycle starts with a fresh
// open.
func (d *Device) Reconnect(channels [2]uint32, timing0, timing1 uint8) (string, error) {
	d.mu.Lock()
	d.opened = true
	for _, ch := range channels {
		d.timing[ch] = [2]uint8{timing0, timing1}
	}
	d.mu.Unlock()
	log.Debug().Uint8("timing0", timing0).Uint8("timing1", timing1).Msg("device reconnected")
	return fmt.Sprintf("Device reconnected with new baud: Timing0 = 0x%X, Timing1 = 0x%X", timing0, timing1), nil
}

// StartReceiving arms the receive loop on one channel. Arming twice, or
// rearming before a disarmed loop has wound down, keeps the single loop.
func (d *Device) StartReceiving(channel uint32) error {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		d.emit(canalyst.TopicDriverError, errNotInit)
		return errors.New(errNotInit)
	}
	if d.receiving {
		d.mu.Unlock()
		return nil
	}
	d.receiving = true
	d.channel = channel
	spawn := d.opts.FrameInterval > 0 && !d.generating
	if spawn {
		d.generating = true
	}
	d.mu.Unlock()
	if spawn {
		go d.generate()
	}
	return nil
}

// StopReceiving disarms the receive loop.
func (d *Device) StopReceiving() (string, error) {
	d.mu.Lock()
	d.receiving = false
	d.mu.Unlock()
	return msgStoppedRecv, nil
}

// Transmit puts one payload on the bus. While receiving, the board hears
// its own frame and loops it back on the can-data topic.
func (d *Device) Transmit(channel uint32, payload []byte) (string, error) {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		d.emit(canalyst.TopicDriverError, errNotInit)
		return "", errors.New(errNotInit)
	}
	if len(payload) == 0 || len(payload) > 8 {
		d.mu.Unlock()
		d.emit(canalyst.TopicDriverError, errTransmitFail)
		return "", errors.New(errTransmitFail)
	}
	receiving := d.receiving
	d.mu.Unlock()

	if receiving {
		d.emit(canalyst.TopicFrame, NewFrame(transmitID, payload).String())
	}
	if len(payload) == 1 {
		return fmt.Sprintf("Sent data: %d", payload[0]), nil
	}
	return fmt.Sprintf("Sent data: %X", payload), nil
}

// Close stops the generator for good on daemon shutdown.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		close(d.closeChan)
	})
}

// generate paces synthetic frames onto the can-data topic while the device
// is open and receiving. Mirrors the vendor receive thread: it exits when
// receiving is disarmed but only goes quiet while the device is stopped.
func (d *Device) generate() {
	t := time.NewTicker(d.opts.FrameInterval)
	defer t.Stop()
	for {
		select {
		case <-d.closeChan:
			d.mu.Lock()
			d.generating = false
			d.mu.Unlock()
			return
		case <-t.C:
			d.mu.Lock()
			if !d.receiving {
				d.generating = false
				d.mu.Unlock()
				return
			}
			if !d.opened {
				d.mu.Unlock()
				continue
			}
			d.seq++
			n := d.seq
			d.mu.Unlock()
			d.emit(canalyst.TopicFrame, NewFrame(0x123, []byte{byte(n >> 8), byte(n)}).String())
		}
	}
}
