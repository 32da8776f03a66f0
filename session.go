package canalyst

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Phase is the session lifecycle state.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpen
	PhaseReceiving
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "Closed"
	case PhaseOpen:
		return "Open"
	case PhaseReceiving:
		return "Receiving"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// SessionState is a point in time snapshot of the session. Identity and
// SelectedProfile are replaced wholesale, never mutated in place, so the
// pointers stay valid after the snapshot is taken.
type SessionState struct {
	Phase             Phase
	Identity          *DeviceIdentity
	SelectedProfile   *BaudRateProfile
	LastActionMessage string
	LastError         string
	LastFrame         string
}

// Session sequences device lifecycle operations against the driver daemon
// and owns the authoritative view of the device. All driver calls go through
// the Gateway, inbound notifications are folded in via the Bus handlers
// registered at construction.
//
// One session corresponds to one physical adapter. Running two sessions
// against the same board gives undefined driver behavior.
type Session struct {
	cfg Config
	gw  Gateway
	cat *Catalog

	mu        sync.Mutex
	phase     Phase
	identity  *DeviceIdentity
	profile   *BaudRateProfile
	lastMsg   string
	lastErr   string
	lastFrame string
}

// NewSession wires a session to its gateway and subscribes the notification
// handlers. The catalog's default rate is preselected when the table carries
// it. A nil cfg means DefaultConfig.
func NewSession(gw Gateway, bus *Bus, cat *Catalog, cfg *Config) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Session{
		cfg: *cfg,
		gw:  gw,
		cat: cat,
	}
	if p, ok := cat.Default(); ok {
		s.profile = &p
	}
	bus.Subscribe(TopicFrame, s.handleFrame)
	bus.Subscribe(TopicDriverError, s.handleDriverError)
	return s
}

// State returns a snapshot of the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		Phase:             s.phase,
		Identity:          s.identity,
		SelectedProfile:   s.profile,
		LastActionMessage: s.lastMsg,
		LastError:         s.lastErr,
		LastFrame:         s.lastFrame,
	}
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Catalog returns the baud rate table the session selects from.
func (s *Session) Catalog() *Catalog {
	return s.cat
}

// Open brings the board up and reads its identity. A success moves a Closed
// session to Open; reopening an already open session is forwarded to the
// driver as-is and leaves the phase where it was, double-open detection is
// the driver's job. When the open succeeds but the identity read fails the
// session stays open with no identity and the read error is returned.
func (s *Session) Open(ctx context.Context) error {
	res, err := s.gw.Call(ctx, CmdOpenDevice, DeviceArgs{s.cfg.DeviceType, s.cfg.DeviceIndex})
	if err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.phase = PhaseOpen
	}
	s.lastMsg = statusText(res)
	s.mu.Unlock()
	log.Debug().Uint32("devType", s.cfg.DeviceType).Uint32("devIndex", s.cfg.DeviceIndex).Msg("device opened")
	_, err = s.ReadIdentity(ctx)
	return err
}

// Close stops the board. The session lands in Closed with identity and last
// frame cleared even when the driver rejects the stop, the rejection is
// still recorded.
func (s *Session) Close(ctx context.Context) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	res, err := s.gw.Call(ctx, CmdStopDevice, DeviceArgs{s.cfg.DeviceType, s.cfg.DeviceIndex})
	s.mu.Lock()
	s.phase = PhaseClosed
	s.identity = nil
	s.lastFrame = ""
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastMsg = statusText(res)
	}
	s.mu.Unlock()
	log.Debug().Err(err).Msg("device closed")
	return err
}

// ReadIdentity reads the board identification block. A failed read leaves
// the phase and any previously read identity untouched.
func (s *Session) ReadIdentity(ctx context.Context) (*DeviceIdentity, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	res, err := s.gw.Call(ctx, CmdReadBoardInfo, DeviceArgs{s.cfg.DeviceType, s.cfg.DeviceIndex})
	if err != nil {
		s.fail(err)
		return nil, err
	}
	ident := &DeviceIdentity{}
	if err := json.Unmarshal(res, ident); err != nil {
		err = fmt.Errorf("decode board info: %w", err)
		s.fail(err)
		return nil, err
	}
	s.mu.Lock()
	s.identity = ident
	s.mu.Unlock()
	return ident, nil
}

// SelectBaudRate picks a catalog profile by label. Pure local operation, an
// unknown label leaves the selection unchanged.
func (s *Session) SelectBaudRate(label string) error {
	p, err := s.cat.Resolve(label)
	if err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	s.profile = &p
	s.mu.Unlock()
	return nil
}

// Reconfigure tears the board down and brings the channel pair back up with
// the selected profile's timing registers. The receive loop on the driver
// side survives, so the phase stays where it was.
func (s *Session) Reconfigure(ctx context.Context) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	p, err := s.selectedProfile()
	if err != nil {
		return err
	}
	res, err := s.gw.Call(ctx, CmdReconnect, ReconnectArgs{
		DeviceType:  s.cfg.DeviceType,
		DeviceIndex: s.cfg.DeviceIndex,
		Channels:    s.cfg.ChannelPair,
		Timing0:     p.Timing0,
		Timing1:     p.Timing1,
	})
	if err != nil {
		s.fail(err)
		return err
	}
	s.setMessage(statusText(res))
	log.Debug().Str("rate", p.Label).Msg("device reconfigured")
	return nil
}

// ApplyTiming programs the selected profile's registers on the session
// channel alone, without the stop/start cycle Reconfigure does.
func (s *Session) ApplyTiming(ctx context.Context) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	p, err := s.selectedProfile()
	if err != nil {
		return err
	}
	res, err := s.gw.Call(ctx, CmdSetBaudRate, TimingArgs{
		DeviceType:  s.cfg.DeviceType,
		DeviceIndex: s.cfg.DeviceIndex,
		Channel:     s.cfg.Channel,
		Timing0:     p.Timing0,
		Timing1:     p.Timing1,
	})
	if err != nil {
		s.fail(err)
		return err
	}
	s.setMessage(statusText(res))
	return nil
}

// StartReceiving asks the driver to stream inbound frames. Acknowledgement
// only, the driver returns no status text for this one.
func (s *Session) StartReceiving(ctx context.Context) error {
	s.mu.Lock()
	var err error
	switch s.phase {
	case PhaseClosed:
		err = ErrDeviceNotOpen
	case PhaseReceiving:
		err = ErrAlreadyReceiving
	}
	if err != nil {
		s.lastErr = err.Error()
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	_, err = s.gw.Call(ctx, CmdStartReceiving, ReceiveArgs{s.cfg.DeviceType, s.cfg.DeviceIndex, s.cfg.Channel})
	if err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	s.phase = PhaseReceiving
	s.mu.Unlock()
	log.Debug().Uint32("channel", s.cfg.Channel).Msg("receiving started")
	return nil
}

// StopReceiving halts the inbound stream and drops back to Open.
func (s *Session) StopReceiving(ctx context.Context) error {
	s.mu.Lock()
	var err error
	switch s.phase {
	case PhaseClosed:
		err = ErrDeviceNotOpen
	case PhaseOpen:
		err = ErrNotReceiving
	}
	if err != nil {
		s.lastErr = err.Error()
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	res, err := s.gw.Call(ctx, CmdStopReceiving, nil)
	if err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	s.phase = PhaseOpen
	s.lastMsg = statusText(res)
	s.mu.Unlock()
	return nil
}

// Transmit sends one payload on the session channel. Only a zero length
// payload counts as absent, a single 0x00 byte is a payload.
func (s *Session) Transmit(ctx context.Context, payload []byte) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	if len(payload) == 0 {
		s.fail(ErrEmptyPayload)
		return ErrEmptyPayload
	}
	res, err := s.gw.Call(ctx, CmdTransmit, TransmitArgs{
		DeviceType:  s.cfg.DeviceType,
		DeviceIndex: s.cfg.DeviceIndex,
		Channel:     s.cfg.Channel,
		Payload:     payload,
	})
	if err != nil {
		s.fail(err)
		return err
	}
	s.setMessage(statusText(res))
	return nil
}

// handleFrame records an inbound frame regardless of phase, last writer
// wins. The driver is the sole authority on what is actually streaming.
func (s *Session) handleFrame(payload string) {
	s.mu.Lock()
	s.lastFrame = payload
	s.mu.Unlock()
}

// handleDriverError records an asynchronous driver error, overwriting
// whatever a foreground call just put there. The driver's delayed view wins.
func (s *Session) handleDriverError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	log.Debug().Str("driver", msg).Msg("driver error notification")
}

// requireOpen fast-fails driver backed operations while the session is
// Closed. No gateway call is ever made for a failed precondition.
func (s *Session) requireOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		s.lastErr = ErrDeviceNotOpen.Error()
		return ErrDeviceNotOpen
	}
	return nil
}

func (s *Session) selectedProfile() (BaudRateProfile, error) {
	s.mu.Lock()
	p := s.profile
	s.mu.Unlock()
	if p == nil {
		s.fail(ErrNoProfileSelected)
		return BaudRateProfile{}, ErrNoProfileSelected
	}
	return *p, nil
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *Session) setMessage(msg string) {
	s.mu.Lock()
	s.lastMsg = msg
	s.mu.Unlock()
}

// statusText unpacks the JSON string the status returning commands answer
// with. Anything that is not a JSON string is passed through raw.
func statusText(res json.RawMessage) string {
	var msg string
	if err := json.Unmarshal(res, &msg); err != nil {
		return string(res)
	}
	return msg
}
