// Package driverd implements the driver daemon the console talks to: a
// stream server speaking vciwire envelopes in front of a simulated
// CANalyst-II board. The real vendor library is Windows only, the simulator
// stands in for it everywhere else and keeps its observable behavior.
package driverd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/pkg/vciwire"
)

// DefaultSocketPath is where the daemon listens when nothing else is asked
// for.
func DefaultSocketPath() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "candriverd.sock")
	}
	return filepath.Join(cacheDir, "candriverd.sock")
}

// Server accepts console connections and dispatches their commands onto the
// device. Notifications fan out to every connected console.
type Server struct {
	l   net.Listener
	dev *Device

	mu    sync.Mutex
	conns map[*connWriter]struct{}

	closeOnce sync.Once
}

func NewServer(network, address string, dev *Device) (*Server, error) {
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	s := &Server{l: l, dev: dev, conns: make(map[*connWriter]struct{})}
	dev.SetNotifier(s.notify)
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.l.Addr()
}

func (s *Server) Run() error {
	log.Info().Stringer("addr", s.l.Addr()).Msg("driver daemon listening")
	for {
		conn, err := s.l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.dev.Close()
		err = s.l.Close()
	})
	return err
}

func (s *Server) notify(topic canalyst.Topic, payload string) {
	s.mu.Lock()
	targets := make([]*connWriter, 0, len(s.conns))
	for w := range s.conns {
		targets = append(targets, w)
	}
	s.mu.Unlock()

	e := vciwire.NewNotification(string(topic), []byte(payload))
	for _, w := range targets {
		if err := w.send(e); err != nil {
			log.Debug().Err(err).Str("topic", string(topic)).Msg("dropped notification")
		}
	}
}

// ErrDroppedEnvelope means a console stopped draining its stream and its
// outbound queue overflowed.
var ErrDroppedEnvelope = errors.New("console outbound queue full")

// connWriter owns the write side of one console stream. Responses and
// notifications are queued onto a single writer goroutine so a console that
// stops reading never stalls the fanout, once its queue is full envelopes
// are dropped.
type connWriter struct {
	conn net.Conn
	out  chan *vciwire.Envelope

	closeOnce sync.Once
	closeChan chan struct{}
}

func newConnWriter(conn net.Conn) *connWriter {
	w := &connWriter{
		conn:      conn,
		out:       make(chan *vciwire.Envelope, 100),
		closeChan: make(chan struct{}),
	}
	go w.writeManager()
	return w
}

func (w *connWriter) send(e *vciwire.Envelope) error {
	select {
	case w.out <- e:
		return nil
	default:
		return ErrDroppedEnvelope
	}
}

func (w *connWriter) writeManager() {
	for {
		select {
		case <-w.closeChan:
			return
		case e := <-w.out:
			if err := vciwire.Write(w.conn, e); err != nil {
				log.Debug().Err(err).Msg("console write failed")
				return
			}
		}
	}
}

func (w *connWriter) close() {
	w.closeOnce.Do(func() {
		close(w.closeChan)
	})
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	log.Debug().Stringer("remote", conn.RemoteAddr()).Msg("console connected")

	w := newConnWriter(conn)
	s.mu.Lock()
	s.conns[w] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, w)
		s.mu.Unlock()
		w.close()
	}()

	for {
		e, err := vciwire.Read(conn)
		if err != nil {
			log.Debug().Err(err).Msg("console disconnected")
			return
		}
		if e.Kind != vciwire.Request {
			log.Debug().Stringer("envelope", e).Msg("dropping non request envelope")
			continue
		}
		log.Debug().Uint32("seq", e.Seq).Str("command", e.Name).Msg("driver RX")

		var body []byte
		result, err := s.dispatch(e.Name, e.Body)
		if err != nil {
			body = vciwire.Fail(err.Error())
		} else if body, err = vciwire.OK(result); err != nil {
			body = vciwire.Fail(err.Error())
		}
		// A console whose queue cannot even take its own response is long
		// gone, cut the connection so its client errors out instead of
		// waiting forever.
		if err := w.send(vciwire.NewResponse(e.Seq, e.Name, body)); err != nil {
			log.Debug().Err(err).Msg("response dropped")
			return
		}
	}
}

func (s *Server) dispatch(command string, body []byte) (any, error) {
	switch command {
	case canalyst.CmdOpenDevice:
		var a canalyst.DeviceArgs
		if err := json.Unmarshal(body, &a); err != nil {
			return nil, fmt.Errorf("bad %s args: %w", command, err)
		}
		return s.dev.Open(a.DeviceType, a.DeviceIndex)
	case canalyst.CmdStopDevice:
		var a canalyst.DeviceArgs
		if err := json.Unmarshal(body, &a); err != nil {
			return nil, fmt.Errorf("bad %s args: %w", command, err)
		}
		return s.dev.Stop(a.DeviceType, a.DeviceIndex)
	case canalyst.CmdReadBoardInfo:
		return s.dev.BoardInfo()
	case canalyst.CmdSetBaudRate:
		var a canalyst.TimingArgs
		if err := json.Unmarshal(body, &a); err != nil {
			return nil, fmt.Errorf("bad %s args: %w", command, err)
		}
		return s.dev.SetTiming(a.Channel, a.Timing0, a.Timing1)
	case canalyst.CmdReconnect:
		var a canalyst.ReconnectArgs
		if err := json.Unmarshal(body, &a); err != nil {
			return nil, fmt.Errorf("bad %s args: %w", command, err)
		}
		return s.dev.Reconnect(a.Channels, a.Timing0, a.Timing1)
	case canalyst.CmdStartReceiving:
		var a canalyst.ReceiveArgs
		if err := json.Unmarshal(body, &a); err != nil {
			return nil, fmt.Errorf("bad %s args: %w", command, err)
		}
		return nil, s.dev.StartReceiving(a.Channel)
	case canalyst.CmdStopReceiving:
		return s.dev.StopReceiving()
	case canalyst.CmdTransmit:
		var a canalyst.TransmitArgs
		if err := json.Unmarshal(body, &a); err != nil {
			return nil, fmt.Errorf("bad %s args: %w", command, err)
		}
		return s.dev.Transmit(a.Channel, a.Payload)
	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
}
