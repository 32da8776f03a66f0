// Package vcigw is the console side of the driver daemon link. A Client
// multiplexes request/response commands and inbound notifications over a
// single stream transport and feeds the notifications into the event bus.
package vcigw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/pkg/vciwire"
)

var _ canalyst.Gateway = (*Client)(nil)

type Config struct {
	Scheme  string // unix, tcp or serial
	Address string
	// SerialBaudrate only matters for the serial transport. Defaults to 115200.
	SerialBaudrate int
	// DialAttempts is how often Connect retries the dial. Defaults to 3.
	DialAttempts uint
}

// Client is the command gateway toward the driver daemon. Calls are
// correlated to responses by sequence number so notifications can arrive
// interleaved at any time.
type Client struct {
	cfg Config
	bus *canalyst.Bus

	conn    io.ReadWriteCloser
	writeMu sync.Mutex

	seqMu sync.Mutex
	seq   uint32

	pendingMu sync.Mutex
	pending   map[uint32]chan *vciwire.Result

	closeOnce sync.Once
	closeChan chan struct{}

	errMu sync.Mutex
	err   error
}

// New builds a client for the daemon at cfg. The config is copied, zero
// values are filled with defaults.
func New(bus *canalyst.Bus, cfg *Config) *Client {
	c := &Client{
		cfg:       *cfg,
		bus:       bus,
		pending:   make(map[uint32]chan *vciwire.Result),
		closeChan: make(chan struct{}),
	}
	if c.cfg.SerialBaudrate == 0 {
		c.cfg.SerialBaudrate = 115200
	}
	if c.cfg.DialAttempts == 0 {
		c.cfg.DialAttempts = 3
	}
	return c
}

// Connect dials the daemon and starts the receive loop.
func (c *Client) Connect(ctx context.Context) error {
	err := retry.Do(func() error {
		conn, err := dial(&c.cfg)
		if err != nil {
			return err
		}
		c.conn = conn
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(c.cfg.DialAttempts),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Uint("attempt", n).Err(err).Msg("driver dial retry")
		}),
		retry.RetryIf(canalyst.IsRecoverable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("could not connect to driver daemon: %w", err)
	}
	log.Debug().Str("scheme", c.cfg.Scheme).Str("address", c.cfg.Address).Msg("driver connected")
	go c.recvManager()
	return nil
}

// Call issues one named command and blocks until the daemon answers, the
// transport dies or ctx is done. The args are marshaled to JSON.
func (c *Client) Call(ctx context.Context, command string, args any) (json.RawMessage, error) {
	select {
	case <-c.closeChan:
		return nil, c.closeErr()
	default:
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s args: %w", command, err)
	}

	c.seqMu.Lock()
	c.seq++
	seq := c.seq
	c.seqMu.Unlock()

	ch := make(chan *vciwire.Result, 1)
	c.pendingMu.Lock()
	c.pending[seq] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
	}()

	log.Debug().Uint32("seq", seq).Str("command", command).Msg("driver TX")

	c.writeMu.Lock()
	err = vciwire.Write(c.conn, vciwire.NewRequest(seq, command, body))
	c.writeMu.Unlock()
	if err != nil {
		c.fail(canalyst.Unrecoverable(err))
		return nil, err
	}

	select {
	case res := <-ch:
		if res.Error != "" {
			return nil, errors.New(res.Error)
		}
		return res.Data, nil
	case <-c.closeChan:
		return nil, c.closeErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// recvManager reads envelopes off the stream until the transport dies,
// routing responses to their waiting caller and notifications to the bus.
func (c *Client) recvManager() {
	for {
		e, err := vciwire.Read(c.conn)
		if err != nil {
			select {
			case <-c.closeChan:
			default:
				c.fail(canalyst.Unrecoverable(err))
			}
			return
		}
		switch e.Kind {
		case vciwire.Response:
			c.deliver(e)
		case vciwire.Notification:
			log.Debug().Str("topic", e.Name).Msg("driver notification")
			c.bus.Publish(canalyst.Topic(e.Name), string(e.Body))
		default:
			log.Debug().Str("envelope", e.String()).Msg("unexpected envelope kind")
		}
	}
}

func (c *Client) deliver(e *vciwire.Envelope) {
	res := &vciwire.Result{}
	if err := json.Unmarshal(e.Body, res); err != nil {
		res = &vciwire.Result{Error: fmt.Sprintf("malformed response: %v", err)}
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[e.Seq]
	c.pendingMu.Unlock()
	if !ok {
		log.Debug().Uint32("seq", e.Seq).Str("command", e.Name).Msg("response with no waiter")
		return
	}
	select {
	case ch <- res:
	default:
	}
}

// fail marks the client dead and releases every in-flight call.
func (c *Client) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.closeOnce.Do(func() {
		close(c.closeChan)
	})
	c.pendingMu.Lock()
	for seq, ch := range c.pending {
		select {
		case ch <- &vciwire.Result{Error: err.Error()}:
		default:
		}
		delete(c.pending, seq)
	}
	c.pendingMu.Unlock()
}

func (c *Client) closeErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err != nil {
		return c.err
	}
	return canalyst.ErrGatewayClosed
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeChan)
	})
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Done is closed once the transport is torn down, by Close or by a fatal
// transport error.
func (c *Client) Done() <-chan struct{} {
	return c.closeChan
}

// Err returns the fatal transport error, or nil when the client was closed
// deliberately or is still running.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}
