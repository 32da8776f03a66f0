package vcigw

import (
	"fmt"
	"io"
	"net"
	"sort"
	"strings"

	"github.com/y60yu1ii/canalyst"
	"go.bug.st/serial"
)

// Dialer opens the stream transport to the driver daemon.
type Dialer func(cfg *Config) (io.ReadWriteCloser, error)

var transportMap = map[string]Dialer{
	"unix":   dialUnix,
	"tcp":    dialTCP,
	"serial": dialSerial,
}

// RegisterTransport adds a dialer under a new scheme.
func RegisterTransport(scheme string, dial Dialer) error {
	if _, found := transportMap[scheme]; found {
		return fmt.Errorf("transport %s already registered", scheme)
	}
	transportMap[scheme] = dial
	return nil
}

func ListTransports() []string {
	var out []string
	for scheme := range transportMap {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}

func dial(cfg *Config) (io.ReadWriteCloser, error) {
	d, found := transportMap[cfg.Scheme]
	if !found {
		return nil, canalyst.Unrecoverable(fmt.Errorf("unknown transport %q", cfg.Scheme))
	}
	return d(cfg)
}

func dialUnix(cfg *Config) (io.ReadWriteCloser, error) {
	return net.Dial("unix", cfg.Address)
}

func dialTCP(cfg *Config) (io.ReadWriteCloser, error) {
	return net.Dial("tcp", cfg.Address)
}

func dialSerial(cfg *Config) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: cfg.SerialBaudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(cfg.Address, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open com port %q : %v", cfg.Address, err)
	}
	return p, nil
}

// ParseAddr splits a driver address of the form scheme:address, eg.
// unix:/tmp/candriverd.sock, tcp:127.0.0.1:7227 or serial:/dev/ttyUSB0.
func ParseAddr(addr string) (scheme, address string, err error) {
	scheme, address, ok := strings.Cut(addr, ":")
	if !ok || scheme == "" || address == "" {
		return "", "", fmt.Errorf("invalid driver address %q, want scheme:address", addr)
	}
	return scheme, address, nil
}
