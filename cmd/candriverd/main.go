// Command candriverd runs the driver daemon the console connects to: the
// simulated CANalyst-II board behind the socket command protocol. One daemon
// per socket, a leftover socket from a crashed run is probed and reclaimed.
package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/driverd"
	"github.com/y60yu1ii/canalyst/pkg/vciwire"
	"github.com/y60yu1ii/canalyst/vcigw"
)

var (
	listenAddr    string
	frameInterval time.Duration
	debug         bool
)

func init() {
	flag.StringVar(&listenAddr, "listen", "unix:"+driverd.DefaultSocketPath(), "listen address, unix:<path> or tcp:<host:port>")
	flag.DurationVar(&frameInterval, "frame-interval", 100*time.Millisecond, "synthetic frame pace while receiving, 0 disables the generator")
	flag.BoolVar(&debug, "debug", false, "debug logging")
	flag.Parse()
}

func fileExists(name string) bool {
	_, err := os.Stat(name)
	return !os.IsNotExist(err)
}

// isRunning probes a socket file left on disk. Any envelope coming back means
// a live daemon, everything else is a stale socket we can reclaim.
func isRunning(socketFile string) bool {
	if !fileExists(socketFile) {
		return false
	}
	conn, err := net.DialTimeout("unix", socketFile, time.Second)
	if err != nil {
		os.Remove(socketFile)
		return false
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(time.Second))
	if err := vciwire.Write(conn, vciwire.NewRequest(1, canalyst.CmdReadBoardInfo, nil)); err != nil {
		os.Remove(socketFile)
		return false
	}
	if _, err := vciwire.Read(conn); err != nil {
		os.Remove(socketFile)
		return false
	}
	return true
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	scheme, address, err := vcigw.ParseAddr(listenAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("bad listen address")
	}
	switch scheme {
	case "unix":
		if isRunning(address) {
			log.Info().Str("socket", address).Msg("daemon already listening")
			return
		}
		defer os.Remove(address)
	case "tcp":
	default:
		log.Fatal().Str("scheme", scheme).Msg("listen supports unix and tcp only")
	}

	dev := driverd.NewDevice(driverd.Options{FrameInterval: frameInterval})
	srv, err := driverd.NewServer(scheme, address, dev)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start daemon")
	}
	defer srv.Close()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		log.Info().Str("signal", s.String()).Msg("shutting down")
		if err := srv.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close daemon")
		}
	}()

	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("daemon terminated")
	}
}
