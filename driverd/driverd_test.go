package driverd

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/pkg/vciwire"
	"github.com/y60yu1ii/canalyst/vcigw"
)

func daemon(t *testing.T, opts Options) string {
	t.Helper()
	srv, err := NewServer("tcp", "127.0.0.1:0", NewDevice(opts))
	if err != nil {
		t.Fatalf("failed to start daemon: %v", err)
	}
	go srv.Run()
	t.Cleanup(func() { srv.Close() })
	return srv.Addr().String()
}

func console(t *testing.T, addr string) *canalyst.Session {
	t.Helper()
	bus := canalyst.NewBus()
	client := vcigw.New(bus, &vcigw.Config{Scheme: "tcp", Address: addr})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect console: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return canalyst.NewSession(client, bus, canalyst.DefaultCatalog(), canalyst.DefaultConfig())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonOpenReadsIdentity(t *testing.T) {
	sess := console(t, daemon(t, Options{}))

	if err := sess.Open(context.Background()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	state := sess.State()
	if state.LastActionMessage != msgOpened {
		t.Errorf("unexpected message %q", state.LastActionMessage)
	}
	if state.Identity == nil {
		t.Fatal("expected identity after open")
	}
	if state.Identity.HardwareVersion != 0x0130 || state.Identity.FirmwareVersion != 0x0121 {
		t.Errorf("unexpected versions %04X/%04X", state.Identity.HardwareVersion, state.Identity.FirmwareVersion)
	}
	if state.Identity.SerialNumber != "31180000636" {
		t.Errorf("unexpected serial %q", state.Identity.SerialNumber)
	}
	if got := canalyst.VersionString(state.Identity.HardwareVersion); got != "V1.30" {
		t.Errorf("unexpected hardware version string %q", got)
	}
}

func TestDaemonSyntheticFrames(t *testing.T) {
	sess := console(t, daemon(t, Options{FrameInterval: 2 * time.Millisecond}))

	ctx := context.Background()
	if err := sess.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := sess.StartReceiving(ctx); err != nil {
		t.Fatalf("start receiving failed: %v", err)
	}
	if got := sess.Phase(); got != canalyst.PhaseReceiving {
		t.Fatalf("expected Receiving, got %v", got)
	}
	waitFor(t, "a synthetic frame", func() bool {
		return strings.HasPrefix(sess.State().LastFrame, "ID=123 DATA=")
	})
}

func TestDaemonTransmitLoopback(t *testing.T) {
	sess := console(t, daemon(t, Options{}))

	ctx := context.Background()
	if err := sess.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := sess.StartReceiving(ctx); err != nil {
		t.Fatalf("start receiving failed: %v", err)
	}
	if err := sess.Transmit(ctx, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("transmit failed: %v", err)
	}
	state := sess.State()
	if state.LastActionMessage != "Sent data: AABB" {
		t.Errorf("unexpected message %q", state.LastActionMessage)
	}
	if state.LastFrame != "ID=001 DATA=AABB" {
		t.Errorf("unexpected loopback frame %q", state.LastFrame)
	}
}

func TestDaemonBroadcastsToEveryConsole(t *testing.T) {
	addr := daemon(t, Options{})
	active := console(t, addr)
	watcher := console(t, addr)

	ctx := context.Background()
	if err := active.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := active.StartReceiving(ctx); err != nil {
		t.Fatalf("start receiving failed: %v", err)
	}
	if err := active.Transmit(ctx, []byte{0x42}); err != nil {
		t.Fatalf("transmit failed: %v", err)
	}

	// The transmitting console sees the loopback before its call returns; the
	// watcher gets the same notification on its own connection.
	if got := active.State().LastFrame; got != "ID=001 DATA=42" {
		t.Errorf("active console frame = %q", got)
	}
	waitFor(t, "the watcher's copy of the frame", func() bool {
		return watcher.State().LastFrame == "ID=001 DATA=42"
	})
}

func TestDaemonSurvivesStalledConsole(t *testing.T) {
	addr := daemon(t, Options{})
	active := console(t, addr)

	// A console that connects and then never reads a single byte.
	stalled, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { stalled.Close() })

	ctx := context.Background()
	if err := active.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := active.StartReceiving(ctx); err != nil {
		t.Fatalf("start receiving failed: %v", err)
	}
	// Far more traffic than the stalled console's socket and queue can
	// absorb. Its overflow must not block anyone else's loopback.
	for i := 0; i < 20000; i++ {
		if err := active.Transmit(ctx, []byte{0x7E}); err != nil {
			t.Fatalf("transmit %d failed: %v", i, err)
		}
	}
	if got := active.State().LastFrame; got != "ID=001 DATA=7E" {
		t.Errorf("active console lost its loopback, last frame %q", got)
	}
}

func TestConnWriterDropsWhenConsoleStalls(t *testing.T) {
	consoleEnd, daemonEnd := net.Pipe()
	defer consoleEnd.Close()
	defer daemonEnd.Close()
	w := newConnWriter(daemonEnd)
	defer w.close()

	// Nobody reads the console end: the first envelope parks the writer
	// goroutine, the rest fill the queue until it overflows.
	e := vciwire.NewNotification(string(canalyst.TopicFrame), []byte("ID=001 DATA=42"))
	var dropped int
	for i := 0; i < 200; i++ {
		if err := w.send(e); err != nil {
			if !errors.Is(err, ErrDroppedEnvelope) {
				t.Fatalf("unexpected send error: %v", err)
			}
			dropped++
		}
	}
	if dropped == 0 {
		t.Error("expected overflow drops on a stalled stream")
	}
}

func TestDaemonErrorReportedTwice(t *testing.T) {
	sess := console(t, daemon(t, Options{}))

	ctx := context.Background()
	if err := sess.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	err := sess.Transmit(ctx, make([]byte, 9))
	if err == nil || err.Error() != errTransmitFail {
		t.Fatalf("expected transmit failure, got %v", err)
	}
	if got := sess.State().LastError; got != errTransmitFail {
		t.Errorf("expected error on the error topic as well, got %q", got)
	}
}

func TestDaemonLifecycleRoundTrip(t *testing.T) {
	sess := console(t, daemon(t, Options{}))

	ctx := context.Background()
	if err := sess.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := sess.ApplyTiming(ctx); err != nil {
		t.Fatalf("apply timing failed: %v", err)
	}
	if got := sess.State().LastActionMessage; got != msgBaudSet {
		t.Errorf("unexpected message %q", got)
	}

	if err := sess.SelectBaudRate("500 Kbps"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if err := sess.Reconfigure(ctx); err != nil {
		t.Fatalf("reconfigure failed: %v", err)
	}
	want := "Device reconnected with new baud: Timing0 = 0x0, Timing1 = 0x1C"
	if got := sess.State().LastActionMessage; got != want {
		t.Errorf("unexpected message %q, want %q", got, want)
	}

	if err := sess.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	state := sess.State()
	if state.Phase != canalyst.PhaseClosed {
		t.Errorf("expected Closed, got %v", state.Phase)
	}
	if state.LastActionMessage != msgStopped {
		t.Errorf("unexpected message %q", state.LastActionMessage)
	}
	if state.Identity != nil {
		t.Error("identity should be cleared on close")
	}
}

func TestDaemonRejectsUnknownCommand(t *testing.T) {
	addr := daemon(t, Options{})
	client := vcigw.New(canalyst.NewBus(), &vcigw.Config{Scheme: "tcp", Address: addr})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	_, err := client.Call(context.Background(), "factory_reset", nil)
	if err == nil || err.Error() != "unknown command: factory_reset" {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestDeviceOpenRejectsWrongAddress(t *testing.T) {
	dev := NewDevice(Options{})
	var reported []string
	dev.SetNotifier(func(topic canalyst.Topic, payload string) {
		if topic == canalyst.TopicDriverError {
			reported = append(reported, payload)
		}
	})

	_, err := dev.Open(9, 0)
	if err == nil || err.Error() != errOpenFailed {
		t.Fatalf("expected open failure, got %v", err)
	}
	if len(reported) != 1 || reported[0] != errOpenFailed {
		t.Errorf("expected the failure on the error topic, got %v", reported)
	}
}

func TestDeviceReceivingSurvivesStop(t *testing.T) {
	dev := NewDevice(Options{FrameInterval: time.Millisecond})
	defer dev.Close()

	frames := make(chan string, 64)
	dev.SetNotifier(func(topic canalyst.Topic, payload string) {
		if topic == canalyst.TopicFrame {
			select {
			case frames <- payload:
			default:
			}
		}
	})

	if _, err := dev.Open(canalyst.DeviceTypeUSBCANII, 0); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := dev.StartReceiving(0); err != nil {
		t.Fatalf("start receiving failed: %v", err)
	}
	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame while receiving")
	}

	if _, err := dev.Stop(canalyst.DeviceTypeUSBCANII, 0); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	// The loop stays armed but silent. Reopening resumes the flow without a
	// new start_receiving_data.
	for len(frames) > 0 {
		<-frames
	}
	if _, err := dev.Open(canalyst.DeviceTypeUSBCANII, 0); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame after reopen")
	}
}

func TestDeviceRestartKeepsSingleGenerator(t *testing.T) {
	dev := NewDevice(Options{FrameInterval: 5 * time.Millisecond})
	defer dev.Close()

	var mu sync.Mutex
	frames := 0
	dev.SetNotifier(func(topic canalyst.Topic, payload string) {
		if topic == canalyst.TopicFrame {
			mu.Lock()
			frames++
			mu.Unlock()
		}
	})

	if _, err := dev.Open(canalyst.DeviceTypeUSBCANII, 0); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	// Toggle faster than the tick so the loop never sees the disarm.
	for i := 0; i < 10; i++ {
		if err := dev.StartReceiving(0); err != nil {
			t.Fatalf("start receiving failed: %v", err)
		}
		if _, err := dev.StopReceiving(); err != nil {
			t.Fatalf("stop receiving failed: %v", err)
		}
	}
	if err := dev.StartReceiving(0); err != nil {
		t.Fatalf("start receiving failed: %v", err)
	}

	mu.Lock()
	frames = 0
	mu.Unlock()
	time.Sleep(250 * time.Millisecond)
	mu.Lock()
	got := frames
	mu.Unlock()

	// One 5ms loop fits about 50 frames into the window. Loops stacked up
	// by the restarts would show as a multiple of that.
	if got == 0 {
		t.Fatal("no frames after restart")
	}
	if got > 80 {
		t.Errorf("%d frames in 250ms, more than one generator loop is running", got)
	}
}
