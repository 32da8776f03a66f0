package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/spf13/cobra"
	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/cmd/canalyst/pkg/ui"
)

func init() {
	rootCmd.AddCommand(monitorCmd)
}

var transmitInput = &ui.Input{
	Name:      "transmit",
	Title:     "Transmit (hex)",
	X:         0,
	Y:         17,
	W:         25,
	MaxLength: 30,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive console with live frames, session state and transmit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		con, err := initConsole(ctx)
		if err != nil {
			return err
		}
		defer con.Close()

		sess := con.session
		if err := sess.Open(ctx); err != nil {
			return err
		}
		defer sess.Close(context.Background())

		g, err := gocui.NewGui(gocui.OutputNormal)
		if err != nil {
			return err
		}
		g.Cursor = true
		defer g.Close()

		g.SetManagerFunc(monitorLayout)

		m := &monitor{ctx: ctx, session: sess}
		if err := m.keybindings(g); err != nil {
			return err
		}

		con.bus.Subscribe(canalyst.TopicFrame, func(payload string) {
			g.Update(func(g *gocui.Gui) error {
				v, err := g.View("frames")
				if err != nil {
					return err
				}
				fmt.Fprintf(v, " %s || %s\n", time.Now().Format("15:04:05.00000"), payload)
				return m.refreshStatus(g)
			})
		})
		con.bus.Subscribe(canalyst.TopicDriverError, func(msg string) {
			g.Update(func(g *gocui.Gui) error {
				v, err := g.View("errors")
				if err != nil {
					return err
				}
				fmt.Fprintln(v, msg)
				return m.refreshStatus(g)
			})
		})

		g.Update(m.refreshStatus)

		if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
			return err
		}
		return nil
	},
}

type monitor struct {
	ctx     context.Context
	session *canalyst.Session
}

func (m *monitor) refreshStatus(g *gocui.Gui) error {
	v, err := g.View("status")
	if err != nil {
		return err
	}
	v.Clear()
	state := m.session.State()
	fmt.Fprintf(v, "phase:  %s\n", state.Phase)
	if id := state.Identity; id != nil {
		fmt.Fprintf(v, "hw/fw:  %s / %s\n", canalyst.VersionString(id.HardwareVersion), canalyst.VersionString(id.FirmwareVersion))
		fmt.Fprintf(v, "serial: %s\n", id.SerialNumber)
	}
	if p := state.SelectedProfile; p != nil {
		fmt.Fprintf(v, "rate:   %s\n", p.Label)
	}
	fmt.Fprintf(v, "msg:    %s\n", state.LastActionMessage)
	fmt.Fprintf(v, "err:    %s\n", state.LastError)
	return nil
}

func (m *monitor) report(g *gocui.Gui, err error) {
	if err == nil {
		return
	}
	if v, verr := g.View("errors"); verr == nil {
		fmt.Fprintln(v, err)
	}
}

func (m *monitor) open(g *gocui.Gui, v *gocui.View) error {
	m.report(g, m.session.Open(m.ctx))
	return m.refreshStatus(g)
}

func (m *monitor) close(g *gocui.Gui, v *gocui.View) error {
	m.report(g, m.session.Close(m.ctx))
	return m.refreshStatus(g)
}

func (m *monitor) toggleReceive(g *gocui.Gui, v *gocui.View) error {
	if m.session.Phase() == canalyst.PhaseReceiving {
		m.report(g, m.session.StopReceiving(m.ctx))
	} else {
		m.report(g, m.session.StartReceiving(m.ctx))
	}
	return m.refreshStatus(g)
}

func (m *monitor) transmit(g *gocui.Gui, v *gocui.View) error {
	defer func() {
		v.Clear()
		v.SetCursor(0, 0)
		v.SetOrigin(0, 0)
		g.SetCurrentView("frames")
	}()

	buff := strings.TrimSpace(v.Buffer())
	if buff == "" {
		return nil
	}
	payload, err := hex.DecodeString(strings.ReplaceAll(buff, " ", ""))
	if err != nil {
		m.report(g, err)
		return nil
	}
	m.report(g, m.session.Transmit(m.ctx, payload))
	return m.refreshStatus(g)
}

func monitorLayout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("status", 0, 0, 25, 8); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Session"
	}
	if v, err := g.SetView("help", 0, 9, 25, 16); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Wrap = true
		v.Title = "Help"
		fmt.Fprintln(v, "<Q, Ctrl-C> Quit")
		fmt.Fprintln(v, "<O> Open <X> Close")
		fmt.Fprintln(v, "<R> Toggle receiving")
		fmt.Fprintln(v, "<T> Transmit")
		fmt.Fprintln(v, "<Space> Autoscroll")
		fmt.Fprintln(v, "<C> Clear frames")
	}

	if err := transmitInput.Layout(g); err != nil {
		return err
	}

	if v, err := g.SetView("errors", 0, 20, 25, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Autoscroll = true
		v.Wrap = true
		v.Title = "Errors"
	}

	if v, err := g.SetView("frames", 26, 0, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.SelFgColor = gocui.ColorCyan
		v.Autoscroll = true
		v.Highlight = true
		v.Title = "Frames"
		if _, err := g.SetCurrentView("frames"); err != nil {
			return err
		}
	}

	return nil
}

func (m *monitor) keybindings(g *gocui.Gui) error {
	quit := func(g *gocui.Gui, v *gocui.View) error { return gocui.ErrQuit }
	if err := g.SetKeybinding("", 'q', gocui.ModNone, quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", 'o', gocui.ModNone, m.open); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", 'x', gocui.ModNone, m.close); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", 'r', gocui.ModNone, m.toggleReceive); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", 't', gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			_, err := g.SetCurrentView("transmit")
			return err
		}); err != nil {
		return err
	}
	if err := g.SetKeybinding("transmit", gocui.KeyEnter, gocui.ModNone, m.transmit); err != nil {
		return err
	}

	if err := g.SetKeybinding("frames", 'c', gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.Autoscroll = true
			v.Clear()
			v.SetOrigin(0, 0)
			return nil
		},
	); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", gocui.KeySpace, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.Autoscroll = !v.Autoscroll
			return nil
		},
	); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", gocui.KeyArrowUp, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.MoveCursor(0, -1, false)
			return nil
		},
	); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", gocui.KeyArrowDown, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.MoveCursor(0, 1, false)
			return nil
		},
	); err != nil {
		return err
	}

	return nil
}
