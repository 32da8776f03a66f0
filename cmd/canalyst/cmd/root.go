package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/driverd"
	"github.com/y60yu1ii/canalyst/vcigw"
)

var rootCmd = &cobra.Command{
	Use:          "canalyst",
	Short:        "CANalyst-II operator console",
	Long:         `Operator console for a CANalyst-II adapter behind the driver daemon`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var (
	driverAddr  string
	deviceType  uint32
	deviceIndex uint32
	channel     uint32
	debug       bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&driverAddr, "driver", "D", "unix:"+driverd.DefaultSocketPath(), "driver daemon address, unix:<path>, tcp:<host:port> or serial:<com-port>")
	pf.Uint32Var(&deviceType, "device-type", canalyst.DeviceTypeUSBCANII, "VCI device type")
	pf.Uint32Var(&deviceIndex, "device-index", 0, "VCI device index")
	pf.Uint32Var(&channel, "channel", 0, "CAN channel")
	pf.BoolVarP(&debug, "debug", "d", false, "debug mode")
}

// console bundles everything one command invocation needs against the daemon.
type console struct {
	session *canalyst.Session
	client  *vcigw.Client
	bus     *canalyst.Bus
}

func (c *console) Close() error {
	return c.client.Close()
}

func initConsole(ctx context.Context) (*console, error) {
	scheme, address, err := vcigw.ParseAddr(driverAddr)
	if err != nil {
		return nil, err
	}

	bus := canalyst.NewBus()
	client := vcigw.New(bus, &vcigw.Config{Scheme: scheme, Address: address})
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	cfg := canalyst.DefaultConfig()
	cfg.DeviceType = deviceType
	cfg.DeviceIndex = deviceIndex
	cfg.Channel = channel

	return &console{
		session: canalyst.NewSession(client, bus, canalyst.DefaultCatalog(), cfg),
		client:  client,
		bus:     bus,
	}, nil
}
