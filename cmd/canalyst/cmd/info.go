package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/y60yu1ii/canalyst"
)

var (
	green  = color.New(color.FgGreen).SprintfFunc()
	yellow = color.New(color.FgHiBlue).SprintfFunc()
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Open the device and print the board identification",
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

		state := sess.State()
		id := state.Identity
		fmt.Printf("Hardware: %s\n", green("%s", canalyst.VersionString(id.HardwareVersion)))
		fmt.Printf("Firmware: %s\n", green("%s", canalyst.VersionString(id.FirmwareVersion)))
		fmt.Printf("Serial:   %s\n", yellow("%s", id.SerialNumber))
		if p := state.SelectedProfile; p != nil {
			fmt.Printf("Rate:     %s\n", p)
		}
		return nil
	},
}
