package cmd

import (
	"context"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reconfigureCmd)
}

var reconfigureCmd = &cobra.Command{
	Use:   "reconfigure [rate]",
	Short: "Reconnect the device with a new baud rate",
	Long:  `Selects a baud rate profile and cycles the device so both channels come up with the new timing registers. Prompts when no rate is given.`,
	Args:  cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		con, err := initConsole(ctx)
		if err != nil {
			return err
		}
		defer con.Close()
		sess := con.session

		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			prompt := promptui.Select{
				Label:    "Baud rate",
				HideHelp: true,
				Items:    sess.Catalog().Labels(),
			}
			_, label, err = prompt.Run()
			if err != nil {
				return err
			}
		}
		if err := sess.SelectBaudRate(label); err != nil {
			return err
		}

		if err := sess.Open(ctx); err != nil {
			return err
		}
		defer sess.Close(context.Background())

		if err := sess.Reconfigure(ctx); err != nil {
			return err
		}
		log.Info().Str("result", sess.State().LastActionMessage).Msg("reconfigured")
		return nil
	},
}
