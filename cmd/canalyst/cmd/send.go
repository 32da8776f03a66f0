package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <payload>...",
	Short: "Transmit one or more hex payloads on the bus",
	Args:  cobra.MinimumNArgs(1),
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

		for _, arg := range args {
			payload, err := hex.DecodeString(strings.ReplaceAll(arg, " ", ""))
			if err != nil {
				return fmt.Errorf("payload %q is not hex: %w", arg, err)
			}
			if err := sess.Transmit(ctx, payload); err != nil {
				return err
			}
			log.Info().Str("result", sess.State().LastActionMessage).Msg("transmitted")
		}
		return nil
	},
}
