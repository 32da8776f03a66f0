package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/pkg/bar"
)

var (
	recordCount  int
	recordOutput string
)

func init() {
	recordCmd.Flags().IntVarP(&recordCount, "count", "n", 100, "number of frames to record")
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "frames.log", "log file to write")
	rootCmd.AddCommand(recordCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record received frames to a log file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		con, err := initConsole(ctx)
		if err != nil {
			return err
		}
		defer con.Close()

		f, err := os.Create(recordOutput)
		if err != nil {
			return err
		}
		defer f.Close()

		frames := make(chan string, 256)
		con.bus.Subscribe(canalyst.TopicFrame, func(payload string) {
			select {
			case frames <- payload:
			default:
			}
		})

		sess := con.session
		if err := sess.Open(ctx); err != nil {
			return err
		}
		defer sess.Close(context.Background())
		if err := sess.StartReceiving(ctx); err != nil {
			return err
		}
		defer sess.StopReceiving(context.Background())

		b := bar.New(recordCount, "recording")
		w := bufio.NewWriter(f)
		defer w.Flush()
		for i := 0; i < recordCount; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case p := <-frames:
				fmt.Fprintf(w, "%s %s\n", time.Now().Format("15:04:05.00000"), p)
				b.Add(1)
			}
		}
		b.Finish()
		fmt.Println()
		log.Info().Int("frames", recordCount).Str("file", recordOutput).Msg("recording complete")
		return nil
	},
}
