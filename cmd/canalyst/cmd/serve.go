package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/y60yu1ii/canalyst/pkg/api"
	"golang.org/x/sync/errgroup"
)

var serveListen string

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", ":8080", "HTTP listen address")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operator API over HTTP",
	Long:  `Runs the HTTP operator API in front of one long lived session. The server drains and exits when the driver connection dies or on interrupt.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		con, err := initConsole(ctx)
		if err != nil {
			return err
		}
		defer con.Close()

		router := api.NewRouter(con.session, con.client)
		srv := &http.Server{Addr: serveListen, Handler: router.Handler()}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("address", serveListen).Msg("serving operator API")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-con.client.Done():
				log.Warn().Msg("driver connection lost, draining")
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return con.client.Err()
		})
		return g.Wait()
	},
}
