package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/y60yu1ii/canalyst"
)

func init() {
	rootCmd.AddCommand(ratesCmd)
}

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "List the supported baud rates",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range canalyst.DefaultCatalog().Profiles() {
			marker := "  "
			if p.Label == canalyst.DefaultRate {
				marker = green("* ")
			}
			fmt.Printf("%s%-12s Timing0=0x%02X Timing1=0x%02X\n", marker, p.Label, p.Timing0, p.Timing1)
		}
	},
}
