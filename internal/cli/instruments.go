package cli

import (
	"github.com/spf13/cobra"
)

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "List supported instruments and their upstream symbols",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Instruments(cmd.OutOrStdout())
	},
}
