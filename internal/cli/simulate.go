package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateAsset  string
	simulateChange float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic FORTE alert through the configured notifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAsset == "" {
			return errors.New("--asset must be provided")
		}
		if simulateChange == 0 {
			return errors.New("--change must be non-zero")
		}

		return getApp().SimulateAlert(cmd.Context(), simulateAsset, decimal.NewFromFloat(simulateChange))
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateAsset, "asset", "BTC/USDT", "Instrument to alert on")
	simulateCmd.Flags().Float64Var(&simulateChange, "change", 12, "Synthetic 24h percent change; negative values yield PUT")
}
