package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"signal-feed/internal/app"
)

var analyzeTimeout time.Duration

var analyzeCmd = &cobra.Command{
	Use:   "analyze [asset...]",
	Short: "Print the current signal for one or more instruments",
	Example: `  signalfeed analyze BTC/USDT
  signalfeed analyze EURUSD XAU/USD`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeTimeout <= 0 {
			return fmt.Errorf("--timeout must be greater than zero")
		}

		opts := app.AnalyzeOptions{
			Assets:  args,
			Timeout: analyzeTimeout,
		}

		return getApp().Analyze(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 30*time.Second, "Overall deadline for upstream fetches")
}
