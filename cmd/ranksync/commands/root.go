package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ranksync",
	Short: "Real-time leaderboard ranking sync engine",
	Long: `ranksync keeps a live, delta-annotated view of leaderboard standings.

It maintains an authenticated push channel to the ranking service,
falls back to REST polling when the channel is unavailable, and
reconciles successive snapshots into per-entrant position changes.

Examples:
  ranksync watch --period daily
  ranksync fetch --period weekly`,
}

// Execute runs the root command. Called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
