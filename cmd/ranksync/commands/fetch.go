package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/questlab/ranksync/internal/ranking"
	"github.com/questlab/ranksync/internal/ranking/reconcile"
	"github.com/questlab/ranksync/internal/ranking/transport"
	"github.com/questlab/ranksync/pkg/config"
	"github.com/questlab/ranksync/pkg/httputil"
	"github.com/questlab/ranksync/pkg/logger"
)

var fetchPeriod string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "One-shot REST fetch of the current standings",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchPeriod, "period", "daily", "ranking period (daily|weekly|monthly|allTime)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	period, err := ranking.ParsePeriod(fetchPeriod)
	if err != nil {
		return err
	}

	logLevel := "error"
	if verbose {
		logLevel = "debug"
	}
	log := logger.New(logLevel, "console")

	httpClient := httputil.New(log, cfg.Ranking.FetchTimeout).
		WithBearerToken(cfg.Ranking.Token)
	client := transport.NewRESTClient(httpClient, cfg.Ranking.APIBaseURL, cfg.Ranking.PollRatePerSec, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.FetchLeaderboard(ctx, period)
	if err != nil {
		return err
	}

	entrants := reconcile.List(result.Leaderboard, nil, cfg.Ranking.UserID)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tNAME\tXP\tLEVEL\n")
	for _, e := range entrants {
		marker := ""
		if e.IsCurrentUser {
			marker = " *"
		}
		fmt.Fprintf(w, "%d\t%s%s\t%d\t%d\n", e.Rank, e.DisplayName, marker, e.XP, e.Level)
	}
	w.Flush()

	if len(entrants) == 0 {
		fmt.Printf("no entrants for %s yet\n", period)
	}

	if info := result.CurrentUserInfo; info != nil {
		fmt.Printf("\nyou: rank %d, %d xp, level %d\n", info.Rank, info.XP, info.Level)
	}

	return nil
}
