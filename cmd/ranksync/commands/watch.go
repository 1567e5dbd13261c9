package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/questlab/ranksync/internal/api"
	"github.com/questlab/ranksync/internal/ranking"
	"github.com/questlab/ranksync/internal/ranking/sync"
	"github.com/questlab/ranksync/internal/ranking/transport"
	"github.com/questlab/ranksync/pkg/config"
	"github.com/questlab/ranksync/pkg/httputil"
	"github.com/questlab/ranksync/pkg/logger"
)

var watchPeriod string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the ranking sync engine until interrupted",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchPeriod, "period", "", "initial ranking period (daily|weekly|monthly|allTime)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := cfg.LogLevel
	if verbose {
		logLevel = "debug"
	}
	log := logger.New(logLevel, cfg.LogFormat)

	periodStr := cfg.Ranking.DefaultPeriod
	if watchPeriod != "" {
		periodStr = watchPeriod
	}
	period, err := ranking.ParsePeriod(periodStr)
	if err != nil {
		return err
	}

	httpClient := httputil.New(log, cfg.Ranking.FetchTimeout).
		WithBearerToken(cfg.Ranking.Token)
	restClient := transport.NewRESTClient(httpClient, cfg.Ranking.APIBaseURL, cfg.Ranking.PollRatePerSec, log)

	controller := buildController(cfg, period, restClient, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := controller.Start(ctx); err != nil {
		return err
	}
	defer controller.Stop()

	var server *api.Server
	if cfg.Server.Enabled {
		server = api.New(cfg.Server.Port, log, api.NewRouter(controller, log))
		go func() {
			if err := server.Start(); err != nil {
				log.WithError(err).Error("API server stopped")
			}
		}()
	}

	// Drain the update stream; the API server reads snapshots directly
	// from the controller, so this is just visibility.
	go func() {
		for update := range controller.Updates() {
			log.WithFields(map[string]interface{}{
				"period":   update.Period,
				"entrants": len(update.Entrants),
				"oow":      update.OutOfWindow != nil,
			}).Info("Standings updated")
		}
	}()

	<-ctx.Done()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("API server shutdown failed")
		}
	}

	return nil
}

// buildController wires the websocket session and controller together.
func buildController(cfg *config.Config, period ranking.Period, fetcher sync.Fetcher, log *logger.Logger) *sync.Controller {
	opts := sync.Options{
		UserID:          cfg.Ranking.UserID,
		InitialPeriod:   period,
		ConnectTimeout:  cfg.Ranking.ConnectTimeout,
		FallbackAfter:   cfg.Ranking.FallbackAfter,
		FetchTimeout:    cfg.Ranking.FetchTimeout,
		PollInterval:    cfg.Ranking.PollInterval,
		ReconnectDelay:  cfg.Ranking.ReconnectDelay,
		ReconnectBudget: cfg.Ranking.ReconnectBudget,
		RolloverRefresh: cfg.Ranking.RolloverRefresh,
	}

	var controller *sync.Controller
	session := transport.NewSession(transport.SessionOptions{
		URL:         cfg.Ranking.SocketURL,
		Token:       cfg.Ranking.Token,
		DialTimeout: cfg.Ranking.ConnectTimeout,
		OnMessage: func(topic string, data []byte) {
			controller.HandleMessage(topic, data)
		},
		OnState: func(state ranking.ConnState, err error) {
			controller.HandleState(state, err)
		},
	}, log)

	controller = sync.New(session, fetcher, opts, log)
	return controller
}
