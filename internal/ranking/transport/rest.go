package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/questlab/ranksync/internal/ranking"
	"github.com/questlab/ranksync/pkg/httputil"
	"github.com/questlab/ranksync/pkg/logger"
)

// RESTClient fetches leaderboard snapshots over the REST fallback
// endpoint. The call is idempotent and safe to repeat, which is what the
// keep-alive poll relies on. A rate limiter caps the effective poll
// cadence regardless of how eagerly the controller fires.
type RESTClient struct {
	http    *httputil.Client
	baseURL string
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewRESTClient creates a client for the given API base URL.
// ratePerSec caps outbound requests; zero or negative means 1/sec.
func NewRESTClient(httpClient *httputil.Client, baseURL string, ratePerSec float64, log *logger.Logger) *RESTClient {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &RESTClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		log:     log,
	}
}

// FetchLeaderboard fetches the top-N snapshot for period, plus the
// current user's out-of-window info when the server includes it.
func (c *RESTClient) FetchLeaderboard(ctx context.Context, period ranking.Period) (*ranking.FetchResult, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("fetch leaderboard: unknown period %q", period)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	endpoint := fmt.Sprintf("%s/leaderboard?period=%s", c.baseURL, url.QueryEscape(string(period)))

	var result ranking.FetchResult
	if err := c.http.GetJSON(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("fetch leaderboard for %s: %w", period, err)
	}

	// An empty window is a valid result; normalize to a non-nil slice so
	// it propagates as an explicit empty state.
	if result.Leaderboard == nil {
		result.Leaderboard = []ranking.Entrant{}
	}

	c.log.WithFields(map[string]interface{}{
		"period":   period,
		"entrants": len(result.Leaderboard),
		"oow":      result.CurrentUserInfo != nil,
	}).Debug("Fetched leaderboard over REST")

	return &result, nil
}
