package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlab/ranksync/internal/ranking"
	"github.com/questlab/ranksync/pkg/httputil"
	"github.com/questlab/ranksync/pkg/logger"
)

func newRESTFixture(t *testing.T, handler http.HandlerFunc) *RESTClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	httpClient := httputil.New(logger.NewNop(), 0).DisableRetry()
	return NewRESTClient(httpClient, srv.URL, 100, logger.NewNop())
}

func TestFetchLeaderboard(t *testing.T) {
	client := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/leaderboard", r.URL.Path)
		assert.Equal(t, "weekly", r.URL.Query().Get("period"))

		json.NewEncoder(w).Encode(ranking.FetchResult{
			Leaderboard: []ranking.Entrant{
				{ID: "a", DisplayName: "Ada", XP: 4200},
				{ID: "b", DisplayName: "Bob", XP: 3100},
			},
			CurrentUserInfo: &ranking.OutOfWindowEntry{Rank: 57, XP: 800, Name: "Me"},
		})
	})

	res, err := client.FetchLeaderboard(context.Background(), ranking.PeriodWeekly)
	require.NoError(t, err)
	require.Len(t, res.Leaderboard, 2)
	assert.Equal(t, "a", res.Leaderboard[0].ID)
	require.NotNil(t, res.CurrentUserInfo)
	assert.Equal(t, 57, res.CurrentUserInfo.Rank)
}

func TestFetchLeaderboardEmptyWindow(t *testing.T) {
	client := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"leaderboard": null}`))
	})

	res, err := client.FetchLeaderboard(context.Background(), ranking.PeriodDaily)
	require.NoError(t, err)
	require.NotNil(t, res.Leaderboard, "empty window normalizes to a non-nil slice")
	assert.Len(t, res.Leaderboard, 0)
	assert.Nil(t, res.CurrentUserInfo)
}

func TestFetchLeaderboardServerError(t *testing.T) {
	client := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.FetchLeaderboard(context.Background(), ranking.PeriodDaily)
	require.Error(t, err)
}

func TestFetchLeaderboardRejectsUnknownPeriod(t *testing.T) {
	client := newRESTFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server")
	})

	_, err := client.FetchLeaderboard(context.Background(), ranking.Period("hourly"))
	require.Error(t, err)
}
