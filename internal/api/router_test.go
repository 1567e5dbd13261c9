package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlab/ranksync/internal/ranking"
	"github.com/questlab/ranksync/internal/ranking/sync"
	"github.com/questlab/ranksync/pkg/logger"
)

type fakeEngine struct {
	state     sync.State
	active    ranking.Period
	standings map[ranking.Period][]ranking.Entrant
	oow       map[ranking.Period]*ranking.OutOfWindowEntry
	err       error
}

func (f *fakeEngine) State() sync.State            { return f.state }
func (f *fakeEngine) ActivePeriod() ranking.Period { return f.active }
func (f *fakeEngine) Err() error                   { return f.err }

func (f *fakeEngine) Standings(period ranking.Period) ([]ranking.Entrant, bool) {
	s, ok := f.standings[period]
	return s, ok
}

func (f *fakeEngine) OutOfWindow(period ranking.Period) *ranking.OutOfWindowEntry {
	return f.oow[period]
}

func newTestRouter() (*fakeEngine, http.Handler) {
	engine := &fakeEngine{
		state:  sync.StateLive,
		active: ranking.PeriodDaily,
		standings: map[ranking.Period][]ranking.Entrant{
			ranking.PeriodDaily: {
				{ID: "a", DisplayName: "Ada", XP: 4200, Rank: 1, Level: 5},
				{ID: "b", DisplayName: "Bob", XP: 3100, Rank: 2, Level: 4},
			},
		},
		oow: map[ranking.Period]*ranking.OutOfWindowEntry{},
	}
	return engine, NewRouter(engine, logger.NewNop())
}

func TestHealthz(t *testing.T) {
	_, router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatus(t *testing.T) {
	_, router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "live", body["state"])
	assert.Equal(t, "daily", body["activePeriod"])
}

func TestStandings(t *testing.T) {
	_, router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/standings/daily", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var update ranking.Update
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &update))
	assert.Equal(t, ranking.PeriodDaily, update.Period)
	require.Len(t, update.Entrants, 2)
	assert.Equal(t, "a", update.Entrants[0].ID)
	assert.Nil(t, update.OutOfWindow)
}

func TestStandingsWithOutOfWindow(t *testing.T) {
	engine, router := newTestRouter()
	engine.oow[ranking.PeriodDaily] = &ranking.OutOfWindowEntry{Rank: 57, XP: 800, Level: 1, Name: "Me"}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/standings/daily", nil))

	var update ranking.Update
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &update))
	require.NotNil(t, update.OutOfWindow)
	assert.Equal(t, 57, update.OutOfWindow.Rank)
}

func TestStandingsUnknownSnapshotIsEmpty(t *testing.T) {
	_, router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/standings/weekly", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var update ranking.Update
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &update))
	assert.NotNil(t, update.Entrants)
	assert.Len(t, update.Entrants, 0)
}

func TestStandingsInvalidPeriod(t *testing.T) {
	_, router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/standings/hourly", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
