package ranking

import "fmt"

// Period is a named ranking time window. Exactly one period is active in
// the sync engine at any time.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "allTime"
)

// Periods returns every known period.
func Periods() []Period {
	return []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime}
}

// ParsePeriod validates a raw period string.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	_, err := ParsePeriod(string(p))
	return err == nil
}

// XPPerLevel is the XP span of one level.
const XPPerLevel = 1000

// LevelForXP derives a level from total XP when the source omits it.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// Entrant is one row of a ranking snapshot. Identity is ID; display
// fields are presentation only.
type Entrant struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	Handle         string `json:"handle,omitempty"`
	XP             int64  `json:"xp"`
	Level          int    `json:"level,omitempty"`
	Rank           int    `json:"rank,omitempty"`
	IsCurrentUser  bool   `json:"isCurrentUser,omitempty"`
	PositionChange int    `json:"positionChange"`
}

// OutOfWindowEntry carries the current user's standing when they are not
// present in the top-N snapshot. Sourced only from the REST side channel.
type OutOfWindowEntry struct {
	Rank     int    `json:"rank"`
	XP       int64  `json:"xp"`
	Level    int    `json:"level"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
}

// Update is the single outbound event of the engine: one reconciled
// snapshot for one period, plus the current user's out-of-window entry
// when they are not in it.
type Update struct {
	Period      Period            `json:"period"`
	Entrants    []Entrant         `json:"entrants"`
	OutOfWindow *OutOfWindowEntry `json:"outOfWindow,omitempty"`
}

// ConnState is the transport session's reported connection state.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnected
	ConnReconnecting
)

func (s ConnState) String() string {
	switch s {
	case ConnConnected:
		return "connected"
	case ConnReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}
