// Package reconcile turns a raw leaderboard payload and the previous
// snapshot for the same period into a delta-annotated entrant list.
package reconcile

import "github.com/questlab/ranksync/internal/ranking"

// List reconciles newList against previous. The payload's order is
// authoritative for current rank: entrants are ranked by array index
// unless the source supplied an explicit positive rank, which wins.
//
// PositionChange is oldRank - newRank for entrants present in previous
// (positive = moved toward #1) and 0 for newcomers, so a first
// observation never shows an artificial swing. An empty newList is a
// valid result, not an error.
func List(newList, previous []ranking.Entrant, currentUserID string) []ranking.Entrant {
	deduped := dropDuplicateIDs(newList)

	oldRanks := make(map[string]int, len(previous))
	for _, e := range previous {
		oldRanks[e.ID] = e.Rank
	}

	out := make([]ranking.Entrant, 0, len(deduped))
	for i, e := range deduped {
		if e.Rank <= 0 {
			e.Rank = i + 1
		}

		if oldRank, seen := oldRanks[e.ID]; seen {
			e.PositionChange = oldRank - e.Rank
		} else {
			e.PositionChange = 0
		}

		// Explicit source flag wins; otherwise match the session's id.
		if !e.IsCurrentUser && currentUserID != "" {
			e.IsCurrentUser = e.ID == currentUserID
		}

		if e.Level <= 0 {
			e.Level = ranking.LevelForXP(e.XP)
		}

		out = append(out, e)
	}

	return out
}

// ContainsUser reports whether the current user is present in a
// reconciled snapshot.
func ContainsUser(snapshot []ranking.Entrant, currentUserID string) bool {
	for _, e := range snapshot {
		if e.IsCurrentUser || (currentUserID != "" && e.ID == currentUserID) {
			return true
		}
	}
	return false
}

// dropDuplicateIDs keeps the last-seen occurrence of each id, at that
// occurrence's position. Duplicate ids are an upstream contract
// violation; tolerate them with stable behavior instead of failing.
func dropDuplicateIDs(list []ranking.Entrant) []ranking.Entrant {
	seen := make(map[string]bool, len(list))
	dup := false
	for _, e := range list {
		if seen[e.ID] {
			dup = true
			break
		}
		seen[e.ID] = true
	}
	if !dup {
		return list
	}

	keep := make(map[string]bool, len(list))
	reversed := make([]ranking.Entrant, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		e := list[i]
		if keep[e.ID] {
			continue
		}
		keep[e.ID] = true
		reversed = append(reversed, e)
	}

	out := make([]ranking.Entrant, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		out = append(out, reversed[i])
	}
	return out
}
