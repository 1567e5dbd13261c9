package reconcile_test

import (
	"fmt"

	"github.com/questlab/ranksync/internal/ranking"
	"github.com/questlab/ranksync/internal/ranking/reconcile"
)

// Example shows two reconciliation cycles: the first observation has no
// deltas, the second reflects the swap at the top.
func Example() {
	first := reconcile.List([]ranking.Entrant{
		{ID: "ada", DisplayName: "Ada", XP: 3200},
		{ID: "bob", DisplayName: "Bob", XP: 2900},
	}, nil, "bob")

	second := reconcile.List([]ranking.Entrant{
		{ID: "bob", DisplayName: "Bob", XP: 3500},
		{ID: "ada", DisplayName: "Ada", XP: 3200},
	}, first, "bob")

	for _, e := range second {
		fmt.Printf("#%d %s level=%d delta=%+d me=%v\n",
			e.Rank, e.DisplayName, e.Level, e.PositionChange, e.IsCurrentUser)
	}

	// Output:
	// #1 Bob level=4 delta=+1 me=true
	// #2 Ada level=4 delta=-1 me=false
}
