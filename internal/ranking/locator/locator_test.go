package locator

import (
	"testing"

	"github.com/questlab/ranksync/internal/ranking"
)

func TestSetAndGet(t *testing.T) {
	l := New()

	l.Set(ranking.PeriodDaily, &ranking.OutOfWindowEntry{Rank: 42, XP: 3100, Level: 4, Name: "Ada"})

	got := l.Get(ranking.PeriodDaily)
	if got == nil {
		t.Fatal("expected entry after Set")
	}
	if got.Rank != 42 || got.Name != "Ada" {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestSetReplacesWholesale(t *testing.T) {
	l := New()

	l.Set(ranking.PeriodDaily, &ranking.OutOfWindowEntry{Rank: 42, XP: 3100})
	l.Set(ranking.PeriodDaily, &ranking.OutOfWindowEntry{Rank: 40, XP: 3300})

	got := l.Get(ranking.PeriodDaily)
	if got.Rank != 40 || got.XP != 3300 {
		t.Fatalf("entry not replaced, got %+v", got)
	}
}

func TestSetDerivesMissingLevel(t *testing.T) {
	l := New()

	l.Set(ranking.PeriodDaily, &ranking.OutOfWindowEntry{Rank: 42, XP: 3100})

	if got := l.Get(ranking.PeriodDaily); got.Level != 4 {
		t.Fatalf("expected derived level 4, got %d", got.Level)
	}
}

func TestClear(t *testing.T) {
	l := New()

	l.Set(ranking.PeriodDaily, &ranking.OutOfWindowEntry{Rank: 42})
	l.Clear(ranking.PeriodDaily)

	if l.Get(ranking.PeriodDaily) != nil {
		t.Fatal("expected nil after Clear")
	}
}

func TestSetNilClears(t *testing.T) {
	l := New()

	l.Set(ranking.PeriodDaily, &ranking.OutOfWindowEntry{Rank: 42})
	l.Set(ranking.PeriodDaily, nil)

	if l.Get(ranking.PeriodDaily) != nil {
		t.Fatal("Set(nil) must clear the entry")
	}
}

func TestPeriodsIndependent(t *testing.T) {
	l := New()

	l.Set(ranking.PeriodDaily, &ranking.OutOfWindowEntry{Rank: 1})
	l.Set(ranking.PeriodWeekly, &ranking.OutOfWindowEntry{Rank: 2})
	l.Clear(ranking.PeriodDaily)

	if l.Get(ranking.PeriodDaily) != nil {
		t.Fatal("daily should be cleared")
	}
	if got := l.Get(ranking.PeriodWeekly); got == nil || got.Rank != 2 {
		t.Fatalf("weekly should survive, got %+v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	l := New()
	l.Set(ranking.PeriodDaily, &ranking.OutOfWindowEntry{Rank: 5})

	got := l.Get(ranking.PeriodDaily)
	got.Rank = 99

	if l.Get(ranking.PeriodDaily).Rank != 5 {
		t.Fatal("Get must not expose internal entry")
	}
}
