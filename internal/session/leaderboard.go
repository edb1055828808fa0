package session

import (
	"slices"

	"github.com/DoyleJ11/type-rush-backend/pkg/types"
)

// Leaderboard keeps the latest wpm per display name in first-seen order.
type Leaderboard struct {
	rows []types.PerformanceSnapshot
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{}
}

// Upsert replaces the row for snap.DisplayName or appends a new one.
func (lb *Leaderboard) Upsert(snap types.PerformanceSnapshot) {
	if snap.WPM < 0 {
		snap.WPM = 0
	}
	for i := range lb.rows {
		if lb.rows[i].DisplayName == snap.DisplayName {
			lb.rows[i].WPM = snap.WPM
			return
		}
	}
	lb.rows = append(lb.rows, snap)
}

func (lb *Leaderboard) Get(name string) (int, bool) {
	for _, r := range lb.rows {
		if r.DisplayName == name {
			return r.WPM, true
		}
	}
	return 0, false
}

func (lb *Leaderboard) Len() int { return len(lb.rows) }

// Rows is sorted by wpm descending; ties keep insertion order.
func (lb *Leaderboard) Rows() []types.PerformanceSnapshot {
	out := slices.Clone(lb.rows)
	slices.SortStableFunc(out, func(a, b types.PerformanceSnapshot) int {
		return b.WPM - a.WPM
	})
	return out
}
