package wbr

import (
	"sort"

	"github.com/ignite/wbr-monitor/internal/domain"
)

// SortChronological returns a copy of rows ordered by date ascending.
// Rows on the same date keep a deterministic order by campaign name.
func SortChronological(rows []domain.ComputedRecord) []domain.ComputedRecord {
	out := make([]domain.ComputedRecord, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Record, out[j].Record
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.CampaignName < b.CampaignName
	})
	return out
}

// ApplyVariance returns the rows in chronological order with WoW variance
// and goal variance filled in. Input order does not matter.
func ApplyVariance(rows []domain.ComputedRecord) []domain.ComputedRecord {
	out := SortChronological(rows)
	var prev *float64
	for i := range out {
		m := &out[i].Metrics
		if i > 0 {
			m.WoWVariance = PercentChange(prev, m.OpenRate)
		} else {
			m.WoWVariance = nil
		}
		m.GoalVariance = GoalVariance(m.OpenRatePct, m.GoalPct)
		prev = m.OpenRate
	}
	return out
}

// PercentChange is (cur-prev)/prev*100. It is undefined (nil) when either
// side is missing or prev is zero.
func PercentChange(prev, cur *float64) *float64 {
	if prev == nil || cur == nil || *prev == 0 {
		return nil
	}
	return floatPtr((*cur - *prev) / *prev * 100)
}

// GoalVariance is the percentage-point gap between actual and goal.
func GoalVariance(openRatePct *float64, goalPct float64) *float64 {
	if openRatePct == nil {
		return nil
	}
	return floatPtr(*openRatePct - goalPct)
}
