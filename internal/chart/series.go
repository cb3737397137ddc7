// Package chart builds the open-rate trend series and renders it as a PNG:
// a solid line for the open rate and a dashed line for the goal.
package chart

import (
	"time"

	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/wbr"
)

// Point is one period of the trend. OpenRatePct is nil where the rate is
// undefined; the line breaks there.
type Point struct {
	Date         time.Time     `json:"date"`
	CampaignName string        `json:"campaign_name"`
	OpenRatePct  *float64      `json:"open_rate_pct"`
	GoalPct      float64       `json:"goal_pct"`
	Status       domain.Status `json:"status"`
}

// Series is the chart payload, oldest period first.
type Series struct {
	Title  string  `json:"title"`
	Points []Point `json:"points"`
}

// DefaultTitle labels rendered charts.
const DefaultTitle = "Open Rate vs Goal"

// FromComputed builds a series from computed records in any order.
func FromComputed(rows []domain.ComputedRecord) Series {
	sorted := wbr.SortChronological(rows)
	s := Series{Title: DefaultTitle, Points: make([]Point, len(sorted))}
	for i, r := range sorted {
		s.Points[i] = Point{
			Date:         r.Record.Date,
			CampaignName: r.Record.CampaignName,
			OpenRatePct:  r.Metrics.OpenRatePct,
			GoalPct:      r.Metrics.GoalPct,
			Status:       r.Metrics.Status,
		}
	}
	return s
}
