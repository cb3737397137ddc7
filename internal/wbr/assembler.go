package wbr

import (
	"sort"

	"github.com/ignite/wbr-monitor/internal/domain"
)

// Assemble builds the review table: one row per annotated record, most
// recent period first.
func Assemble(rows []domain.AnnotatedRecord) []domain.ReportRow {
	out := make([]domain.ReportRow, 0, len(rows))
	for _, r := range rows {
		m := r.Metrics
		out = append(out, domain.ReportRow{
			Date:                r.Record.Date,
			CampaignName:        r.Record.CampaignName,
			OpenRatePct:         m.OpenRatePct,
			GoalPct:             m.GoalPct,
			WoWVariance:         m.WoWVariance,
			GoalVariance:        m.GoalVariance,
			Status:              m.Status,
			RootCauseHypothesis: r.Annotation.RootCauseHypothesis,
			PathToGreen:         r.Annotation.PathToGreen,
			DataQuality:         m.Quality,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CampaignName < out[j].CampaignName
	})
	return out
}
